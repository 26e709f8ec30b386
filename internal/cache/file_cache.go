// Package cache provides a small JSON file cache used to avoid
// re-scanning large imagery directories between runs.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type entry[T any] struct {
	Data      T         `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
}

// File is a cache of T values stored one JSON file per key.
type File[T any] struct {
	dir string
}

func New[T any](dir string) *File[T] {
	return &File[T]{dir: dir}
}

// Key derives a stable cache key from arbitrary parameters.
func Key(params ...interface{}) string {
	h := sha1.New()
	for _, p := range params {
		fmt.Fprintf(h, "%v_", p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for key. A missing file, unreadable JSON
// or a checksum mismatch all count as a miss.
func (f *File[T]) Get(key string) (T, bool) {
	var zero T
	raw, err := os.ReadFile(filepath.Join(f.dir, key+".json"))
	if err != nil {
		return zero, false
	}
	var e entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		return zero, false
	}
	if e.Checksum != checksum(e.Data) {
		return zero, false
	}
	return e.Data, true
}

// Put stores a value under key. The file is written via a temp file and
// rename so a crashed writer never leaves a truncated entry behind.
func (f *File[T]) Put(key string, data T) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	e := entry[T]{Data: data, CreatedAt: time.Now(), Checksum: checksum(data)}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	target := filepath.Join(f.dir, key+".json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming cache entry: %w", err)
	}
	return nil
}

func checksum(data interface{}) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	h := sha1.Sum(raw)
	return hex.EncodeToString(h[:])
}
