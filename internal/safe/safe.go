// Package safe inspects Sentinel-2 .SAFE archive directories.
package safe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mundialis/i.sentinel-2/internal/cache"
)

// Scene is one Sentinel-2 scene directory.
type Scene struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Datatake string `json:"datatake"`
}

// IsScene reports whether a directory entry name looks like a Sentinel-2
// SAFE scene.
func IsScene(name string) bool {
	return strings.HasPrefix(name, "S2") && strings.HasSuffix(name, ".SAFE")
}

// DatatakeBlock extracts the datatake timestamp block of a scene name,
// the third underscore-separated field. It is the only part of the name
// that survives L1C to L2A processing unchanged.
func DatatakeBlock(name string) (string, error) {
	parts := strings.Split(filepath.Base(name), "_")
	if len(parts) < 3 {
		return "", fmt.Errorf("scene name <%s> has no datatake block", name)
	}
	return parts[2], nil
}

// Scan lists the scenes of an input directory. A directory mixing SAFE
// scenes with other entries is rejected: it usually means a typo in the
// input path.
func Scan(dir string) ([]Scene, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("directory %s does not exist", dir)
	}
	var scenes []Scene
	var other int
	for _, e := range entries {
		if IsScene(e.Name()) {
			datatake, err := DatatakeBlock(e.Name())
			if err != nil {
				return nil, err
			}
			scenes = append(scenes, Scene{
				Name:     e.Name(),
				Path:     filepath.Join(dir, e.Name()),
				Datatake: datatake,
			})
		} else {
			other++
		}
	}
	if len(scenes) > 0 && other > 0 {
		return nil, fmt.Errorf("both S2 and non-S2 scenes in %s", dir)
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Name < scenes[j].Name })
	return scenes, nil
}

// Inventory is the cached result of scanning one input directory.
type Inventory struct {
	Dir    string            `json:"dir"`
	Scenes []Scene           `json:"scenes"`
	Bands  map[string][]Band `json:"bands"`
}

// ScanCached scans a directory, probing band metadata, with the result
// cached keyed on the directory path and its modification time.
func ScanCached(c *cache.File[Inventory], dir string) (Inventory, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return Inventory{}, fmt.Errorf("directory %s does not exist", dir)
	}
	key := cache.Key(dir, info.ModTime().UnixNano())
	if inv, ok := c.Get(key); ok {
		return inv, nil
	}

	scenes, err := Scan(dir)
	if err != nil {
		return Inventory{}, err
	}
	inv := Inventory{Dir: dir, Scenes: scenes, Bands: make(map[string][]Band)}
	for _, scene := range scenes {
		bands, err := SceneBands(scene)
		if err != nil {
			return Inventory{}, err
		}
		inv.Bands[scene.Name] = bands
	}
	if err := c.Put(key, inv); err != nil {
		return inv, nil // cache failures are not fatal
	}
	return inv, nil
}
