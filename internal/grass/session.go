package grass

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Session ties a Runner to the bookkeeping of one driver run: temporary
// map names, a possibly saved pre-existing mask and the region to restore.
type Session struct {
	runner Runner
	log    logrus.FieldLogger

	mu        sync.Mutex
	rmRasters []string
	rmVectors []string
	rmGroups  []string
	rmRegions []string
	rmSTRDS   []string
	savedMask string
}

func NewSession(runner Runner, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{runner: runner, log: log}
}

// Run invokes a single GRASS module.
func (s *Session) Run(ctx context.Context, module string, opt Options) ([]byte, error) {
	res, err := s.runner.Run(ctx, Command{Name: module, Args: opt.Args()})
	if err != nil {
		return res.Stdout, err
	}
	return res.Stdout, nil
}

// Parse runs a module and parses its key=value output.
func (s *Session) Parse(ctx context.Context, module string, opt Options) (map[string]string, error) {
	out, err := s.Run(ctx, module, opt)
	if err != nil {
		return nil, err
	}
	return ParseKeyValue(out), nil
}

// Mapcalc evaluates a map algebra expression with r.mapcalc.
func (s *Session) Mapcalc(ctx context.Context, expression string) error {
	_, err := s.Run(ctx, "r.mapcalc", Options{
		Params: map[string]string{"expression": expression},
		Quiet:  true,
	})
	return err
}

// Percentile reads one percentile of a raster from r.quantile. The
// output lines have the form "percentile:quantile:value".
func (s *Session) Percentile(ctx context.Context, raster string, percentile float64) (float64, error) {
	out, err := s.Run(ctx, "r.quantile", Options{
		Params: map[string]string{
			"input":       raster,
			"percentiles": strconv.FormatFloat(percentile, 'f', -1, 64),
		},
		Quiet: true,
	})
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Split(strings.TrimSpace(line), ":")
		if len(fields) < 3 {
			continue
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected r.quantile output %q: %w", line, err)
		}
		return value, nil
	}
	return 0, fmt.Errorf("no quantile in r.quantile output for <%s>", raster)
}

// CellCount returns the number of non-null cells of a raster.
func (s *Session) CellCount(ctx context.Context, raster string) (int, error) {
	kv, err := s.Parse(ctx, "r.univar", Options{
		Params: map[string]string{"map": raster},
		Flags:  "g",
	})
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(kv["n"])
	if err != nil {
		return 0, fmt.Errorf("r.univar returned no cell count for <%s>", raster)
	}
	return n, nil
}

// FindFile reports whether a map of the given element type (raster,
// vector, region, group) exists in the current mapset search path.
func (s *Session) FindFile(ctx context.Context, name, element string) bool {
	kv, err := s.Parse(ctx, "g.findfile", Options{
		Params: map[string]string{"element": element, "file": name},
		Flags:  "n",
	})
	if err != nil {
		// g.findfile exits non-zero when nothing is found
		return false
	}
	return kv["file"] != ""
}

// FindProgram reports whether an external module or binary is on PATH.
func (s *Session) FindProgram(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// TempName derives a process-unique map name from a base.
func TempName(base string) string {
	return fmt.Sprintf("%s_%d", base, os.Getpid())
}

// AddRaster registers a temporary raster for removal at cleanup.
func (s *Session) AddRaster(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rmRasters = append(s.rmRasters, name)
}

func (s *Session) AddVector(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rmVectors = append(s.rmVectors, name)
}

func (s *Session) AddGroup(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rmGroups = append(s.rmGroups, name)
}

func (s *Session) AddRegion(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rmRegions = append(s.rmRegions, name)
}

// AddSTRDS registers a space-time raster dataset; it is removed together
// with its registered rasters.
func (s *Session) AddSTRDS(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rmSTRDS = append(s.rmSTRDS, name)
}
