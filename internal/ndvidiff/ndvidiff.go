// Package ndvidiff detects NDVI loss between two Sentinel-2 time
// windows. Each window is mosaicked (optionally cloud masked) through
// the temporal toolchain, the NDVI maps are differenced and pixels below
// an outlier-derived or user threshold are vectorized.
package ndvidiff

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mundialis/i.sentinel-2/internal/cache"
	"github.com/mundialis/i.sentinel-2/internal/config"
	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/safe"
)

// AggregationMethods lists the temporal aggregation methods t.rast.mosaic
// accepts.
var AggregationMethods = []string{
	"average", "count", "median", "mode", "minimum", "min_raster",
	"maximum", "max_raster", "stddev", "range", "sum", "variance",
	"diversity", "slope", "offset", "detcoeff", "quart1", "quart3",
	"perc90", "quantile", "skewness", "kurtosis",
}

// requiredAddons are the temporal modules the workflow drives.
var requiredAddons = []string{
	"t.sentinel.import", "t.sentinel.mask", "t.rast.mosaic", "t.rast.algebra",
}

// Params collects the inputs of one change detection run.
type Params struct {
	FirstDir  string
	SecondDir string

	// AOIVector is a vector map delimiting the area of interest.
	// Alternatively AOIGeoJSON names a GeoJSON file whose bounds are
	// used instead.
	AOIVector  string
	AOIGeoJSON string

	LossVector string
	LossRaster string
	DiffRaster string
	NDVIFirst  string
	NDVISecond string

	RGBIBasename string
	OutputDir    string

	DiffThreshold   *float64
	RelevantMinNDVI *float64
	Offset          *int
	MinSize         *float64

	NProcs            int
	CloudShadowBuffer int
	AggregationMethod string
	CloudMasking      bool
}

func (p Params) validate() error {
	if p.OutputDir == "" && p.LossVector == "" && p.LossRaster == "" {
		return fmt.Errorf("at least one of output_dir, ndvi_loss_map_vect or ndvi_loss_map_rast is required")
	}
	if p.AOIVector == "" && p.AOIGeoJSON == "" {
		return fmt.Errorf("an AOI vector map or GeoJSON file is required")
	}
	ok := false
	for _, m := range AggregationMethods {
		if m == p.AggregationMethod {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("unknown aggregation method <%s>", p.AggregationMethod)
	}
	return nil
}

// window is the per-time-window state.
type window struct {
	index     int
	dir       string
	inventory safe.Inventory
	ndvi      string
	group     string
}

// Run executes the full change detection workflow.
func Run(ctx context.Context, s *grass.Session, log logrus.FieldLogger, p Params) error {
	if err := p.validate(); err != nil {
		return err
	}
	for _, addon := range requiredAddons {
		if !s.FindProgram(addon) {
			return fmt.Errorf("the '%s' module was not found, install it first:\ng.extension %s", addon, addon)
		}
	}
	if p.OutputDir != "" {
		if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", p.OutputDir, err)
		}
	}

	savedRegion, err := s.SaveRegion(ctx)
	if err != nil {
		return fmt.Errorf("saving region: %w", err)
	}
	defer func() {
		if err := s.RestoreRegion(ctx, savedRegion); err != nil {
			log.Warnf("restoring region: %v", err)
		}
	}()
	if err := setRegion(ctx, s, p); err != nil {
		return err
	}

	nprocs := grass.ClampNprocs(p.NProcs, log)

	// scan and validate the two input directories concurrently
	windows := []*window{
		{index: 0, dir: p.FirstDir},
		{index: 1, dir: p.SecondDir},
	}
	inventoryCache := cache.New[safe.Inventory](config.CacheDir())
	eg, egCtx := errgroup.WithContext(ctx)
	for _, w := range windows {
		w := w
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			inv, err := safe.ScanCached(inventoryCache, w.dir)
			if err != nil {
				return err
			}
			if len(inv.Scenes) == 0 {
				return fmt.Errorf("no Sentinel-2 scenes found in %s", w.dir)
			}
			w.inventory = inv
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	// the mosaicking pipeline shares region and mapset state, so the
	// windows run one after the other
	for _, w := range windows {
		if err := processWindow(ctx, s, log, p, w, nprocs); err != nil {
			return fmt.Errorf("time step %d: %w", w.index, err)
		}
	}

	log.Infof("Calculating NDVI difference and loss maps...")
	diffMap := p.DiffRaster
	if diffMap == "" {
		diffMap = grass.TempName("ndvi_diff_map")
		s.AddRaster(diffMap)
	}
	expr := fmt.Sprintf("%s=%s-%s", diffMap, windows[1].ndvi, windows[0].ndvi)
	if err := s.Mapcalc(ctx, expr); err != nil {
		return err
	}

	threshold, err := lossThreshold(ctx, s, diffMap, p.DiffThreshold)
	if err != nil {
		return err
	}
	log.Infof("NDVI loss threshold is set to %g", threshold)

	lossMap := p.LossRaster
	if lossMap == "" {
		lossMap = grass.TempName("ndvi_loss_map")
		s.AddRaster(lossMap)
	}
	aoiVector, err := ensureAOIVector(ctx, s, p)
	if err != nil {
		return err
	}
	if err := s.SetMaskVector(ctx, aoiVector); err != nil {
		return err
	}
	if err := s.Mapcalc(ctx, lossExpression(lossMap, diffMap, threshold, windows[0].ndvi, p.RelevantMinNDVI)); err != nil {
		return err
	}

	lossVector, err := vectorize(ctx, s, log, p, lossMap)
	if err != nil {
		return err
	}

	if p.OutputDir != "" {
		var outputs []string
		outputs = append(outputs, windows[0].ndvi, windows[1].ndvi, diffMap)
		for _, w := range windows {
			if w.group != "" {
				outputs = append(outputs, w.group)
			}
		}
		if err := export(ctx, s, log, p.OutputDir, outputs, lossVector, diffMap); err != nil {
			return err
		}
	}
	return nil
}

// lossThreshold returns the user threshold or derives one from the lower
// outlier fence of the difference map, Q1 - 1.5*(Q3 - Q1).
func lossThreshold(ctx context.Context, s *grass.Session, diffMap string, user *float64) (float64, error) {
	if user != nil {
		return *user, nil
	}
	kv, err := s.Parse(ctx, "r.univar", grass.Options{
		Params: map[string]string{"map": diffMap},
		Flags:  "ge",
	})
	if err != nil {
		return 0, err
	}
	q1, err1 := parseFloat(kv["first_quartile"])
	q3, err2 := parseFloat(kv["third_quartile"])
	if err1 != nil || err2 != nil {
		return 0, fmt.Errorf("r.univar returned no quartiles for <%s>", diffMap)
	}
	return IQRThreshold(q1, q3), nil
}

// IQRThreshold is the lower Tukey fence.
func IQRThreshold(q1, q3 float64) float64 {
	return q1 - 1.5*(q3-q1)
}

// lossExpression builds the map algebra expression selecting loss
// pixels. With a minimum NDVI, only pixels that were vegetated in the
// first window count as loss.
func lossExpression(lossMap, diffMap string, threshold float64, firstNDVI string, minNDVI *float64) string {
	if minNDVI != nil {
		return fmt.Sprintf("%s = if((%s<=%g && %s>=%g),1,null())",
			lossMap, diffMap, threshold, firstNDVI, *minNDVI)
	}
	return fmt.Sprintf("%s = if(%s<=%g,1,null())", lossMap, diffMap, threshold)
}

// vectorize turns the loss raster into an area vector, dropping areas
// below the minimum size when one is configured.
func vectorize(ctx context.Context, s *grass.Session, log logrus.FieldLogger, p Params, lossMap string) (string, error) {
	lossVector := p.LossVector
	if lossVector == "" {
		lossVector = lossMap + "_vect"
		s.AddVector(lossVector)
	}
	tmpVector := lossVector + "_tmp"
	s.AddVector(tmpVector)

	log.Infof("Vectorizing results...")
	if _, err := s.Run(ctx, "r.to.vect", grass.Options{
		Params: map[string]string{
			"input":  lossMap,
			"output": tmpVector,
			"type":   "area",
		},
	}); err != nil {
		return "", err
	}

	if p.MinSize != nil {
		if _, err := s.Run(ctx, "v.clean", grass.Options{
			Params: map[string]string{
				"input":     tmpVector,
				"output":    lossVector,
				"tool":      "rmarea",
				"threshold": fmt.Sprintf("%g", *p.MinSize),
			},
		}); err != nil {
			return "", err
		}
		return lossVector, nil
	}
	if _, err := s.Run(ctx, "g.rename", grass.Options{
		Params:    map[string]string{"vector": tmpVector + "," + lossVector},
		Quiet:     true,
		Overwrite: true,
	}); err != nil {
		return "", err
	}
	return lossVector, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
