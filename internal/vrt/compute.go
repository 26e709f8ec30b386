package vrt

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/indices"
)

// BandsFor resolves the band VRTs an index needs from the generated VRT
// names. Sentinel-2 band numbers map onto index inputs: B08 is NIR, B04
// red, B03 green, B11 SWIR, B02 blue.
func BandsFor(idx indices.Index, vrts []string) (indices.Bands, error) {
	var b indices.Bands
	var err error
	if b.NIR, err = resolve(vrts, "8"); err != nil {
		return b, err
	}
	switch idx {
	case indices.NDVI:
		b.Red, err = resolve(vrts, "4")
	case indices.NDWI:
		b.Green, err = resolve(vrts, "3")
	case indices.NDBI:
		b.SWIR, err = resolve(vrts, "11")
	case indices.BSI:
		if b.SWIR, err = resolve(vrts, "11"); err != nil {
			return b, err
		}
		if b.Red, err = resolve(vrts, "4"); err != nil {
			return b, err
		}
		b.Blue, err = resolveBlue(vrts)
	case indices.ASM:
		if b.Green, err = resolve(vrts, "3"); err != nil {
			return b, err
		}
		if b.Red, err = resolve(vrts, "4"); err != nil {
			return b, err
		}
		b.Blue, err = resolveBlue(vrts)
	}
	return b, err
}

// ComputeAll runs the requested indices over the VRTs on a bounded
// worker pool. The region is aligned to the first VRT at res beforehand
// and restored afterwards.
func ComputeAll(ctx context.Context, s *grass.Session, log logrus.FieldLogger,
	vrts []string, idxs []indices.Index, prefix string, res float64, nprocs int) error {

	if len(idxs) == 0 {
		return nil
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
	if err := s.SetRegionRaster(ctx, vrts[0], res); err != nil {
		return fmt.Errorf("setting region: %w", err)
	}

	bar := progressbar.Default(int64(len(idxs)), "Calculating indices")
	wp := workerpool.New(nprocs)
	errChan := make(chan error, 1)
	var firstErr sync.Once

	for _, idx := range idxs {
		idx := idx
		wp.Submit(func() {
			bands, err := BandsFor(idx, vrts)
			if err == nil {
				log.Infof("Calculation of %s...", idx.Description())
				err = indices.Compute(ctx, s, idx, prefix+string(idx), bands, 1)
			}
			if err != nil {
				firstErr.Do(func() { errChan <- fmt.Errorf("index %s: %w", idx, err) })
				return
			}
			bar.Add(1)
		})
	}

	go func() {
		wp.StopWait()
		close(errChan)
	}()

	if err := <-errChan; err != nil {
		return err
	}
	return nil
}
