package ndvidiff

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/quicklook"
)

// export writes the result maps as compressed GeoTIFFs, the loss areas
// as GeoPackage and a quicklook PNG of the difference map.
func export(ctx context.Context, s *grass.Session, log logrus.FieldLogger,
	outDir string, rasters []string, lossVector, diffMap string) error {

	log.Infof("Exporting result maps to %s", outDir)
	bar := progressbar.Default(int64(len(rasters)+1), "Exporting")
	var diffPath string
	for _, raster := range rasters {
		outPath := filepath.Join(outDir, raster+".tif")
		if raster == diffMap {
			diffPath = outPath
		}
		if _, err := s.Run(ctx, "r.out.gdal", grass.Options{
			Params: map[string]string{
				"input":     raster,
				"output":    outPath,
				"createopt": "COMPRESS=LZW,TILED=YES",
				"overviews": "5",
			},
			Flags:     "cm",
			Quiet:     true,
			Overwrite: true,
		}); err != nil {
			return fmt.Errorf("exporting %s: %w", raster, err)
		}
		bar.Add(1)
	}

	vectPath := filepath.Join(outDir, lossVector+".gpkg")
	if _, err := s.Run(ctx, "v.out.ogr", grass.Options{
		Params: map[string]string{
			"input":  lossVector,
			"output": vectPath,
		},
		Quiet:     true,
		Overwrite: true,
	}); err != nil {
		return fmt.Errorf("exporting %s: %w", lossVector, err)
	}
	bar.Add(1)

	if diffPath != "" {
		pngPath := filepath.Join(outDir, diffMap+"_quicklook.png")
		if err := quicklook.Render(diffPath, pngPath); err != nil {
			// the quicklook is a convenience, not a result
			log.Warnf("rendering quicklook: %v", err)
		}
	}
	return nil
}
