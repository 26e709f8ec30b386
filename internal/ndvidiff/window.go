package ndvidiff

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

// band patterns for t.sentinel.import; with cloud masking the 20m SWIR
// and scene classification bands are needed as well.
const (
	bandPattern       = "B(02_1|03_1|04_1|08_1)0m"
	bandPatternClouds = "B(02_1|03_1|04_1|08_1|8A_2|11_2|12_2)0m"
)

// processWindow imports, masks and aggregates one time window and
// computes its NDVI map.
func processWindow(ctx context.Context, s *grass.Session, log logrus.FieldLogger, p Params, w *window, nprocs int) error {
	strds := fmt.Sprintf("s2_timestep%d", w.index)
	s.AddSTRDS(strds)

	pattern := bandPattern
	if p.CloudMasking {
		pattern = bandPatternClouds
	}

	log.Infof("Importing imagery data from %s", w.dir)
	importParams := map[string]string{
		"pattern":      pattern,
		"input_dir":    w.dir,
		"nprocs":       fmt.Sprint(nprocs),
		"strds_output": strds,
	}
	if p.Offset != nil {
		importParams["offset"] = fmt.Sprint(*p.Offset)
	}
	importOpt := grass.Options{Params: importParams, Quiet: true}
	cloudsSen2cor := strds + "_clouds_sen2cor"
	if p.CloudMasking {
		importOpt.Flags = "c"
		importParams["strds_clouds"] = cloudsSen2cor
		s.AddSTRDS(cloudsSen2cor)
	}
	if _, err := s.Run(ctx, "t.sentinel.import", importOpt); err != nil {
		return fmt.Errorf("importing %s: %w", w.dir, err)
	}

	var cloudsCombined, shadowSTRDS string
	if p.CloudMasking {
		cloudSTRDS := strds + "_clouds_rast"
		shadowSTRDS = strds + "_shadows_rast"
		s.AddSTRDS(cloudSTRDS)
		s.AddSTRDS(shadowSTRDS)
		log.Infof("Identifying clouds/shadows for S-2 data from timestep %d", w.index)
		if _, err := s.Run(ctx, "t.sentinel.mask", grass.Options{
			Params: map[string]string{
				"input":            strds,
				"metadata":         "default",
				"output_clouds":    cloudSTRDS,
				"output_shadows":   shadowSTRDS,
				"min_size_clouds":  "0.05",
				"min_size_shadows": "0.05",
				"nprocs":           fmt.Sprint(nprocs),
			},
		}); err != nil {
			return fmt.Errorf("cloud masking: %w", err)
		}

		// merge the detected clouds with the ones delivered in the scenes
		cloudsCombined = cloudSTRDS + "_combined"
		s.AddSTRDS(cloudsCombined)
		expr := fmt.Sprintf("%s = if(isntnull(%s),0,if(isntnull(%s),0,null()))",
			cloudsCombined, cloudSTRDS, cloudsSen2cor)
		if _, err := s.Run(ctx, "t.rast.algebra", grass.Options{
			Params: map[string]string{
				"expression": expr,
				"basename":   "clouds_combined",
				"nprocs":     fmt.Sprint(nprocs),
			},
			Flags:     "n",
			Overwrite: true,
		}); err != nil {
			return fmt.Errorf("combining cloud masks: %w", err)
		}
	}

	log.Infof("Temporally aggregating spectral bands for time step %d...", w.index)
	bandSTRDS, err := listBandSTRDS(ctx, s, strds)
	if err != nil {
		return err
	}
	for _, item := range bandSTRDS {
		s.AddSTRDS(item)
	}

	// only red and NIR are needed for the NDVI; the full RGBI set is
	// aggregated when the group or exports are requested
	wantRGBI := p.RGBIBasename != "" || p.OutputDir != ""
	refBands := []string{"B04", "B08"}
	if wantRGBI {
		refBands = []string{"B02", "B03", "B04", "B08"}
	}

	var red, green, blue, nir string
	for _, item := range bandSTRDS {
		band := matchBand(item, refBands)
		if band == "" {
			continue
		}
		aggregated := item + "_aggregated"
		if p.RGBIBasename == "" {
			s.AddRaster(aggregated)
		}
		mosaicParams := map[string]string{
			"input":  item,
			"output": aggregated,
			// even with clouds left in single scenes the aggregation
			// removes them, though it may introduce shadows
			"method":      p.AggregationMethod,
			"granularity": "all", // a single raster instead of a strds
			"nprocs":      fmt.Sprint(nprocs),
		}
		if p.CloudMasking {
			mosaicParams["clouds"] = cloudsCombined
			mosaicParams["shadows"] = shadowSTRDS
			if p.CloudShadowBuffer > 0 {
				mosaicParams["cloudbuffer"] = fmt.Sprint(p.CloudShadowBuffer)
			}
			mosaicParams["shadowbuffer"] = fmt.Sprint(p.CloudShadowBuffer)
		}
		if _, err := s.Run(ctx, "t.rast.mosaic", grass.Options{
			Params:    mosaicParams,
			Overwrite: true,
		}); err != nil {
			return fmt.Errorf("aggregating %s: %w", item, err)
		}
		switch band {
		case "B02":
			blue = aggregated
		case "B03":
			green = aggregated
		case "B04":
			red = aggregated
		case "B08":
			nir = aggregated
		}
	}
	if red == "" || nir == "" {
		return fmt.Errorf("no red/NIR band data found in %s", w.dir)
	}

	if wantRGBI {
		group := fmt.Sprintf("rgbi_s2_timestep%d", w.index)
		if p.RGBIBasename != "" {
			group = fmt.Sprintf("%s_timestep%d", p.RGBIBasename, w.index)
		} else {
			s.AddGroup(group)
		}
		if _, err := s.Run(ctx, "i.group", grass.Options{
			Params: map[string]string{
				"group": group,
				"input": strings.Join([]string{red, green, blue, nir}, ","),
			},
			Quiet: true,
		}); err != nil {
			return fmt.Errorf("creating group %s: %w", group, err)
		}
		w.group = group
	}

	log.Infof("Calculating aggregated NDVI for time step %d...", w.index)
	ndvi := p.NDVIFirst
	if w.index == 1 {
		ndvi = p.NDVISecond
	}
	if ndvi == "" {
		ndvi = strds + "_ndvi"
		s.AddRaster(ndvi)
	}
	expr := fmt.Sprintf("%s=float(%s-%s)/(%s + %s)", ndvi, nir, red, nir, red)
	if err := s.Mapcalc(ctx, expr); err != nil {
		return err
	}
	w.ndvi = ndvi
	return nil
}

// listBandSTRDS returns the per-band datasets t.sentinel.import created
// for the given base name, without mapset suffixes.
func listBandSTRDS(ctx context.Context, s *grass.Session, base string) ([]string, error) {
	out, err := s.Run(ctx, "t.list", grass.Options{Quiet: true})
	if err != nil {
		return nil, err
	}
	var items []string
	for _, item := range grass.ParseList(out) {
		name := strings.SplitN(item, "@", 2)[0]
		if strings.HasPrefix(name, base+"_B") {
			items = append(items, name)
		}
	}
	return items, nil
}

func matchBand(item string, bands []string) string {
	for _, band := range bands {
		if strings.Contains(item, band) {
			return band
		}
	}
	return ""
}
