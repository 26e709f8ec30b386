package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mundialis/i.sentinel-2/internal/ndvidiff"
	"github.com/mundialis/i.sentinel-2/internal/notification"
)

var ndvidiffFlags struct {
	params          ndvidiff.Params
	diffThreshold   float64
	relevantMinNDVI float64
	offset          int
	minSize         float64
	notify          bool
}

var ndvidiffCmd = &cobra.Command{
	Use:   "ndvidiff",
	Short: "Calculate NDVI difference and loss maps",
	Long: `Aggregates two time windows of Sentinel-2 imagery, differences
their NDVI maps and vectorizes areas of NDVI loss. Without an explicit
threshold the loss threshold is derived from the difference map as
Q1-1.5*(Q3-Q1).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := ndvidiffFlags.params
		if cmd.Flags().Changed("ndvi_diff_threshold") {
			p.DiffThreshold = &ndvidiffFlags.diffThreshold
		}
		if cmd.Flags().Changed("relevant_min_ndvi") {
			p.RelevantMinNDVI = &ndvidiffFlags.relevantMinNDVI
		}
		if cmd.Flags().Changed("offset") {
			p.Offset = &ndvidiffFlags.offset
		}
		if cmd.Flags().Changed("min_size") {
			p.MinSize = &ndvidiffFlags.minSize
		}

		ctx := cmd.Context()
		session := newSession()
		defer session.Cleanup(ctx)

		err := ndvidiff.Run(ctx, session, log, p)
		if ndvidiffFlags.notify {
			if err != nil {
				notification.SendError(fmt.Sprintf("s2tools ndvidiff failed: %s", err.Error()))
			} else {
				notification.SendSuccess("s2tools ndvidiff finished")
			}
		}
		return err
	},
}

func init() {
	f := ndvidiffCmd.Flags()
	p := &ndvidiffFlags.params
	f.StringVar(&p.FirstDir, "input_dir_first", "", "input directory that holds imagery from the first time interval")
	f.StringVar(&p.SecondDir, "input_dir_second", "", "input directory that holds imagery from the second time interval")
	f.StringVar(&p.AOIVector, "aoi", "", "vector map that holds AOI area/s")
	f.StringVar(&p.AOIGeoJSON, "aoi_geojson", "", "GeoJSON file whose bounds delimit the AOI (alternative to aoi)")
	f.StringVar(&p.LossVector, "ndvi_loss_map_vect", "", "output vector map that contains areas of NDVI loss")
	f.StringVar(&p.LossRaster, "ndvi_loss_map_rast", "", "output raster map that contains areas of NDVI loss")
	f.StringVar(&p.DiffRaster, "ndvi_diff_map", "", "output raster map that contains the NDVI difference map")
	f.StringVar(&p.NDVIFirst, "ndvi_map_first", "", "NDVI raster map of the first time interval")
	f.StringVar(&p.NDVISecond, "ndvi_map_second", "", "NDVI raster map of the second time interval")
	f.StringVar(&p.RGBIBasename, "rgbi_basename", "", "basename to save aggregated RGBI-groups")
	f.StringVar(&p.OutputDir, "output_dir", "", "output directory to write result files (RGBI/ndvi/loss rasters & vectors)")
	f.Float64Var(&ndvidiffFlags.diffThreshold, "ndvi_diff_threshold", 0, "threshold to apply to the NDVI difference map")
	f.Float64Var(&ndvidiffFlags.relevantMinNDVI, "relevant_min_ndvi", 0, "only count NDVI loss for pixels with at least this NDVI in the first interval")
	f.IntVar(&p.NProcs, "nprocs", 1, "number of parallel processes to use")
	f.IntVar(&ndvidiffFlags.offset, "offset", 0, "offset to add to the Sentinel bands due to a specific processing baseline (e.g. -1000)")
	f.IntVar(&p.CloudShadowBuffer, "cloud_shadow_buffer", 5, "buffer in pixels to account for inaccuracies in cloud/shadow masks")
	f.Float64Var(&ndvidiffFlags.minSize, "min_size", 0, "minimum size of detected NDVI loss areas (in map units)")
	f.StringVar(&p.AggregationMethod, "aggregation_method", "minimum", "temporal aggregation method used in t.rast.mosaic")
	f.BoolVarP(&p.CloudMasking, "cloud_masking", "c", false, "run cloud masking (and mosaicking) using t.rast.mosaic/t.sentinel.mask")
	f.BoolVar(&ndvidiffFlags.notify, "notify", false, "send a notification when the run finishes")

	ndvidiffCmd.MarkFlagRequired("input_dir_first")
	ndvidiffCmd.MarkFlagRequired("input_dir_second")
	rootCmd.AddCommand(ndvidiffCmd)
}
