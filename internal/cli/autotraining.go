package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mundialis/i.sentinel-2/internal/training"
)

var autotrainingParams training.Params

var autotrainingCmd = &cobra.Command{
	Use:   "autotraining",
	Short: "Automatically generate land-cover training data",
	Long: `Generates training data from input indices, a reference
classification and a treecover map. Creates the classes water, low
vegetation, forest, bare soil and built-up, samples training points per
class and writes them to a vector map.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if autotrainingParams.PercentageThreshold < 0 || autotrainingParams.PercentageThreshold > 50 {
			return fmt.Errorf("percentage_threshold must be between 0.0 and 50.0")
		}
		ctx := cmd.Context()
		session := newSession()
		defer session.Cleanup(ctx)
		_, err := training.Generate(ctx, session, log, autotrainingParams)
		return err
	},
}

func init() {
	f := autotrainingCmd.Flags()
	f.StringVar(&autotrainingParams.NDVI, "ndvi", "", "input NDVI raster map")
	f.StringVar(&autotrainingParams.NDWI, "ndwi", "", "input NDWI raster map")
	f.StringVar(&autotrainingParams.NDBI, "ndbi", "", "input NDBI raster map")
	f.StringVar(&autotrainingParams.BSI, "bsi", "", "input BSI raster map")
	f.StringVar(&autotrainingParams.RefClassProbav, "ref_classification_probav", "", "input reference probav classification map")
	f.StringVar(&autotrainingParams.RefTreecover, "ref_treecover_fraction_probav", "", "input reference probav treecover fraction map")
	f.StringVar(&autotrainingParams.RefClassGong, "ref_classification_gong", "", "input reference gong et al. classification map")
	f.StringVar(&autotrainingParams.RefGHSBuilt, "ref_ghs_built", "", "input reference global human settlement built-up map (GHS-BUILT)")
	f.Float64Var(&autotrainingParams.PercentageThreshold, "percentage_threshold", 0.1, "minimum percentage of area potential training data of a class has to cover to be included")
	f.IntVar(&autotrainingParams.NPoints, "npoints", 10000, "number of sampling points per class in the output vector map")
	f.StringVar(&autotrainingParams.OutputRaster, "output_raster", "", "output raster map with potential training areas")
	f.StringVar(&autotrainingParams.OutputVector, "output_vector", "", "output vector map with training data points")
	f.StringVar(&autotrainingParams.StrColumn, "str_column", "lulc_class_str", "name of the string class column in output_vector")
	f.StringVar(&autotrainingParams.IntColumn, "int_column", "lulc_class_int", "name of the integer class column in output_vector")
	f.StringVar(&autotrainingParams.ReportPath, "report", "", "optional CSV file recording per-class thresholds and pixel counts")

	for _, required := range []string{
		"ndvi", "ndwi", "ndbi",
		"ref_classification_probav", "ref_treecover_fraction_probav", "ref_ghs_built",
		"output_raster", "output_vector",
	} {
		autotrainingCmd.MarkFlagRequired(required)
	}
	rootCmd.AddCommand(autotrainingCmd)
}
