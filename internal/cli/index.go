package cli

import (
	"github.com/spf13/cobra"

	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/indices"
)

var indexFlags struct {
	bands  indices.Bands
	index  string
	output string
	nprocs int
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Calculate a spectral index or texture measure",
	Long: `Calculates NDVI, NDWI, NDBI, BSI or the ASM texture measure
from Sentinel-2 band rasters, optionally tiled over multiple processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := indices.Parse(indexFlags.index)
		if err != nil {
			return err
		}
		nprocs, err := grass.CheckNprocs(indexFlags.nprocs)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		session := newSession()
		defer session.Cleanup(ctx)

		log.Infof("Calculation of %s...", idx.Description())
		return indices.Compute(ctx, session, idx, indexFlags.output, indexFlags.bands, nprocs)
	},
}

func init() {
	f := indexCmd.Flags()
	f.StringVar(&indexFlags.bands.Red, "red", "", "name of red band")
	f.StringVar(&indexFlags.bands.NIR, "nir", "", "name of NIR band")
	f.StringVar(&indexFlags.bands.Green, "green", "", "name of green band")
	f.StringVar(&indexFlags.bands.Blue, "blue", "", "name of blue band")
	f.StringVar(&indexFlags.bands.SWIR, "swir", "", "name of SWIR band")
	f.StringVar(&indexFlags.output, "output", "", "name for the output index raster")
	f.StringVar(&indexFlags.index, "index", "", "index to be calculated (NDVI, NDWI, NDBI, BSI, asm)")
	f.IntVar(&indexFlags.nprocs, "nprocs", -2, "number of cores for multiprocessing, -2 is n_cores-1")

	indexCmd.MarkFlagRequired("output")
	indexCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(indexCmd)
}
