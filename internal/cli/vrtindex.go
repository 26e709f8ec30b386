package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/indices"
	"github.com/mundialis/i.sentinel-2/internal/vrt"
)

var vrtindexFlags struct {
	input    string
	indices  string
	nprocs   int
	indexRes float64
	prefix   string
}

var vrtindexCmd = &cobra.Command{
	Use:   "vrtindex",
	Short: "Build band VRTs and calculate indices in parallel",
	Long: `Builds one virtual raster per band from input rasters sharing a
band suffix (e.g. "_B4") and calculates the requested indices over them
in parallel. Indicate 'None' to only build the VRTs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := splitList(vrtindexFlags.input)
		if len(inputs) == 0 {
			return fmt.Errorf("no input rasters given")
		}
		var idxs []indices.Index
		skip := false
		for _, item := range splitList(vrtindexFlags.indices) {
			if strings.EqualFold(item, "None") {
				skip = true
				continue
			}
			idx, err := indices.Parse(item)
			if err != nil {
				return err
			}
			idxs = append(idxs, idx)
		}
		if skip {
			idxs = nil
		}
		nprocs := grass.ClampNprocs(vrtindexFlags.nprocs, log)

		ctx := cmd.Context()
		session := newSession()
		defer session.Cleanup(ctx)

		groups, err := vrt.GroupByBand(inputs)
		if err != nil {
			return err
		}
		vrts, err := vrt.Build(ctx, session, log, groups, vrtindexFlags.prefix)
		if err != nil {
			return err
		}
		return vrt.ComputeAll(ctx, session, log, vrts, idxs,
			vrtindexFlags.prefix, vrtindexFlags.indexRes, nprocs)
	},
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func init() {
	f := vrtindexCmd.Flags()
	f.StringVar(&vrtindexFlags.input, "input", "", "input raster map names with band suffixes, comma separated")
	f.StringVar(&vrtindexFlags.indices, "indices", "NDVI,NDWI,NDBI,BSI,asm", "indices (and texture measure) to be calculated, or 'None'")
	f.IntVar(&vrtindexFlags.nprocs, "nprocs", -2, "number of cores for multiprocessing, -2 is n_cores-1")
	f.Float64Var(&vrtindexFlags.indexRes, "index_res", 10, "spatial resolution of indices to be calculated")
	f.StringVar(&vrtindexFlags.prefix, "prefix", "", "prefix in front of output maps")

	vrtindexCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(vrtindexCmd)
}
