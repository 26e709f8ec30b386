package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mundialis/i.sentinel-2/internal/config"
	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/notification"
	"github.com/mundialis/i.sentinel-2/internal/sen2cor"
)

var sen2corFlags struct {
	params sen2cor.Params
	notify bool
}

var sen2corCmd = &cobra.Command{
	Use:   "sen2cor",
	Short: "Atmospherically correct a Sentinel-2 L1C scene using sen2cor",
	Long: `Runs atmospheric correction on a single Sentinel-2 L1C scene in
.SAFE format by driving the sen2cor L2A_Process binary with a per-run
parameter file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		driver := sen2cor.NewDriver(&grass.ExecRunner{BaseEnv: config.GrassEnv()}, log)
		defer driver.Cleanup(sen2corFlags.params.Sen2corHome)

		err := driver.Run(ctx, sen2corFlags.params)
		if sen2corFlags.notify {
			if err != nil {
				notification.SendError(fmt.Sprintf("s2tools sen2cor failed: %s", err.Error()))
			} else {
				notification.SendSuccess(fmt.Sprintf("s2tools sen2cor corrected %s", sen2corFlags.params.InputSAFE))
			}
		}
		return err
	},
}

func init() {
	f := sen2corCmd.Flags()
	p := &sen2corFlags.params
	f.StringVar(&p.InputSAFE, "input_file", "", "path to Sentinel-2 L1C dataset in .SAFE format")
	f.StringVar(&p.OutputDir, "output_dir", "", "output directory")
	f.StringVar(&p.Sen2corHome, "sen2cor_path", "", "path to sen2cor home directory, e.g. /home/user/sen2cor")
	f.StringVar(&p.AerosolType, "aerosol_type", "rural", "aerosol model to use (rural, maritime, auto)")
	f.StringVar(&p.Season, "season", "auto", "mid-latitude season (summer, winter, auto)")
	f.IntVar(&p.OzoneContent, "ozone_content", 0, "ozone content in Dobson Unit, 0 approximates from L1C metadata")
	f.IntVar(&p.NProcs, "nprocs", -2, "number of parallel processes used for band importing in sen2cor")
	f.BoolVarP(&p.RemoveInput, "remove_input", "r", false, "remove input folder after successful completion")
	f.BoolVar(&sen2corFlags.notify, "notify", false, "send a notification when the run finishes")

	for _, required := range []string{"input_file", "output_dir", "sen2cor_path"} {
		sen2corCmd.MarkFlagRequired(required)
	}
	rootCmd.AddCommand(sen2corCmd)
}
