// Package cli wires the toolkit commands together.
package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mundialis/i.sentinel-2/internal/config"
	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/notification"
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "s2tools",
	Short: "Sentinel-2 processing drivers on top of GRASS GIS",
	Long: `s2tools bundles Sentinel-2 processing workflows that drive an
external GRASS GIS installation: spectral index calculation, NDVI
change detection, automatic training data generation and atmospheric
correction via sen2cor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogLevels()
	},
}

func setLogLevels() {
	switch {
	case viper.GetBool("debug"):
		log.SetLevel(logrus.DebugLevel)
	case viper.GetBool("quiet"):
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// newSession builds a GRASS session running real commands.
func newSession() *grass.Session {
	return grass.NewSession(&grass.ExecRunner{BaseEnv: config.GrassEnv()}, log)
}

func printBanner() {
	banner := figure.NewFigure("s2tools", "small", true)
	color.Cyan(banner.String())
}

// Execute runs the CLI. Panics are reported like fatal errors so a
// crashed run still notifies.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			color.Red("PANIC: %v", r)
			notification.SendError(fmt.Sprintf("s2tools panic:\n\n%v\n\nStack trace:\n%s", r, debug.Stack()))
			os.Exit(1)
		}
	}()

	config.Load()
	printBanner()
	if err := rootCmd.Execute(); err != nil {
		color.Red("ERROR: %s", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug output")
	rootCmd.PersistentFlags().Bool("quiet", false, "only print warnings and errors")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}
