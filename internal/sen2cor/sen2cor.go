// Package sen2cor drives the sen2cor L2A_Process binary to
// atmospherically correct a single Sentinel-2 L1C scene.
package sen2cor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/safe"
)

// Params collects the inputs of one correction run.
type Params struct {
	InputSAFE   string
	OutputDir   string
	Sen2corHome string

	AerosolType  string // rural, maritime or auto
	Season       string // summer, winter or auto
	OzoneContent int    // 0 approximates from the L1C metadata

	NProcs      int
	RemoveInput bool
}

func (p Params) validate() error {
	switch p.AerosolType {
	case "rural", "maritime", "auto":
	default:
		return fmt.Errorf("invalid aerosol type <%s>", p.AerosolType)
	}
	switch p.Season {
	case "summer", "winter", "auto":
	default:
		return fmt.Errorf("invalid season <%s>", p.Season)
	}
	return nil
}

// Driver runs sen2cor and cleans up what it strews around.
type Driver struct {
	runner grass.Runner
	log    logrus.FieldLogger

	demDir    string
	rmFiles   []string
	rmFolders []string
}

func NewDriver(runner grass.Runner, log logrus.FieldLogger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{runner: runner, log: log}
}

// Run performs the correction. Output and intermediate files of a failed
// run are registered for removal; call Cleanup afterwards in any case.
func (d *Driver) Run(ctx context.Context, p Params) error {
	if err := p.validate(); err != nil {
		return err
	}
	if info, err := os.Stat(p.Sen2corHome); err != nil || !info.IsDir() {
		return fmt.Errorf("directory %s does not exist", p.Sen2corHome)
	}

	l2aProcess := filepath.Join(p.Sen2corHome, "bin", "L2A_Process")
	probe, err := d.runner.Run(ctx, grass.Command{Name: l2aProcess, Args: []string{"--help"}})
	if err != nil || len(probe.Stderr) > 0 {
		return fmt.Errorf("sen2cor is not installed properly")
	}

	nprocs, err := grass.CheckNprocs(p.NProcs)
	if err != nil {
		return err
	}

	if info, err := os.Stat(p.InputSAFE); err != nil || !info.IsDir() {
		return fmt.Errorf("input file %s not found", p.InputSAFE)
	}
	if !strings.HasSuffix(p.InputSAFE, ".SAFE") {
		return fmt.Errorf("input file is not in .SAFE format")
	}

	gippPath, err := FindGIPP(p.Sen2corHome)
	if err != nil {
		return err
	}
	d.demDir = grass.TempName("srtm")
	gippModified, err := WriteModifiedGIPP(gippPath, Settings{
		NrThreads:    nprocs,
		DEMDir:       d.demDir,
		AerosolType:  p.AerosolType,
		Season:       p.Season,
		OzoneContent: p.OzoneContent,
	})
	if err != nil {
		return fmt.Errorf("preparing GIPP: %w", err)
	}
	d.rmFiles = append(d.rmFiles, gippModified)

	args := []string{"--GIP_L2A", gippModified, "--output_dir", p.OutputDir, p.InputSAFE}
	d.log.Infof("Running sen2cor using command:\n%s %s\n...", l2aProcess, strings.Join(args, " "))
	res, runErr := d.runner.Run(ctx, grass.Command{Name: l2aProcess, Args: args})
	successful := strings.Contains(string(res.Stdout), "terminated successfully")

	outputScene, err := d.matchOutputScene(p.InputSAFE, p.OutputDir)
	if err != nil {
		d.log.Warnf("scanning output directory: %v", err)
	}

	if !successful {
		if outputScene != "" {
			// an incomplete result must not look like a product
			d.rmFolders = append(d.rmFolders, outputScene)
		}
		msg := string(res.Stdout) + string(res.Stderr)
		if runErr != nil {
			msg = fmt.Sprintf("%s: %v", msg, runErr)
		}
		return fmt.Errorf("error using sen2cor: %s", msg)
	}

	if outputScene != "" {
		d.log.Infof("Atmospherical Correction complete, generated output file <%s>", outputScene)
	}
	if p.RemoveInput {
		d.rmFolders = append(d.rmFolders, p.InputSAFE)
	}
	return nil
}

// matchOutputScene finds the produced L2A scene: the datatake block of
// the name is the part shared with the L1C input.
func (d *Driver) matchOutputScene(inputSAFE, outputDir string) (string, error) {
	inputBlock, err := safe.DatatakeBlock(inputSAFE)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		block, err := safe.DatatakeBlock(e.Name())
		if err != nil {
			continue
		}
		if block == inputBlock {
			return filepath.Join(outputDir, e.Name()), nil
		}
	}
	return "", nil
}

// Cleanup removes the modified GIPP, downloaded DEM tiles and folders
// registered during the run. sen2cor puts the DEM directory in different
// places depending on version, sometimes in the home directory instead
// of the installation.
func (d *Driver) Cleanup(sen2corHome string) {
	for _, f := range d.rmFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			d.log.Warnf("Unable to remove file %s: %v", f, err)
		}
	}

	if d.demDir != "" {
		candidates := []string{sen2corHome}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, "sen2cor"))
		}
		candidates = append(candidates, filepath.Join("/", "root", "sen2cor"))
		for _, dir := range dedup(candidates) {
			filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if e.IsDir() && strings.Contains(path, d.demDir) {
					d.rmFolders = append(d.rmFolders, path)
					return fs.SkipDir
				}
				return nil
			})
		}
	}

	for _, folder := range d.rmFolders {
		if err := os.RemoveAll(folder); err != nil {
			d.log.Warnf("Unable to remove folder %s: %v", folder, err)
		}
	}
}

func dedup(items []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
