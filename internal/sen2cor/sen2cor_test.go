package sen2cor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

const (
	l1cScene = "S2B_MSIL1C_20220131T102209_N0400_R065_T32UNE_20220131T123456.SAFE"
	l2aScene = "S2B_MSIL2A_20220131T102209_N0400_R065_T32UNE_20220131T140000.SAFE"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testParams(t *testing.T) (Params, string) {
	t.Helper()
	home := t.TempDir()
	cfg := filepath.Join(home, "cfg")
	require.NoError(t, os.MkdirAll(filepath.Join(home, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(cfg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg, gippFileName), []byte(sampleGIPP), 0o644))

	input := filepath.Join(t.TempDir(), l1cScene)
	require.NoError(t, os.MkdirAll(input, 0o755))
	outputDir := t.TempDir()

	return Params{
		InputSAFE:   input,
		OutputDir:   outputDir,
		Sen2corHome: home,
		AerosolType: "rural",
		Season:      "auto",
		NProcs:      1,
	}, outputDir
}

func TestParamsValidate(t *testing.T) {
	p := Params{AerosolType: "rural", Season: "summer"}
	assert.NoError(t, p.validate())

	p.AerosolType = "urban"
	assert.ErrorContains(t, p.validate(), "invalid aerosol type")

	p.AerosolType = "auto"
	p.Season = "spring"
	assert.ErrorContains(t, p.validate(), "invalid season")
}

func TestRunSuccess(t *testing.T) {
	p, outputDir := testParams(t)

	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		if len(cmd.Args) > 0 && cmd.Args[0] == "--help" {
			return grass.Result{}, nil
		}
		// the product appears in the output directory during the run
		require.NoError(t, os.MkdirAll(filepath.Join(outputDir, l2aScene), 0o755))
		return grass.Result{Stdout: []byte("Progress[%]: 100.00 : Application terminated successfully.\n")}, nil
	}}
	d := NewDriver(mock, testLogger())
	defer d.Cleanup(p.Sen2corHome)

	require.NoError(t, d.Run(context.Background(), p))

	require.Len(t, mock.Calls, 2)
	run := mock.Calls[1]
	assert.True(t, strings.HasSuffix(run.Name, "L2A_Process"))
	assert.Equal(t, "--GIP_L2A", run.Args[0])
	assert.Contains(t, run.Args, "--output_dir")
	assert.Equal(t, p.InputSAFE, run.Args[len(run.Args)-1])
}

func TestRunFailureRemovesPartialOutput(t *testing.T) {
	p, outputDir := testParams(t)
	partial := filepath.Join(outputDir, l2aScene)

	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		if len(cmd.Args) > 0 && cmd.Args[0] == "--help" {
			return grass.Result{}, nil
		}
		require.NoError(t, os.MkdirAll(partial, 0o755))
		return grass.Result{Stdout: []byte("Progress[%]: 42.00\n")}, nil
	}}
	d := NewDriver(mock, testLogger())

	err := d.Run(context.Background(), p)
	assert.ErrorContains(t, err, "error using sen2cor")

	d.Cleanup(p.Sen2corHome)
	_, statErr := os.Stat(partial)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunBrokenInstallation(t *testing.T) {
	p, _ := testParams(t)
	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		return grass.Result{Stderr: []byte("ModuleNotFoundError: No module named 'L2A_Process'")}, nil
	}}
	d := NewDriver(mock, testLogger())

	err := d.Run(context.Background(), p)
	assert.ErrorContains(t, err, "sen2cor is not installed properly")
}

func TestRunRejectsNonSAFEInput(t *testing.T) {
	p, _ := testParams(t)
	plainDir := t.TempDir()
	p.InputSAFE = plainDir

	mock := &grass.MockRunner{}
	d := NewDriver(mock, testLogger())

	err := d.Run(context.Background(), p)
	assert.ErrorContains(t, err, "not in .SAFE format")
}

func TestMatchOutputScene(t *testing.T) {
	outputDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, l2aScene), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "unrelated"), 0o755))
	d := NewDriver(nil, testLogger())

	scene, err := d.matchOutputScene(l1cScene, outputDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, l2aScene), scene)
}

func TestMatchOutputSceneNone(t *testing.T) {
	d := NewDriver(nil, testLogger())
	scene, err := d.matchOutputScene(l1cScene, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, scene)
}
