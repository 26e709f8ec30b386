package ndvidiff

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

func TestListBandSTRDS(t *testing.T) {
	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		out := strings.Join([]string{
			"s2_timestep0_B04@mapset",
			"s2_timestep0_B08@mapset",
			"s2_timestep0_clouds_sen2cor@mapset",
			"s2_timestep1_B04@mapset",
			"other_strds@mapset",
		}, "\n")
		return grass.Result{Stdout: []byte(out)}, nil
	}}
	s := grass.NewSession(mock, testLogger())

	items, err := listBandSTRDS(context.Background(), s, "s2_timestep0")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2_timestep0_B04", "s2_timestep0_B08"}, items)
}

func TestMatchBand(t *testing.T) {
	bands := []string{"B02", "B03", "B04", "B08"}
	assert.Equal(t, "B04", matchBand("s2_timestep0_B04", bands))
	assert.Equal(t, "", matchBand("s2_timestep0_clouds", bands))
}

func TestProcessWindowMosaicsRedAndNIR(t *testing.T) {
	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		if cmd.Name == "t.list" {
			return grass.Result{Stdout: []byte("s2_timestep0_B04@m\ns2_timestep0_B08@m\n")}, nil
		}
		return grass.Result{}, nil
	}}
	s := grass.NewSession(mock, testLogger())
	w := &window{index: 0, dir: "/data/first"}
	p := Params{AggregationMethod: "median"}

	err := processWindow(context.Background(), s, testLogger(), p, w, 1)
	require.NoError(t, err)
	assert.Equal(t, "s2_timestep0_ndvi", w.ndvi)
	assert.Empty(t, w.group)

	names := mock.CallNames()
	assert.Equal(t, "t.sentinel.import", names[0])
	// no cloud masking requested
	assert.NotContains(t, names, "t.sentinel.mask")

	var mosaics int
	for _, c := range mock.Calls {
		if c.Name == "t.rast.mosaic" {
			mosaics++
			assert.Contains(t, c.Args, "method=median")
			assert.Contains(t, c.Args, "granularity=all")
		}
	}
	assert.Equal(t, 2, mosaics)
}

func TestProcessWindowCloudMasking(t *testing.T) {
	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		if cmd.Name == "t.list" {
			return grass.Result{Stdout: []byte("s2_timestep1_B04@m\ns2_timestep1_B08@m\n")}, nil
		}
		return grass.Result{}, nil
	}}
	s := grass.NewSession(mock, testLogger())
	w := &window{index: 1, dir: "/data/second"}
	p := Params{AggregationMethod: "average", CloudMasking: true, CloudShadowBuffer: 30}

	err := processWindow(context.Background(), s, testLogger(), p, w, 2)
	require.NoError(t, err)

	names := mock.CallNames()
	assert.Contains(t, names, "t.sentinel.mask")
	assert.Contains(t, names, "t.rast.algebra")

	for _, c := range mock.Calls {
		switch c.Name {
		case "t.sentinel.import":
			assert.Contains(t, c.Args, "pattern="+bandPatternClouds)
			assert.Contains(t, c.Args, "-c")
		case "t.rast.mosaic":
			assert.Contains(t, c.Args, "cloudbuffer=30")
			assert.Contains(t, c.Args, "shadowbuffer=30")
		}
	}
}

func TestProcessWindowMissingBands(t *testing.T) {
	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		if cmd.Name == "t.list" {
			return grass.Result{Stdout: []byte("s2_timestep0_B04@m\n")}, nil
		}
		return grass.Result{}, nil
	}}
	s := grass.NewSession(mock, testLogger())
	w := &window{index: 0, dir: "/data/first"}

	err := processWindow(context.Background(), s, testLogger(), Params{AggregationMethod: "average"}, w, 1)
	assert.ErrorContains(t, err, "no red/NIR band data")
}
