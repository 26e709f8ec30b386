package vrt

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundialis/i.sentinel-2/internal/grass"
	"github.com/mundialis/i.sentinel-2/internal/indices"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestGroupByBand(t *testing.T) {
	groups, err := GroupByBand([]string{
		"T32UNE_20220101_B04_10m",
		"T32UNE_20220101_B08_10m",
		"T32UPE_20220101_B04_10m",
		"T32UPE_20220101_B08_10m",
	})
	require.NoError(t, err)
	assert.Len(t, groups, 2)
	assert.Equal(t, []string{"T32UNE_20220101_B04_10m", "T32UPE_20220101_B04_10m"}, groups["B04"])
	assert.Equal(t, []string{"T32UNE_20220101_B08_10m", "T32UPE_20220101_B08_10m"}, groups["B08"])
}

func TestGroupByBandNoToken(t *testing.T) {
	_, err := GroupByBand([]string{"ndvi_mosaic"})
	assert.ErrorContains(t, err, "no band suffix")
}

func TestGroupByBandEmpty(t *testing.T) {
	_, err := GroupByBand(nil)
	assert.ErrorContains(t, err, "no input rasters")
}

func TestBandTokenIndexLastMatchWins(t *testing.T) {
	// "B1" style prefixes earlier in the name must not shadow the band
	idx, err := bandTokenIndex("B1_scene_B11_20m")
	require.NoError(t, err)
	band, err := bandAt("B1_scene_B11_20m", idx)
	require.NoError(t, err)
	assert.Equal(t, "B11", band)
}

func TestBuildMultiple(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())

	vrts, err := Build(context.Background(), s, testLogger(), map[string][]string{
		"B04": {"a_B04", "b_B04"},
	}, "sen2_vrt_")
	require.NoError(t, err)
	assert.Equal(t, []string{"sen2_vrt_B04"}, vrts)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "r.buildvrt", mock.Calls[0].Name)
	assert.Contains(t, mock.Calls[0].Args, "input=a_B04,b_B04")
	assert.Contains(t, mock.Calls[0].Args, "output=sen2_vrt_B04")
}

func TestBuildSingleCopies(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())

	vrts, err := Build(context.Background(), s, testLogger(), map[string][]string{
		"B08": {"a_B08"},
	}, "sen2_vrt_")
	require.NoError(t, err)
	assert.Equal(t, []string{"sen2_vrt_B08"}, vrts)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "g.copy", mock.Calls[0].Name)
	assert.Contains(t, mock.Calls[0].Args, "raster=a_B08,sen2_vrt_B08")
}

var testVRTs = []string{
	"sen2_vrt_B02", "sen2_vrt_B03", "sen2_vrt_B04",
	"sen2_vrt_B08", "sen2_vrt_B11", "sen2_vrt_B12",
}

func TestBandsFor(t *testing.T) {
	b, err := BandsFor(indices.NDVI, testVRTs)
	require.NoError(t, err)
	assert.Equal(t, "sen2_vrt_B04", b.Red)
	assert.Equal(t, "sen2_vrt_B08", b.NIR)

	b, err = BandsFor(indices.BSI, testVRTs)
	require.NoError(t, err)
	assert.Equal(t, "sen2_vrt_B11", b.SWIR)
	assert.Equal(t, "sen2_vrt_B02", b.Blue)
}

func TestBandsForBlueNotTwelve(t *testing.T) {
	// without a B02 vrt the blue band must not fall back to B12
	_, err := BandsFor(indices.BSI, []string{
		"sen2_vrt_B04", "sen2_vrt_B08", "sen2_vrt_B11", "sen2_vrt_B12",
	})
	assert.ErrorContains(t, err, "blue band")
}

func TestBandsForMissingNIR(t *testing.T) {
	_, err := BandsFor(indices.NDVI, []string{"sen2_vrt_B04"})
	assert.ErrorContains(t, err, "band suffix 8")
}

func TestComputeAll(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())

	err := ComputeAll(context.Background(), s, testLogger(), testVRTs,
		[]indices.Index{indices.NDVI, indices.NDWI}, "sen2_vrt_", 10, 2)
	require.NoError(t, err)

	names := mock.CallNames()
	var mapcalcs int
	for _, n := range names {
		if n == "r.mapcalc" {
			mapcalcs++
		}
	}
	assert.Equal(t, 2, mapcalcs)
	// region is saved first and restored last
	assert.Equal(t, "g.region", names[0])
	assert.Equal(t, "g.region", names[len(names)-1])
}

func TestComputeAllPropagatesError(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())

	// only B04 present, so NDVI cannot resolve its NIR vrt
	err := ComputeAll(context.Background(), s, testLogger(), []string{"sen2_vrt_B04"},
		[]indices.Index{indices.NDVI}, "sen2_vrt_", 10, 1)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "NDVI"))
}
