package ndvidiff

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

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestIQRThreshold(t *testing.T) {
	assert.InDelta(t, -0.25, IQRThreshold(-0.1, 0.0), 1e-9)
	assert.InDelta(t, -40.0, IQRThreshold(-10, 10), 1e-9)
}

func TestLossThresholdUser(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())
	user := -0.2

	threshold, err := lossThreshold(context.Background(), s, "diff", &user)
	require.NoError(t, err)
	assert.Equal(t, -0.2, threshold)
	assert.Empty(t, mock.Calls, "user threshold must not query statistics")
}

func TestLossThresholdFromQuartiles(t *testing.T) {
	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		return grass.Result{Stdout: []byte("first_quartile=-10\nthird_quartile=10\n")}, nil
	}}
	s := grass.NewSession(mock, testLogger())

	threshold, err := lossThreshold(context.Background(), s, "diff", nil)
	require.NoError(t, err)
	assert.InDelta(t, -40.0, threshold, 1e-9)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "r.univar", mock.Calls[0].Name)
	assert.Contains(t, mock.Calls[0].Args, "-ge")
}

func TestLossThresholdMissingQuartiles(t *testing.T) {
	mock := &grass.MockRunner{Handler: func(cmd grass.Command) (grass.Result, error) {
		return grass.Result{Stdout: []byte("n=100\n")}, nil
	}}
	s := grass.NewSession(mock, testLogger())

	_, err := lossThreshold(context.Background(), s, "diff", nil)
	assert.ErrorContains(t, err, "no quartiles")
}

func TestLossExpression(t *testing.T) {
	assert.Equal(t, "loss = if(diff<=-40,1,null())",
		lossExpression("loss", "diff", -40, "ndvi0", nil))

	minNDVI := 130.0
	assert.Equal(t, "loss = if((diff<=-40 && ndvi0>=130),1,null())",
		lossExpression("loss", "diff", -40, "ndvi0", &minNDVI))
}

func TestParamsValidate(t *testing.T) {
	p := Params{AggregationMethod: "average"}
	assert.ErrorContains(t, p.validate(), "at least one of")

	p.OutputDir = "/tmp/out"
	assert.ErrorContains(t, p.validate(), "AOI")

	p.AOIVector = "aoi"
	assert.NoError(t, p.validate())

	p.AggregationMethod = "bogus"
	assert.ErrorContains(t, p.validate(), "unknown aggregation method")
}

func TestVectorizeMinSize(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())
	minSize := 250.0
	p := Params{LossVector: "loss_vect", MinSize: &minSize}

	vect, err := vectorize(context.Background(), s, testLogger(), p, "loss")
	require.NoError(t, err)
	assert.Equal(t, "loss_vect", vect)

	names := mock.CallNames()
	assert.Equal(t, []string{"r.to.vect", "v.clean"}, names)
	assert.Contains(t, mock.Calls[1].Args, "tool=rmarea")
	assert.Contains(t, mock.Calls[1].Args, "threshold=250")
}

func TestVectorizeNoMinSize(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())
	p := Params{LossVector: "loss_vect"}

	vect, err := vectorize(context.Background(), s, testLogger(), p, "loss")
	require.NoError(t, err)
	assert.Equal(t, "loss_vect", vect)
	assert.Equal(t, []string{"r.to.vect", "g.rename"}, mock.CallNames())
}

func TestEnsureAOIVectorPassesThrough(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())

	vect, err := ensureAOIVector(context.Background(), s, Params{AOIVector: "aoi_map"})
	require.NoError(t, err)
	assert.Equal(t, "aoi_map", vect)
	assert.Empty(t, mock.Calls)
}

func TestEnsureAOIVectorImportsGeoJSON(t *testing.T) {
	mock := &grass.MockRunner{}
	s := grass.NewSession(mock, testLogger())

	vect, err := ensureAOIVector(context.Background(), s, Params{AOIGeoJSON: "/data/aoi.geojson"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(vect, "aoi_"))

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "v.in.ogr", mock.Calls[0].Name)
	assert.Contains(t, mock.Calls[0].Args, "input=/data/aoi.geojson")
	assert.Contains(t, mock.Calls[0].Args, "output="+vect)
}

func TestGeoJSONBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aoi.geojson")
	fc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[7,50],[8,50],[8,51],[7,51],[7,50]]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[9,49]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(fc), 0o644))

	bound, err := geoJSONBounds(path)
	require.NoError(t, err)
	assert.Equal(t, 7.0, bound.Min.X())
	assert.Equal(t, 49.0, bound.Min.Y())
	assert.Equal(t, 9.0, bound.Max.X())
	assert.Equal(t, 51.0, bound.Max.Y())
}

func TestGeoJSONBoundsBareGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aoi.geojson")
	g := `{"type":"Polygon","coordinates":[[[7,50],[8,50],[8,51],[7,51],[7,50]]]}`
	require.NoError(t, os.WriteFile(path, []byte(g), 0o644))

	bound, err := geoJSONBounds(path)
	require.NoError(t, err)
	assert.Equal(t, 8.0, bound.Max.X())
}

func TestGeoJSONBoundsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aoi.geojson")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := geoJSONBounds(path)
	assert.ErrorContains(t, err, "parsing AOI file")
}
