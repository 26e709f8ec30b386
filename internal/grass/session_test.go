package grass

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func paramValue(args []string, key string) string {
	prefix := key + "="
	for _, a := range args {
		if strings.HasPrefix(a, prefix) {
			return strings.TrimPrefix(a, prefix)
		}
	}
	return ""
}

func TestPercentile(t *testing.T) {
	mock := &MockRunner{Handler: func(cmd Command) (Result, error) {
		return Result{Stdout: []byte("25:0.250000:0.421\n")}, nil
	}}
	s := NewSession(mock, testLogger())

	value, err := s.Percentile(context.Background(), "ndvi", 25)
	require.NoError(t, err)
	assert.InDelta(t, 0.421, value, 1e-9)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "r.quantile", mock.Calls[0].Name)
	assert.Equal(t, "25", paramValue(mock.Calls[0].Args, "percentiles"))
}

func TestPercentileNoOutput(t *testing.T) {
	mock := &MockRunner{}
	s := NewSession(mock, testLogger())

	_, err := s.Percentile(context.Background(), "ndvi", 75)
	assert.ErrorContains(t, err, "no quantile")
}

func TestCellCount(t *testing.T) {
	mock := &MockRunner{Handler: func(cmd Command) (Result, error) {
		return Result{Stdout: []byte("n=152345\nmean=0.31\n")}, nil
	}}
	s := NewSession(mock, testLogger())

	n, err := s.CellCount(context.Background(), "ndvi")
	require.NoError(t, err)
	assert.Equal(t, 152345, n)
}

func TestFindFile(t *testing.T) {
	mock := &MockRunner{Handler: func(cmd Command) (Result, error) {
		if paramValue(cmd.Args, "file") == "ndvi" {
			return Result{Stdout: []byte("file='/grassdata/loc/PERMANENT/cell/ndvi'\n")}, nil
		}
		return Result{}, fmt.Errorf("g.findfile: exit status 1")
	}}
	s := NewSession(mock, testLogger())

	assert.True(t, s.FindFile(context.Background(), "ndvi", "raster"))
	assert.False(t, s.FindFile(context.Background(), "missing", "raster"))
}

func TestStashAndUnstashMask(t *testing.T) {
	mock := &MockRunner{Handler: func(cmd Command) (Result, error) {
		if cmd.Name == "g.findfile" {
			return Result{Stdout: []byte("file='/grassdata/loc/PERMANENT/cell/MASK'\n")}, nil
		}
		return Result{}, nil
	}}
	s := NewSession(mock, testLogger())
	ctx := context.Background()

	require.NoError(t, s.StashMask(ctx))
	require.NoError(t, s.UnstashMask(ctx))

	names := mock.CallNames()
	assert.Contains(t, names, "g.rename")
	assert.Equal(t, "r.mask", names[len(names)-1])

	// a second unstash must be a no-op
	before := len(mock.Calls)
	require.NoError(t, s.UnstashMask(ctx))
	assert.Len(t, mock.Calls, before)
}

func TestCleanupRemovesRegisteredMaps(t *testing.T) {
	mock := &MockRunner{Handler: func(cmd Command) (Result, error) {
		if cmd.Name == "g.findfile" {
			name := paramValue(cmd.Args, "file")
			if name == "MASK" {
				return Result{}, fmt.Errorf("g.findfile: exit status 1")
			}
			return Result{Stdout: []byte("file='/grassdata/x/" + name + "'\n")}, nil
		}
		return Result{}, nil
	}}
	s := NewSession(mock, testLogger())
	s.AddRaster("tmp_ndvi_123")
	s.AddVector("tmp_points_123")
	s.AddSTRDS("s2_timestep0")

	s.Cleanup(context.Background())

	var removed []string
	for _, c := range mock.Calls {
		switch c.Name {
		case "g.remove":
			removed = append(removed, paramValue(c.Args, "name"))
		case "t.remove":
			removed = append(removed, paramValue(c.Args, "inputs"))
		}
	}
	assert.ElementsMatch(t, []string{"tmp_ndvi_123", "tmp_points_123", "s2_timestep0"}, removed)
}

func TestCleanupSkipsMissingMaps(t *testing.T) {
	mock := &MockRunner{Handler: func(cmd Command) (Result, error) {
		if cmd.Name == "g.findfile" {
			return Result{}, fmt.Errorf("g.findfile: exit status 1")
		}
		return Result{}, nil
	}}
	s := NewSession(mock, testLogger())
	s.AddRaster("never_created")

	s.Cleanup(context.Background())
	assert.NotContains(t, mock.CallNames(), "g.remove")
}

func TestTempName(t *testing.T) {
	name := TempName("tmp_mask_old")
	assert.True(t, strings.HasPrefix(name, "tmp_mask_old_"))
	assert.Equal(t, name, TempName("tmp_mask_old"))
}
