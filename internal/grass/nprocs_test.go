package grass

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckNprocs(t *testing.T) {
	ncpu := runtime.NumCPU()

	n, err := CheckNprocs(-2)
	require.NoError(t, err)
	if ncpu > 1 {
		assert.Equal(t, ncpu-1, n)
	} else {
		assert.Equal(t, 1, n)
	}

	n, err = CheckNprocs(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = CheckNprocs(ncpu + 1)
	assert.ErrorContains(t, err, "CPUs available")
}

func TestClampNprocs(t *testing.T) {
	ncpu := runtime.NumCPU()
	log := testLogger()

	assert.Equal(t, 1, ClampNprocs(0, log))
	assert.Equal(t, 1, ClampNprocs(1, log))

	clamped := ClampNprocs(ncpu+4, log)
	if ncpu > 1 {
		assert.Equal(t, ncpu-1, clamped)
	} else {
		assert.Equal(t, 1, clamped)
	}
}
