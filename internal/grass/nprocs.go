package grass

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// CheckNprocs validates a requested degree of parallelism. -2 means "all
// cores but one". Requesting more processes than cores is an error.
func CheckNprocs(nprocs int) (int, error) {
	ncpu := runtime.NumCPU()
	if nprocs == -2 {
		if ncpu == 1 {
			return 1, nil
		}
		return ncpu - 1, nil
	}
	if nprocs > ncpu {
		return 0, fmt.Errorf("using %d parallel processes but only %d CPUs available", nprocs, ncpu)
	}
	if nprocs < 1 {
		return 1, nil
	}
	return nprocs, nil
}

// ClampNprocs is the lenient variant: an excessive request is clamped to
// ncpu-1 with a warning instead of failing.
func ClampNprocs(nprocs int, log logrus.FieldLogger) int {
	ncpu := runtime.NumCPU()
	if nprocs == -2 {
		if ncpu == 1 {
			return 1
		}
		return ncpu - 1
	}
	if nprocs > ncpu {
		clamped := ncpu - 1
		if clamped < 1 {
			clamped = 1
		}
		log.Warnf("Using %d parallel processes but only %d CPUs available. Using %d procs.",
			nprocs, ncpu, clamped)
		return clamped
	}
	if nprocs < 1 {
		return 1
	}
	return nprocs
}
