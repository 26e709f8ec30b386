package training

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// writeReport stores the per-class delineation statistics as CSV.
func writeReport(path string, stats []Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	return gocsv.MarshalFile(&stats, f)
}
