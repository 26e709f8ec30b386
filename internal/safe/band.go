package safe

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
)

// godal does not register GDAL drivers on its own
var registerDrivers sync.Once

// Band is one band image inside a SAFE scene.
type Band struct {
	Path       string  `json:"path"`
	Name       string  `json:"name"` // e.g. B04
	Resolution float64 `json:"resolution"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

var bandFileRe = regexp.MustCompile(`_(B[0-9A]{2})(?:_\d0m)?\.jp2$`)

// SceneBands walks a scene directory and probes every band image it
// finds. Non-image files and auxiliary masks are skipped.
func SceneBands(scene Scene) ([]Band, error) {
	var bands []Band
	err := filepath.WalkDir(scene.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".jp2") {
			return nil
		}
		m := bandFileRe.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			return nil
		}
		band, err := probe(path, m[1])
		if err != nil {
			return fmt.Errorf("probing %s: %w", path, err)
		}
		bands = append(bands, band)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bands, nil
}

func probe(path, name string) (Band, error) {
	registerDrivers.Do(godal.RegisterAll)
	ds, err := godal.Open(path)
	if err != nil {
		return Band{}, err
	}
	defer ds.Close()

	st := ds.Structure()
	band := Band{
		Path:   path,
		Name:   name,
		Width:  st.SizeX,
		Height: st.SizeY,
	}
	gt, err := ds.GeoTransform()
	if err == nil {
		band.Resolution = gt[1]
	}
	return band, nil
}
