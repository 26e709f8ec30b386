// Package vrt groups band rasters into virtual mosaics and fans index
// computation out over a worker pool.
package vrt

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

// bandToken finds the band component of a raster name. Bands are encoded
// as a short underscore-separated token starting with "B", e.g.
// "S2A_tile1_B04". The token position is detected once on the first name
// and reused for the whole input list.
func bandTokenIndex(name string) (int, error) {
	idx := -1
	for i, part := range strings.Split(name, "_") {
		if len(part) <= 4 && strings.HasPrefix(part, "B") {
			idx = i
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("no band suffix found in raster name <%s>", name)
	}
	return idx, nil
}

func bandAt(name string, idx int) (string, error) {
	parts := strings.Split(name, "_")
	if idx >= len(parts) {
		return "", fmt.Errorf("raster name <%s> has no band component at position %d", name, idx)
	}
	return parts[idx], nil
}

// GroupByBand splits the input rasters into per-band groups.
func GroupByBand(inputs []string) (map[string][]string, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input rasters given")
	}
	idx, err := bandTokenIndex(inputs[0])
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]string)
	for _, name := range inputs {
		band, err := bandAt(name, idx)
		if err != nil {
			return nil, err
		}
		groups[band] = append(groups[band], name)
	}
	return groups, nil
}

// Build creates one VRT raster per band group. Groups with a single
// member are copied instead, since r.buildvrt needs at least two maps.
func Build(ctx context.Context, s *grass.Session, log logrus.FieldLogger, groups map[string][]string, prefix string) ([]string, error) {
	var vrts []string
	for band, members := range groups {
		vrtName := prefix + band
		switch {
		case len(members) > 1:
			if _, err := s.Run(ctx, "r.buildvrt", grass.Options{
				Params: map[string]string{
					"input":  strings.Join(members, ","),
					"output": vrtName,
				},
				Overwrite: true,
			}); err != nil {
				return nil, fmt.Errorf("building vrt for band %s: %w", band, err)
			}
		case len(members) == 1:
			log.Infof("Only one raster dataset found for band %s. Copying...", band)
			if _, err := s.Run(ctx, "g.copy", grass.Options{
				Params:    map[string]string{"raster": members[0] + "," + vrtName},
				Overwrite: true,
			}); err != nil {
				return nil, fmt.Errorf("copying band %s: %w", band, err)
			}
		default:
			return nil, fmt.Errorf("no raster datasets found for band %s. Cannot create vrt", band)
		}
		vrts = append(vrts, vrtName)
	}
	return vrts, nil
}

// resolve returns the first VRT whose name ends in the wanted suffix.
func resolve(vrts []string, suffix string) (string, error) {
	for _, vrt := range vrts {
		if strings.HasSuffix(vrt, suffix) {
			return vrt, nil
		}
	}
	return "", fmt.Errorf("no vrt found for band suffix %s", suffix)
}

// resolveBlue needs care: a plain "2" suffix would also match band 12.
func resolveBlue(vrts []string) (string, error) {
	for _, vrt := range vrts {
		if strings.HasSuffix(vrt, "2") && !strings.HasSuffix(vrt, "12") {
			return vrt, nil
		}
	}
	return "", fmt.Errorf("no vrt found for the blue band")
}
