package grass

import (
	"context"
	"strconv"
)

// SaveRegion stores the current computational region under a
// process-unique name and registers it for removal at cleanup.
func (s *Session) SaveRegion(ctx context.Context) (string, error) {
	name := TempName("saved_region")
	_, err := s.Run(ctx, "g.region", Options{
		Params: map[string]string{"save": name},
	})
	if err != nil {
		return "", err
	}
	s.AddRegion(name)
	return name, nil
}

// RestoreRegion switches back to a region saved by SaveRegion.
func (s *Session) RestoreRegion(ctx context.Context, name string) error {
	_, err := s.Run(ctx, "g.region", Options{
		Params: map[string]string{"region": name},
	})
	return err
}

// SetRegionVector aligns the region to a vector map at the given
// resolution (-a snaps the extent to the resolution).
func (s *Session) SetRegionVector(ctx context.Context, vector string, res float64) error {
	_, err := s.Run(ctx, "g.region", Options{
		Params: map[string]string{
			"vector": vector,
			"res":    strconv.FormatFloat(res, 'f', -1, 64),
		},
		Flags: "a",
	})
	return err
}

// SetRegionRaster aligns the region to a raster map at the given
// resolution.
func (s *Session) SetRegionRaster(ctx context.Context, raster string, res float64) error {
	_, err := s.Run(ctx, "g.region", Options{
		Params: map[string]string{
			"raster": raster,
			"res":    strconv.FormatFloat(res, 'f', -1, 64),
		},
		Flags: "a",
	})
	return err
}

// SetRegionBounds sets the region to explicit bounds at the given
// resolution.
func (s *Session) SetRegionBounds(ctx context.Context, north, south, east, west, res float64) error {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	_, err := s.Run(ctx, "g.region", Options{
		Params: map[string]string{
			"n":   f(north),
			"s":   f(south),
			"e":   f(east),
			"w":   f(west),
			"res": f(res),
		},
		Flags: "a",
	})
	return err
}
