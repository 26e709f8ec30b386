package ndvidiff

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

// indexResolution is the working resolution of the change detection.
const indexResolution = 10

// setRegion aligns the computational region to the AOI. With a GeoJSON
// file the bounding box of all features is used; otherwise the region
// snaps to the AOI vector map.
func setRegion(ctx context.Context, s *grass.Session, p Params) error {
	if p.AOIGeoJSON == "" {
		return s.SetRegionVector(ctx, p.AOIVector, indexResolution)
	}
	bound, err := geoJSONBounds(p.AOIGeoJSON)
	if err != nil {
		return err
	}
	return s.SetRegionBounds(ctx, bound.Max.Y(), bound.Min.Y(), bound.Max.X(), bound.Min.X(), indexResolution)
}

// ensureAOIVector returns the vector map delimiting the AOI. A GeoJSON
// file is imported first, so masking follows the geometry and not just
// its bounding box.
func ensureAOIVector(ctx context.Context, s *grass.Session, p Params) (string, error) {
	if p.AOIVector != "" {
		return p.AOIVector, nil
	}
	vect := grass.TempName("aoi")
	s.AddVector(vect)
	if _, err := s.Run(ctx, "v.in.ogr", grass.Options{
		Params: map[string]string{
			"input":  p.AOIGeoJSON,
			"output": vect,
		},
		Quiet: true,
	}); err != nil {
		return "", fmt.Errorf("importing AOI %s: %w", p.AOIGeoJSON, err)
	}
	return vect, nil
}

// geoJSONBounds reads a GeoJSON file and returns the union bound of its
// features.
func geoJSONBounds(path string) (orb.Bound, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("reading AOI file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		// a bare geometry is also accepted
		g, gerr := geojson.UnmarshalGeometry(raw)
		if gerr != nil {
			return orb.Bound{}, fmt.Errorf("parsing AOI file %s: %w", path, err)
		}
		return g.Geometry().Bound(), nil
	}
	if len(fc.Features) == 0 {
		return orb.Bound{}, fmt.Errorf("AOI file %s contains no features", path)
	}
	bound := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		bound = bound.Union(f.Geometry.Bound())
	}
	return bound, nil
}
