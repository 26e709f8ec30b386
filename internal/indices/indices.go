// Package indices builds and evaluates spectral index expressions for
// Sentinel-2 band rasters.
package indices

import (
	"context"
	"fmt"
	"strings"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

// Index identifies a spectral index or texture measure.
type Index string

const (
	NDVI Index = "NDVI"
	NDWI Index = "NDWI"
	NDBI Index = "NDBI"
	BSI  Index = "BSI"
	// ASM is the angular second moment texture measure, derived from a
	// PCA of the 10m bands.
	ASM Index = "asm"
)

// All lists the supported indices in option order.
var All = []Index{NDVI, NDWI, NDBI, BSI, ASM}

// Parse maps an option value to an Index.
func Parse(s string) (Index, error) {
	for _, idx := range All {
		if strings.EqualFold(s, string(idx)) {
			return idx, nil
		}
	}
	return "", fmt.Errorf("index not found. Please indicate one of the following: NDVI,NDWI,NDBI,BSI,asm")
}

// Bands holds the band raster names an index may need.
type Bands struct {
	Red   string
	Green string
	Blue  string
	NIR   string
	SWIR  string
}

// RequiredBands names the bands an index cannot be computed without.
func (i Index) RequiredBands() []string {
	switch i {
	case NDVI:
		return []string{"red", "nir"}
	case NDWI:
		return []string{"green", "nir"}
	case NDBI:
		return []string{"swir", "nir"}
	case BSI:
		return []string{"swir", "red", "nir", "blue"}
	case ASM:
		return []string{"blue", "green", "red", "nir"}
	}
	return nil
}

func (b Bands) lookup(name string) string {
	switch name {
	case "red":
		return b.Red
	case "green":
		return b.Green
	case "blue":
		return b.Blue
	case "nir":
		return b.NIR
	case "swir":
		return b.SWIR
	}
	return ""
}

// Validate checks that every band the index needs is set.
func (i Index) Validate(b Bands) error {
	var missing []string
	for _, name := range i.RequiredBands() {
		if b.lookup(name) == "" {
			missing = append(missing, "<"+name+">")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s must be set for the index <%s>",
			strings.Join(missing, " and "), i)
	}
	return nil
}

// Description is the long name printed when computation starts.
func (i Index) Description() string {
	switch i {
	case NDVI:
		return "NDVI (Normalized difference vegetation index)"
	case NDWI:
		return "NDWI (Normalized difference water index)"
	case NDBI:
		return "NDBI (Normalized difference built-up index)"
	case BSI:
		return "BSI (Bare soil index)"
	case ASM:
		return "ASM (Angular Second Moment)"
	}
	return string(i)
}

// Formula renders the map algebra expression of an index, scaled to the
// byte range so results compress well.
func (i Index) Formula(output string, b Bands) (string, error) {
	if err := i.Validate(b); err != nil {
		return "", err
	}
	switch i {
	case NDVI:
		return fmt.Sprintf("%s = round(255 * (1.0 + (%s - %s)/float((%s + %s)))/2.0)",
			output, b.NIR, b.Red, b.NIR, b.Red), nil
	case NDWI:
		return fmt.Sprintf("%s = round(255 * (1.0 + (%s - %s)/float((%s + %s)))/2.0)",
			output, b.Green, b.NIR, b.Green, b.NIR), nil
	case NDBI:
		return fmt.Sprintf("%s = round(255 * (1.0 + (%s - %s)/float((%s + %s)))/2.0)",
			output, b.SWIR, b.NIR, b.SWIR, b.NIR), nil
	case BSI:
		return fmt.Sprintf("%s = round(255 * (1.0 + ((%s + %s)-(%s + %s))/float(((%s + %s)+(%s + %s))))/2.0)",
			output, b.SWIR, b.Red, b.NIR, b.Blue, b.SWIR, b.Red, b.NIR, b.Blue), nil
	case ASM:
		return "", fmt.Errorf("index <%s> has no map algebra formula", i)
	}
	return "", fmt.Errorf("unknown index <%s>", i)
}

// Compute evaluates an index into the output raster, dispatching to the
// tiled variants of r.mapcalc and r.texture when nprocs allows.
func Compute(ctx context.Context, s *grass.Session, idx Index, output string, b Bands, nprocs int) error {
	if idx == ASM {
		return computeASM(ctx, s, output, b, nprocs)
	}
	formula, err := idx.Formula(output, b)
	if err != nil {
		return err
	}
	if nprocs > 1 {
		if !s.FindProgram("r.mapcalc.tiled") {
			return fmt.Errorf("the 'r.mapcalc.tiled' module was not found, install it first:\ng.extension r.mapcalc.tiled")
		}
		_, err = s.Run(ctx, "r.mapcalc.tiled", grass.Options{
			Params: map[string]string{
				"expression": formula,
				"processes":  fmt.Sprint(nprocs),
			},
			Quiet: true,
		})
		return err
	}
	return s.Mapcalc(ctx, formula)
}
