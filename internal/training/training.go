// Package training generates land-cover training data from spectral
// index rasters and reference classifications. Candidate areas per class
// are delineated with adaptive percentile thresholds and only kept when
// they cover enough of the region.
package training

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

// Class is one output land-cover class.
type Class struct {
	Code  int
	Label string
}

var (
	Water         = Class{10, "water"}
	LowVegetation = Class{20, "low vegetation"}
	Forest        = Class{30, "forest"}
	BuiltUp       = Class{40, "built-up"}
	BareSoil      = Class{50, "bare soil"}
)

// Params collects the inputs of a training data run.
type Params struct {
	NDVI string
	NDWI string
	NDBI string
	BSI  string

	RefClassProbav string
	RefTreecover   string
	RefClassGong   string // optional second reference classification
	RefGHSBuilt    string

	// PercentageThreshold is the minimum share (in percent) of the region
	// a class has to cover to be kept.
	PercentageThreshold float64
	NPoints             int

	OutputRaster string
	OutputVector string
	StrColumn    string
	IntColumn    string

	// ReportPath, when set, receives a per-class CSV report.
	ReportPath string
}

// Stats records how one class was delineated.
type Stats struct {
	Code       int     `csv:"class_code"`
	Label      string  `csv:"class_label"`
	Percentile float64 `csv:"percentile"`
	Threshold  float64 `csv:"threshold"`
	Pixels     int     `csv:"pixels"`
	Accepted   bool    `csv:"accepted"`
}

// Result is what Generate produced.
type Result struct {
	Classes []Class
	Stats   []Stats
}

// orExpr builds the "raster == cat || raster == cat" expression used to
// select reference categories.
func orExpr(raster string, cats []int) string {
	terms := make([]string, len(cats))
	for i, cat := range cats {
		terms[i] = fmt.Sprintf("%s == %d", raster, cat)
	}
	return strings.Join(terms, " || ")
}

// generator carries the shared state of one run.
type generator struct {
	s   *grass.Session
	log logrus.FieldLogger
	p   Params

	totalCells int
}

// covers tests whether a candidate raster covers enough of the region.
func (g *generator) covers(ctx context.Context, raster string) (int, bool, error) {
	n, err := g.s.CellCount(ctx, raster)
	if err != nil {
		return 0, false, err
	}
	ok := float64(n)/float64(g.totalCells) > g.p.PercentageThreshold*0.01
	return n, ok, nil
}

// Generate runs the full training-data workflow.
func Generate(ctx context.Context, s *grass.Session, log logrus.FieldLogger, p Params) (*Result, error) {
	total, err := s.CellCount(ctx, p.NDVI)
	if err != nil {
		return nil, fmt.Errorf("reading region cell count: %w", err)
	}
	g := &generator{s: s, log: log, p: p, totalCells: total}

	type delineation struct {
		class Class
		fn    func(context.Context) (string, Stats, error)
	}
	steps := []delineation{
		{Water, g.findWater},
		{LowVegetation, g.findLowVegetation},
		{Forest, g.findForest},
		{BareSoil, g.findBareSoil},
		{BuiltUp, g.findBuiltUp},
	}

	result := &Result{}
	var trainingRasters []string
	for _, step := range steps {
		if step.class == BareSoil && p.BSI == "" {
			log.Warnf("No BSI raster given, skipping bare soil delineation")
			continue
		}
		log.Infof("Checking for %s areas...", step.class.Label)
		raster, stats, err := step.fn(ctx)
		if err != nil {
			return nil, fmt.Errorf("delineating %s: %w", step.class.Label, err)
		}
		stats.Pixels, stats.Accepted, err = g.covers(ctx, raster)
		if err != nil {
			return nil, err
		}
		result.Stats = append(result.Stats, stats)
		if stats.Accepted {
			result.Classes = append(result.Classes, step.class)
			trainingRasters = append(trainingRasters, raster)
		}
	}

	if err := g.merge(ctx, result.Classes, trainingRasters); err != nil {
		return nil, err
	}
	if err := g.samplePoints(ctx, result.Classes); err != nil {
		return nil, err
	}
	if p.ReportPath != "" {
		if err := writeReport(p.ReportPath, result.Stats); err != nil {
			return nil, fmt.Errorf("writing class report: %w", err)
		}
	}

	log.Infof("Generated output training raster map <%s>", p.OutputRaster)
	log.Infof("Generated output training vector map <%s>", p.OutputVector)
	return result, nil
}

// withMask runs fn with a mask active. Percentile reads and the class
// raster expression of a delineation both happen inside, so class
// rasters stay confined to the masked reference areas.
func (g *generator) withMask(ctx context.Context, mask string, fn func(context.Context) error) error {
	if err := g.s.SetMask(ctx, mask); err != nil {
		return err
	}
	err := fn(ctx)
	if rmErr := g.s.RemoveMask(ctx); err == nil {
		err = rmErr
	}
	return err
}

// findWater delineates water from the reference classifications and the
// 25th NDWI percentile inside them.
func (g *generator) findWater(ctx context.Context) (string, Stats, error) {
	refMask := grass.TempName("both_classifications_water")
	g.s.AddRaster(refMask)

	sel := orExpr(g.p.RefClassProbav, []int{80, 200})
	if g.p.RefClassGong != "" {
		sel = fmt.Sprintf("(%s) && %s", sel, orExpr(g.p.RefClassGong, []int{60}))
	} else {
		sel = fmt.Sprintf("(%s)", sel)
	}
	if err := g.s.Mapcalc(ctx, fmt.Sprintf("%s = if(%s,1,null())", refMask, sel)); err != nil {
		return "", Stats{}, err
	}

	raster := grass.TempName("water_raster")
	g.s.AddRaster(raster)
	var threshold float64
	err := g.withMask(ctx, refMask, func(ctx context.Context) error {
		var err error
		if threshold, err = g.s.Percentile(ctx, g.p.NDWI, 25); err != nil {
			return err
		}
		return g.s.Mapcalc(ctx, fmt.Sprintf("%s = if(%s >= %g, %d, null())",
			raster, g.p.NDWI, threshold, Water.Code))
	})
	if err != nil {
		return "", Stats{}, err
	}
	return raster, Stats{Code: Water.Code, Label: Water.Label, Percentile: 25, Threshold: threshold}, nil
}

// findLowVegetation delineates sparse vegetation. The NDVI percentile is
// chosen adaptively: a masked median above 0.5 means the reference areas
// really are vegetated and the threshold can be loose (P25); otherwise
// it has to be strict (P75).
func (g *generator) findLowVegetation(ctx context.Context) (string, Stats, error) {
	const (
		ndviThreshold = 0.5
		treecoverMax  = 25
	)
	probavCats := []int{20, 30, 40, 100, 121, 122, 123, 124, 125, 126}
	gongCats := []int{10, 30, 40, 50, 70}

	classRaster, err := g.referenceSelection(ctx, "lowveg_class_raster", probavCats, gongCats)
	if err != nil {
		return "", Stats{}, err
	}
	maskRaster := grass.TempName("lowveg_mask_raster")
	g.s.AddRaster(maskRaster)
	expr := fmt.Sprintf("%s = if(%s == 1 && %s <= %d,1,null())",
		maskRaster, classRaster, g.p.RefTreecover, treecoverMax)
	if err := g.s.Mapcalc(ctx, expr); err != nil {
		return "", Stats{}, err
	}

	raster := grass.TempName("lowveg_raster")
	g.s.AddRaster(raster)
	var percentile, threshold float64
	err = g.withMask(ctx, maskRaster, func(ctx context.Context) error {
		median, err := g.s.Percentile(ctx, g.p.NDVI, 50)
		if err != nil {
			return err
		}
		percentile = 75
		if median > ndviThreshold {
			percentile = 25
		}
		if threshold, err = g.s.Percentile(ctx, g.p.NDVI, percentile); err != nil {
			return err
		}
		return g.s.Mapcalc(ctx, fmt.Sprintf("%s = if(%s > %g,%d,null())",
			raster, g.p.NDVI, threshold, LowVegetation.Code))
	})
	if err != nil {
		return "", Stats{}, err
	}
	return raster, Stats{Code: LowVegetation.Code, Label: LowVegetation.Label,
		Percentile: percentile, Threshold: threshold}, nil
}

// findForest delineates forest from densely tree-covered reference areas
// and the 25th NDVI percentile inside them.
func (g *generator) findForest(ctx context.Context) (string, Stats, error) {
	const treecoverMin = 60
	probavCats := []int{111, 113, 112, 114, 115, 116, 121, 123, 122, 124, 125, 126}
	gongCats := []int{20}

	classRaster, err := g.referenceSelection(ctx, "forest_class_raster", probavCats, gongCats)
	if err != nil {
		return "", Stats{}, err
	}
	maskRaster := grass.TempName("forest_mask_raster")
	g.s.AddRaster(maskRaster)
	expr := fmt.Sprintf("%s = if(%s == 1 && %s >= %d,1,null())",
		maskRaster, classRaster, g.p.RefTreecover, treecoverMin)
	if err := g.s.Mapcalc(ctx, expr); err != nil {
		return "", Stats{}, err
	}

	raster := grass.TempName("forest_raster")
	g.s.AddRaster(raster)
	var threshold float64
	err = g.withMask(ctx, maskRaster, func(ctx context.Context) error {
		var err error
		if threshold, err = g.s.Percentile(ctx, g.p.NDVI, 25); err != nil {
			return err
		}
		return g.s.Mapcalc(ctx, fmt.Sprintf("%s = if(%s > %g,%d,null())",
			raster, g.p.NDVI, threshold, Forest.Code))
	})
	if err != nil {
		return "", Stats{}, err
	}
	return raster, Stats{Code: Forest.Code, Label: Forest.Label, Percentile: 25, Threshold: threshold}, nil
}

// findBareSoil delineates bare soil. Bare soil can overlap the low
// vegetation reference classes; overlap is resolved later in merge. The
// NDVI percentile is adaptive like for low vegetation, but inverted: a
// masked median below 0.3 means mostly soil, so the threshold is loose.
func (g *generator) findBareSoil(ctx context.Context) (string, Stats, error) {
	const (
		ndviThreshold = 0.3
		treecoverMax  = 25
		bsiPercentile = 25
	)
	probavCats := []int{60, 40}
	gongCats := []int{10, 90}

	classRaster, err := g.referenceSelection(ctx, "baresoil_class_raster", probavCats, gongCats)
	if err != nil {
		return "", Stats{}, err
	}
	maskRaster := grass.TempName("baresoil_mask_raster")
	g.s.AddRaster(maskRaster)
	expr := fmt.Sprintf("%s = if(%s == 1 && %s <= %d,1,null())",
		maskRaster, classRaster, g.p.RefTreecover, treecoverMax)
	if err := g.s.Mapcalc(ctx, expr); err != nil {
		return "", Stats{}, err
	}

	raster := grass.TempName("baresoil_raster")
	g.s.AddRaster(raster)
	var percentile, ndviMax float64
	err = g.withMask(ctx, maskRaster, func(ctx context.Context) error {
		median, err := g.s.Percentile(ctx, g.p.NDVI, 50)
		if err != nil {
			return err
		}
		percentile = 25
		if median < ndviThreshold {
			percentile = 75
		}
		if ndviMax, err = g.s.Percentile(ctx, g.p.NDVI, percentile); err != nil {
			return err
		}
		bsiMin, err := g.s.Percentile(ctx, g.p.BSI, bsiPercentile)
		if err != nil {
			return err
		}
		return g.s.Mapcalc(ctx, fmt.Sprintf("%s = if(%s >= %g && %s <= %g,%d,null())",
			raster, g.p.BSI, bsiMin, g.p.NDVI, ndviMax, BareSoil.Code))
	})
	if err != nil {
		return "", Stats{}, err
	}
	return raster, Stats{Code: BareSoil.Code, Label: BareSoil.Label,
		Percentile: percentile, Threshold: ndviMax}, nil
}

// findBuiltUp delineates built-up areas from the settlement reference
// and NDBI/NDVI medians inside it.
func (g *generator) findBuiltUp(ctx context.Context) (string, Stats, error) {
	const ghsMin = 3
	maskRaster := grass.TempName("builtup_mask_raster")
	g.s.AddRaster(maskRaster)
	expr := fmt.Sprintf("%s = if((%s) && (%s >= %d),1,null())",
		maskRaster, orExpr(g.p.RefClassProbav, []int{50}), g.p.RefGHSBuilt, ghsMin)
	if err := g.s.Mapcalc(ctx, expr); err != nil {
		return "", Stats{}, err
	}

	raster := grass.TempName("builtup_raster")
	g.s.AddRaster(raster)
	var ndbiMin float64
	err := g.withMask(ctx, maskRaster, func(ctx context.Context) error {
		ndviMax, err := g.s.Percentile(ctx, g.p.NDVI, 50)
		if err != nil {
			return err
		}
		if ndbiMin, err = g.s.Percentile(ctx, g.p.NDBI, 50); err != nil {
			return err
		}
		return g.s.Mapcalc(ctx, fmt.Sprintf("%s = if(%s >= %g && %s <= %g,%d,null())",
			raster, g.p.NDBI, ndbiMin, g.p.NDVI, ndviMax, BuiltUp.Code))
	})
	if err != nil {
		return "", Stats{}, err
	}
	return raster, Stats{Code: BuiltUp.Code, Label: BuiltUp.Label,
		Percentile: 50, Threshold: ndbiMin}, nil
}

// referenceSelection builds the 1/0 raster marking cells inside the
// reference categories of both classifications.
func (g *generator) referenceSelection(ctx context.Context, base string, probavCats, gongCats []int) (string, error) {
	raster := grass.TempName(base)
	g.s.AddRaster(raster)
	var expr string
	if g.p.RefClassGong != "" {
		expr = fmt.Sprintf("%s = if((%s) && (%s),1,0)", raster,
			orExpr(g.p.RefClassProbav, probavCats), orExpr(g.p.RefClassGong, gongCats))
	} else {
		expr = fmt.Sprintf("%s = if((%s),1,0)", raster, orExpr(g.p.RefClassProbav, probavCats))
	}
	if err := g.s.Mapcalc(ctx, expr); err != nil {
		return "", err
	}
	return raster, nil
}
