package training

import (
	"context"
	"fmt"
	"strings"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

// merge combines the accepted class rasters into the output raster.
// Cells claimed by more than one class are excluded via a
// single-membership mask, so training pixels never mix classes.
func (g *generator) merge(ctx context.Context, classes []Class, rasters []string) error {
	switch len(classes) {
	case 0:
		return fmt.Errorf("no automatic training data generation possible. Not enough pixels match the requirements")
	case 1:
		g.log.Infof("Only found one class in region: %s", classes[0].Label)
		_, err := g.s.Run(ctx, "g.copy", grass.Options{
			Params: map[string]string{"raster": rasters[0] + "," + g.p.OutputRaster},
			Quiet:  true,
		})
		return err
	}

	labels := make([]string, len(classes))
	for i, c := range classes {
		labels[i] = c.Label
	}
	g.log.Infof("Merging training data for classes %s", strings.Join(labels, ", "))

	membership := grass.TempName("tr_sum")
	g.s.AddRaster(membership)
	terms := make([]string, len(rasters))
	for i, r := range rasters {
		terms[i] = fmt.Sprintf("if( isnull(%s), 0, 1 )", r)
	}
	expr := fmt.Sprintf("%s = %s", membership, strings.Join(terms, " + "))
	if err := g.s.Mapcalc(ctx, expr); err != nil {
		return err
	}

	// park a pre-existing mask so it survives the merge
	if err := g.s.StashMask(ctx); err != nil {
		return err
	}
	singleClass := grass.TempName("tmp_mask_new")
	g.s.AddRaster(singleClass)
	expr = fmt.Sprintf("%s = if(%s == 1, 1, null())", singleClass, membership)
	if err := g.s.Mapcalc(ctx, expr); err != nil {
		return err
	}
	if err := g.s.SetMask(ctx, singleClass); err != nil {
		return err
	}

	for i, raster := range rasters {
		n, err := g.s.CellCount(ctx, raster)
		if err != nil {
			return err
		}
		if n < g.p.NPoints {
			g.log.Warnf("For <%s> only %d pixels found.", classes[i].Label, n)
		}
	}

	if _, err := g.s.Run(ctx, "r.patch", grass.Options{
		Params: map[string]string{
			"input":  strings.Join(rasters, ","),
			"output": g.p.OutputRaster,
		},
		Quiet: true,
	}); err != nil {
		return err
	}
	if err := g.s.RemoveMask(ctx); err != nil {
		return err
	}
	return g.s.UnstashMask(ctx)
}

// samplePoints draws NPoints training points per class from the output
// raster and writes the class labels into the vector attribute table.
func (g *generator) samplePoints(ctx context.Context, classes []Class) error {
	g.log.Infof("Extracting %d points per class...", g.p.NPoints)
	if _, err := g.s.Run(ctx, "r.sample.category", grass.Options{
		Params: map[string]string{
			"input":   g.p.OutputRaster,
			"output":  g.p.OutputVector,
			"npoints": fmt.Sprint(g.p.NPoints),
		},
		Quiet: true,
	}); err != nil {
		return err
	}

	// r.sample.category names the category column after the input raster
	tempColumn := strings.ToLower(g.p.OutputRaster)
	if _, err := g.s.Run(ctx, "v.db.renamecolumn", grass.Options{
		Params: map[string]string{
			"map":    g.p.OutputVector,
			"column": tempColumn + "," + g.p.IntColumn,
		},
		Quiet: true,
	}); err != nil {
		return err
	}
	if _, err := g.s.Run(ctx, "v.db.addcolumn", grass.Options{
		Params: map[string]string{
			"map":     g.p.OutputVector,
			"columns": g.p.StrColumn + " VARCHAR(25)",
		},
		Quiet: true,
	}); err != nil {
		return err
	}
	for _, class := range classes {
		if _, err := g.s.Run(ctx, "v.db.update", grass.Options{
			Params: map[string]string{
				"map":    g.p.OutputVector,
				"column": g.p.StrColumn,
				"where":  fmt.Sprintf("%s = %d", g.p.IntColumn, class.Code),
				"value":  class.Label,
			},
			Quiet: true,
		}); err != nil {
			return err
		}
	}
	return nil
}
