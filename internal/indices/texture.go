package indices

import (
	"context"
	"fmt"

	"github.com/mundialis/i.sentinel-2/internal/grass"
)

// computeASM derives the angular second moment texture. The four 10m
// bands are condensed with a PCA first; the texture runs on the first
// component. Window size 3 separates urban from agricultural areas
// better than larger windows.
func computeASM(ctx context.Context, s *grass.Session, output string, b Bands, nprocs int) error {
	if err := ASM.Validate(b); err != nil {
		return err
	}

	pca := grass.TempName("pca")
	for i := 1; i <= 4; i++ {
		s.AddRaster(fmt.Sprintf("%s.%d", pca, i))
	}
	_, err := s.Run(ctx, "i.pca", grass.Options{
		Params: map[string]string{
			"input":  fmt.Sprintf("%s,%s,%s,%s", b.Blue, b.Green, b.Red, b.NIR),
			"output": pca,
		},
		Quiet: true,
	})
	if err != nil {
		return fmt.Errorf("running PCA: %w", err)
	}

	params := map[string]string{
		"input":  pca + ".1",
		"method": "asm",
		"size":   "3",
		"output": output,
	}
	if nprocs > 1 {
		params["processes"] = fmt.Sprint(nprocs)
		_, err = s.Run(ctx, "r.texture.tiled", grass.Options{Params: params, Quiet: true})
	} else {
		_, err = s.Run(ctx, "r.texture", grass.Options{Params: params, Quiet: true})
	}
	if err != nil {
		return fmt.Errorf("calculating texture: %w", err)
	}
	return nil
}
