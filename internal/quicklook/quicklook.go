// Package quicklook renders small PNG previews of exported raster
// results.
package quicklook

import (
	"fmt"
	"math"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/fogleman/gg"
)

// maxSize bounds the quicklook edge length in pixels.
const maxSize = 1024

// godal does not register GDAL drivers on its own
var registerDrivers sync.Once

// Render reads the first band of a GeoTIFF and writes a PNG preview
// with a red-to-green ramp centred on zero, suited for difference maps.
func Render(tiffPath, pngPath string) error {
	registerDrivers.Do(godal.RegisterAll)
	ds, err := godal.Open(tiffPath)
	if err != nil {
		return fmt.Errorf("failed to open TIFF file: %w", err)
	}
	defer ds.Close()

	st := ds.Structure()
	width, height := st.SizeX, st.SizeY
	if width == 0 || height == 0 {
		return fmt.Errorf("raster %s has no extent", tiffPath)
	}

	bands := ds.Bands()
	if len(bands) == 0 {
		return fmt.Errorf("raster %s has no bands", tiffPath)
	}
	data := make([]float64, width*height)
	if err := bands[0].Read(0, 0, data, width, height); err != nil {
		return fmt.Errorf("failed to read raster data: %w", err)
	}

	// scale symmetric around zero using the largest magnitude
	var extreme float64
	for _, v := range data {
		if a := math.Abs(v); a > extreme && !math.IsNaN(v) {
			extreme = a
		}
	}
	if extreme == 0 {
		extreme = 1
	}

	step := 1
	for width/step > maxSize || height/step > maxSize {
		step++
	}
	outW, outH := width/step, height/step

	dc := gg.NewContext(outW, outH)
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			v := data[y*step*width+x*step]
			if math.IsNaN(v) {
				dc.SetRGB(1, 1, 1)
			} else {
				// negative (loss) towards red, positive towards green
				t := v / extreme
				dc.SetRGB(clamp01(0.5-t/2+0.3), clamp01(0.5+t/2+0.3), 0.3)
			}
			dc.SetPixel(x, y)
		}
	}
	if err := dc.SavePNG(pngPath); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
