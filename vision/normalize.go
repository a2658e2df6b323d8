// MODUL: normalize
// ZWECK: Pixel-Normalisierung fuer Vision-Tower-Eingaben
// INPUT: RGBA-Bild, Mittelwert/Standardabweichung pro Kanal
// OUTPUT: Float32-Slice in CHW-Reihenfolge
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: CLIP- und ImageNet-Presets; Werte aus den ueblichen
// preprocessor_config.json Dateien

package vision

import (
	"fmt"
	"image"
)

// NormalizeParams enthaelt Mittelwert und Standardabweichung pro RGB-Kanal
type NormalizeParams struct {
	Mean [3]float32
	Std  [3]float32
}

// CLIPNormalize sind die Normalisierungs-Parameter der OpenAI CLIP Modelle
var CLIPNormalize = NormalizeParams{
	Mean: [3]float32{0.48145466, 0.4578275, 0.40821073},
	Std:  [3]float32{0.26862954, 0.26130258, 0.27577711},
}

// ImageNetNormalize sind die klassischen ImageNet-Parameter
var ImageNetNormalize = NormalizeParams{
	Mean: [3]float32{0.485, 0.456, 0.406},
	Std:  [3]float32{0.229, 0.224, 0.225},
}

// NormalizeRGB wandelt ein RGBA-Bild in ein normalisiertes CHW Float32-Array.
// Layout: [R-Ebene, G-Ebene, B-Ebene], jeweils zeilenweise.
func NormalizeRGB(img *image.RGBA, params NormalizeParams) ([]float32, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width == 0 || height == 0 {
		return nil, fmt.Errorf("vision: empty image %dx%d", width, height)
	}

	plane := width * height
	out := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := extractRGB(img, bounds.Min.X+x, bounds.Min.Y+y)
			idx := y*width + x

			out[idx] = (r/255.0 - params.Mean[0]) / params.Std[0]
			out[plane+idx] = (g/255.0 - params.Mean[1]) / params.Std[1]
			out[2*plane+idx] = (b/255.0 - params.Mean[2]) / params.Std[2]
		}
	}

	return out, nil
}

// extractRGB liest die RGB-Werte eines Pixels ohne Alpha
func extractRGB(img *image.RGBA, x, y int) (float32, float32, float32) {
	offset := img.PixOffset(x, y)
	return float32(img.Pix[offset]),
		float32(img.Pix[offset+1]),
		float32(img.Pix[offset+2])
}
