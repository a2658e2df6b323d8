// MODUL: normalize_test
// ZWECK: Tests fuer die Pixel-Normalisierung
// INPUT: Synthetische RGBA-Bilder
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, gonum (Toleranz-Vergleiche)
// HINWEISE: keine

package vision

import (
	"image"
	"image/color"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestNormalizeRGBLayout(t *testing.T) {
	// 2x1 Bild: links reines Rot, rechts reines Blau
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{B: 255, A: 255})

	params := NormalizeParams{
		Mean: [3]float32{0, 0, 0},
		Std:  [3]float32{1, 1, 1},
	}

	out, err := NormalizeRGB(img, params)
	if err != nil {
		t.Fatalf("NormalizeRGB Fehler: %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("Laenge = %d, erwartet 6 (3 Kanaele x 2 Pixel)", len(out))
	}

	// CHW: [R0 R1 G0 G1 B0 B1]
	want := []float32{1, 0, 0, 0, 0, 1}
	for i := range want {
		if !scalar.EqualWithinAbs(float64(out[i]), float64(want[i]), 1e-6) {
			t.Errorf("out[%d] = %f, erwartet %f", i, out[i], want[i])
		}
	}
}

func TestNormalizeRGBWithCLIPParams(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	out, err := NormalizeRGB(img, CLIPNormalize)
	if err != nil {
		t.Fatalf("NormalizeRGB Fehler: %v", err)
	}

	for c := 0; c < 3; c++ {
		want := (1.0 - float64(CLIPNormalize.Mean[c])) / float64(CLIPNormalize.Std[c])
		if math.Abs(float64(out[c])-want) > 1e-5 {
			t.Errorf("Kanal %d = %f, erwartet %f", c, out[c], want)
		}
	}
}

func TestNormalizeRGBEmptyImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := NormalizeRGB(img, CLIPNormalize); err == nil {
		t.Fatal("erwartet Fehler bei leerem Bild")
	}
}
