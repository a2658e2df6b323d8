// MODUL: image
// ZWECK: Bild-Dekodierung und geometrische Operationen fuer den Preprocessor
// INPUT: Bytes oder io.Reader
// OUTPUT: ImageInput Struktur mit dekodiertem RGB-Bild
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image (draw, webp/bmp/tiff Decoder)
// HINWEISE: Alle Bilder werden als RGBA gehalten; Alpha wird vor der
// Normalisierung gegen Weiss komponiert (RGB-Konvertierung)

package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	// Standard-Decoder registrieren
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInput enthaelt ein dekodiertes Bild mit Metadaten
type ImageInput struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format ImageFormat
}

// DecodeRGB dekodiert Bild-Bytes und komponiert Alpha gegen Weiss.
// Entspricht der ueblichen convert("RGB") Behandlung vor CLIP-Preprocessing.
func DecodeRGB(data []byte) (*ImageInput, error) {
	img, err := LoadImageFromBytes(data)
	if err != nil {
		return nil, err
	}
	return Composite(img), nil
}

// LoadImageFromBytes dekodiert ein Bild aus Byte-Daten
func LoadImageFromBytes(data []byte) (*ImageInput, error) {
	format := DetectFormat(data)
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	return decodeWithFormat(bytes.NewReader(data), format)
}

// DecodeImage dekodiert ein Bild aus einem io.Reader
func DecodeImage(reader io.Reader) (*ImageInput, error) {
	// Erst Daten puffern fuer Format-Erkennung
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("vision: read image data: %w", err)
	}
	return LoadImageFromBytes(data)
}

// decodeWithFormat dekodiert und konvertiert zu RGBA
func decodeWithFormat(reader io.Reader, format ImageFormat) (*ImageInput, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("vision: decode image: %w", err)
	}

	rgba := toRGBA(img)
	bounds := rgba.Bounds()

	return &ImageInput{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

// toRGBA konvertiert ein beliebiges image.Image zu *image.RGBA
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// ResizeImage skaliert ein Bild auf die angegebene Groesse.
// Catmull-Rom kommt dem bikubischen Resampling der Referenz-Preprocessoren
// am naechsten.
func ResizeImage(img *ImageInput, width, height int) (*ImageInput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("vision: invalid resize target: %dx%d", width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img.Image, img.Image.Bounds(), draw.Over, nil)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
		Format: img.Format,
	}, nil
}

// ResizeShortestEdge skaliert so dass die kuerzere Kante size Pixel hat.
// Seitenverhaeltnis bleibt erhalten (CLIP "shortest edge" Resize).
func ResizeShortestEdge(img *ImageInput, size int) (*ImageInput, error) {
	if size <= 0 {
		return nil, fmt.Errorf("vision: invalid shortest edge: %d", size)
	}

	w, h := img.Width, img.Height
	if w <= h {
		h = (h*size + w/2) / w
		w = size
	} else {
		w = (w*size + h/2) / h
		h = size
	}
	return ResizeImage(img, w, h)
}

// Composite entfernt den Alpha-Kanal durch weissen Hintergrund
func Composite(img *ImageInput) *ImageInput {
	bounds := img.Image.Bounds()
	dst := image.NewRGBA(bounds)

	// Hintergrund fuellen, Bild darueber zeichnen
	draw.Draw(dst, bounds, &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img.Image, bounds.Min, draw.Over)

	return &ImageInput{
		Image:  dst,
		Width:  img.Width,
		Height: img.Height,
		Format: img.Format,
	}
}

// CenterCrop schneidet einen zentrierten Bereich aus.
// Ist das Bild kleiner als der Zielbereich, wird zuvor hochskaliert.
func CenterCrop(img *ImageInput, width, height int) (*ImageInput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("vision: invalid crop size: %dx%d", width, height)
	}

	if width > img.Width || height > img.Height {
		var err error
		img, err = ResizeImage(img, max(width, img.Width), max(height, img.Height))
		if err != nil {
			return nil, err
		}
	}

	offsetX := (img.Width - width) / 2
	offsetY := (img.Height - height) / 2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	srcRect := image.Rect(offsetX, offsetY, offsetX+width, offsetY+height)

	draw.Draw(dst, dst.Bounds(), img.Image, srcRect.Min, draw.Src)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
		Format: img.Format,
	}, nil
}

// SplitTiles zerlegt ein Bild in ein gleichmaessiges Kachel-Raster.
// Das Bild muss exakt in cols*rows Kacheln der Groesse tileW x tileH passen;
// der Aufrufer skaliert zuvor passend.
func SplitTiles(img *ImageInput, cols, rows int) ([]*ImageInput, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("vision: invalid tile grid: %dx%d", cols, rows)
	}
	if img.Width%cols != 0 || img.Height%rows != 0 {
		return nil, fmt.Errorf("vision: image %dx%d not divisible into %dx%d grid",
			img.Width, img.Height, cols, rows)
	}

	tileW := img.Width / cols
	tileH := img.Height / rows
	tiles := make([]*ImageInput, 0, cols*rows)

	for ty := 0; ty < rows; ty++ {
		for tx := 0; tx < cols; tx++ {
			dst := image.NewRGBA(image.Rect(0, 0, tileW, tileH))
			src := image.Rect(tx*tileW, ty*tileH, (tx+1)*tileW, (ty+1)*tileH)
			draw.Draw(dst, dst.Bounds(), img.Image, src.Min, draw.Src)

			tiles = append(tiles, &ImageInput{
				Image:  dst,
				Width:  tileW,
				Height: tileH,
				Format: img.Format,
			})
		}
	}

	return tiles, nil
}
