// MODUL: processor
// ZWECK: Kompletter Bild-Preprocessor (Resize, Crop, Kacheln, Normalisierung)
// INPUT: Dekodierte Bilder, optional preprocessor_config.json
// OUTPUT: Pixel-Tensor der Form (tiles, 3, size, size)
// NEBENEFFEKTE: Liest preprocessor_config.json vom Dateisystem
// ABHAENGIGKEITEN: github.com/pdevine/tensor
// HINWEISE: Fehlt die Konfigurationsdatei, gelten CLIP ViT-L/14-336 Defaults

package vision

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdevine/tensor"
)

// preprocessorConfigFile ist der uebliche Dateiname im Modellverzeichnis
const preprocessorConfigFile = "preprocessor_config.json"

// ImageProcessor fuehrt die CLIP-Preprocessing-Pipeline aus
type ImageProcessor struct {
	CropSize     int             // Kantenlaenge des quadratischen Crops
	ResizeSize   int             // Zielgroesse der kuerzeren Kante
	DoCenterCrop bool            // Center-Crop nach Resize
	Normalize    NormalizeParams // Mittelwert/Std pro Kanal
	TileCols     int             // Kachel-Raster horizontal
	TileRows     int             // Kachel-Raster vertikal
}

// processorConfig entspricht den relevanten Feldern der HuggingFace
// preprocessor_config.json
type processorConfig struct {
	CropSize     json.RawMessage `json:"crop_size"`
	Size         json.RawMessage `json:"size"`
	DoCenterCrop *bool           `json:"do_center_crop"`
	ImageMean    []float32       `json:"image_mean"`
	ImageStd     []float32       `json:"image_std"`
}

// DefaultImageProcessor gibt die CLIP ViT-L/14-336 Pipeline zurueck
func DefaultImageProcessor() *ImageProcessor {
	return &ImageProcessor{
		CropSize:     336,
		ResizeSize:   336,
		DoCenterCrop: true,
		Normalize:    CLIPNormalize,
		TileCols:     1,
		TileRows:     1,
	}
}

// NewImageProcessor laedt die Pipeline-Parameter aus dem Modellverzeichnis.
// Fehlt die Datei, werden die CLIP-Defaults verwendet.
func NewImageProcessor(modelDir string) (*ImageProcessor, error) {
	proc := DefaultImageProcessor()

	path := filepath.Join(modelDir, preprocessorConfigFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return proc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vision: read %s: %w", preprocessorConfigFile, err)
	}

	var cfg processorConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("vision: parse %s: %w", preprocessorConfigFile, err)
	}

	if size, ok := parseSizeField(cfg.CropSize); ok {
		proc.CropSize = size
	}
	if size, ok := parseSizeField(cfg.Size); ok {
		proc.ResizeSize = size
	}
	if cfg.DoCenterCrop != nil {
		proc.DoCenterCrop = *cfg.DoCenterCrop
	}
	if len(cfg.ImageMean) == 3 {
		copy(proc.Normalize.Mean[:], cfg.ImageMean)
	}
	if len(cfg.ImageStd) == 3 {
		copy(proc.Normalize.Std[:], cfg.ImageStd)
	}

	return proc, nil
}

// parseSizeField akzeptiert die beiden verbreiteten Schreibweisen:
// eine Zahl oder ein Objekt mit shortest_edge/height
func parseSizeField(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var scalar int
	if err := json.Unmarshal(raw, &scalar); err == nil && scalar > 0 {
		return scalar, true
	}

	var obj struct {
		ShortestEdge int `json:"shortest_edge"`
		Height       int `json:"height"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.ShortestEdge > 0 {
			return obj.ShortestEdge, true
		}
		if obj.Height > 0 {
			return obj.Height, true
		}
	}

	return 0, false
}

// TilesPerImage gibt die Anzahl der Kacheln pro Bild zurueck
func (p *ImageProcessor) TilesPerImage() int {
	return p.TileCols * p.TileRows
}

// Preprocess wandelt ein dekodiertes Bild in einen Pixel-Tensor der Form
// (tiles, 3, cropSize, cropSize). Resize auf die kuerzere Kante, optionaler
// Center-Crop, dann Kachelung und Normalisierung.
func (p *ImageProcessor) Preprocess(img *ImageInput) (*tensor.Dense, error) {
	resized, err := ResizeShortestEdge(img, p.ResizeSize*minTileDim(p))
	if err != nil {
		return nil, err
	}

	target := resized
	if p.DoCenterCrop {
		target, err = CenterCrop(resized, p.CropSize*p.TileCols, p.CropSize*p.TileRows)
		if err != nil {
			return nil, err
		}
	} else {
		target, err = ResizeImage(resized, p.CropSize*p.TileCols, p.CropSize*p.TileRows)
		if err != nil {
			return nil, err
		}
	}

	tiles, err := SplitTiles(target, p.TileCols, p.TileRows)
	if err != nil {
		return nil, err
	}

	plane := p.CropSize * p.CropSize
	backing := make([]float32, len(tiles)*3*plane)

	for i, tile := range tiles {
		pixels, err := NormalizeRGB(tile.Image, p.Normalize)
		if err != nil {
			return nil, err
		}
		copy(backing[i*3*plane:], pixels)
	}

	return tensor.New(
		tensor.WithShape(len(tiles), 3, p.CropSize, p.CropSize),
		tensor.WithBacking(backing),
	), nil
}

// minTileDim gibt die kleinere Raster-Dimension zurueck, mindestens 1
func minTileDim(p *ImageProcessor) int {
	d := p.TileCols
	if p.TileRows < d {
		d = p.TileRows
	}
	if d < 1 {
		d = 1
	}
	return d
}
