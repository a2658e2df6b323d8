// MODUL: llava/encode
// ZWECK: Batch-Encoding von Bild-Items aus dem Shared-Memory Store
// INPUT: Items ([]any, erwartet *multimodal.ImageItem)
// OUTPUT: EmbeddingBatch mit UUIDs und halboffenen Gueltigkeits-Bereichen
// NEBENEFFEKTE: Shared-Memory Lesezugriffe, Tower-Inferenz
// ABHAENGIGKEITEN: embedcache, multimodal, vision, pdevine/tensor
// HINWEISE: Leere Eingabe liefert (nil, nil) als Sentinel; Aufrufer
// muessen darauf pruefen bevor sie den Batch verwenden

package llava

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pdevine/tensor"

	"github.com/apinge/lightllm/multimodal"
	"github.com/apinge/lightllm/vision"
)

// EmbeddingBatch ist das Ergebnis eines Encode-Aufrufs.
type EmbeddingBatch struct {
	// Embeddings hat die Form (tiles_gesamt, tokens, out)
	Embeddings *tensor.Dense

	// UUIDs der Items in Eingabe-Reihenfolge
	UUIDs []uuid.UUID

	// ValidRanges[i] = [start, end) Kachel-Indizes des i-ten Items
	ValidRanges [][2]int
}

// Encode liest die Bild-Rohdaten aller Items aus dem Store, preprocesst
// sie und rechnet einen einzigen konkatenierten Forward-Pass.
// Eine leere Eingabe liefert (nil, nil).
func (m *VisionModel) Encode(items []any) (*EmbeddingBatch, error) {
	if m.closed {
		return nil, ErrModelClosed
	}
	if len(items) == 0 {
		return nil, nil
	}

	var (
		batches []*tensor.Dense
		uuids   = make([]uuid.UUID, 0, len(items))
		ranges  = make([][2]int, 0, len(items))
		total   int
	)

	for _, item := range items {
		img, ok := item.(*multimodal.ImageItem)
		if !ok {
			return nil, fmt.Errorf("%w: type %T, value %v", ErrUnsupportedItem, item, item)
		}

		pixels, err := m.preprocessItem(img)
		if err != nil {
			return nil, err
		}

		tiles := pixels.Shape()[0]
		batches = append(batches, pixels)
		uuids = append(uuids, img.UUID)
		ranges = append(ranges, [2]int{total, total + tiles})
		total += tiles
	}

	pixels := batches[0]
	if len(batches) > 1 {
		concat, err := batches[0].Concat(0, batches[1:]...)
		if err != nil {
			return nil, fmt.Errorf("llava: concat pixel batches: %w", err)
		}
		pixels = concat
	}

	embeddings, err := m.Forward(pixels)
	if err != nil {
		return nil, err
	}

	// Token-Anzahl pro Item nachtragen (Kacheln x Tokens pro Kachel)
	tokensPerTile := embeddings.Shape()[1]
	for i, item := range items {
		img := item.(*multimodal.ImageItem)
		img.TokenNum = (ranges[i][1] - ranges[i][0]) * tokensPerTile
	}

	return &EmbeddingBatch{
		Embeddings:  embeddings,
		UUIDs:       uuids,
		ValidRanges: ranges,
	}, nil
}

// preprocessItem laedt und preprocesst ein einzelnes Item.
func (m *VisionModel) preprocessItem(img *multimodal.ImageItem) (*tensor.Dense, error) {
	data, err := m.store.ReadData(img.UUID)
	if err != nil {
		return nil, fmt.Errorf("llava: item %s: %w", img.UUID, err)
	}

	decoded, err := vision.DecodeRGB(data)
	if err != nil {
		return nil, fmt.Errorf("llava: item %s: %w", img.UUID, err)
	}

	// Original-Abmessungen nachtragen falls der Producer sie nicht gesetzt hat
	if img.Width == 0 {
		img.Width = decoded.Width
	}
	if img.Height == 0 {
		img.Height = decoded.Height
	}

	pixels, err := m.processor.Preprocess(decoded)
	if err != nil {
		return nil, fmt.Errorf("llava: item %s: %w", img.UUID, err)
	}
	return pixels, nil
}
