// MODUL: llava/forward
// ZWECK: Forward-Pass Pixel-Batch -> projizierte Embeddings
// INPUT: Pixel-Tensor (batch, 3, H, W)
// OUTPUT: Embedding-Tensor (batch, tokens, out)
// NEBENEFFEKTE: Tower-Inferenz
// ABHAENGIGKEITEN: pdevine/tensor
// HINWEISE: Layer-Auswahl mit negativer Indizierung; "patch" und "default"
// entfernen das fuehrende CLS-Token, alle anderen Modi reichen durch

package llava

import (
	"fmt"

	"github.com/pdevine/tensor"
)

// Forward rechnet einen Pixel-Batch durch Tower und Projector.
func (m *VisionModel) Forward(pixels *tensor.Dense) (*tensor.Dense, error) {
	if m.closed {
		return nil, ErrModelClosed
	}

	hidden, err := m.tower.ForwardHiddenStates(pixels)
	if err != nil {
		return nil, fmt.Errorf("llava: tower forward: %w", err)
	}

	selected, err := selectLayer(hidden, m.cfg.SelectLayer)
	if err != nil {
		return nil, err
	}

	features, err := selectFeature(selected, m.cfg.SelectFeature)
	if err != nil {
		return nil, err
	}

	shape := features.Shape()
	batch, seq, dim := shape[0], shape[1], shape[2]

	// (B, L, N) -> (B*L, N) fuer die Matrix-Multiplikation
	flat := tensor.New(
		tensor.WithShape(batch*seq, dim),
		tensor.WithBacking(features.Data().([]float32)),
	)

	projected, err := m.projector.Forward(flat)
	if err != nil {
		return nil, err
	}

	_, _, outDim := m.projector.Dims()
	if err := projected.Reshape(batch, seq, outDim); err != nil {
		return nil, fmt.Errorf("llava: reshape output: %w", err)
	}

	return projected, nil
}

// selectLayer waehlt den Hidden-State per Index; negative Indizes
// zaehlen vom Ende (python-Semantik).
func selectLayer(hidden []*tensor.Dense, index int) (*tensor.Dense, error) {
	idx := index
	if idx < 0 {
		idx += len(hidden)
	}
	if idx < 0 || idx >= len(hidden) {
		return nil, fmt.Errorf("%w: index %d, depth %d",
			ErrLayerOutOfRange, index, len(hidden))
	}
	return hidden[idx], nil
}

// selectFeature entfernt fuer "patch"/"default" das CLS-Token (Position 0
// der Sequenz); andere Modi geben den Tensor unveraendert zurueck.
func selectFeature(h *tensor.Dense, mode string) (*tensor.Dense, error) {
	switch mode {
	case "patch", "default":
		// weiter unten
	default:
		return h, nil
	}

	shape := h.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("llava: hidden state shape %v, expected 3 dims", shape)
	}
	batch, seq, dim := shape[0], shape[1], shape[2]
	if seq < 2 {
		return nil, fmt.Errorf("llava: sequence length %d too short to drop class token", seq)
	}

	src := h.Data().([]float32)
	out := make([]float32, batch*(seq-1)*dim)
	for b := 0; b < batch; b++ {
		// Token 0 jeder Sequenz ueberspringen
		copy(out[b*(seq-1)*dim:], src[b*seq*dim+dim:(b+1)*seq*dim])
	}

	return tensor.New(
		tensor.WithShape(batch, seq-1, dim),
		tensor.WithBacking(out),
	), nil
}
