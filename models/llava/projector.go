// MODUL: llava/projector
// ZWECK: Zwei-Schicht MLP das Tower-Features in den LM-Embedding-Raum hebt
// INPUT: Kanonische Gewichts-Map, Feature-Matrix (rows, in)
// OUTPUT: Projizierte Matrix (rows, out)
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: pdevine/tensor (MatMul), math (erf)
// HINWEISE: Linear -> GELU (exakt, erf-Form) -> Linear; Gewichte liegen im
// Checkpoint als (out, in) und werden beim Bau einmalig transponiert

package llava

import (
	"fmt"
	"math"

	"github.com/pdevine/tensor"
)

// Kanonische Projector-Keys. Beide Lade-Strategien muenden in genau
// diesen vier Namen; fehlt einer, ist der Checkpoint unbrauchbar.
const (
	KeyProjector0Weight = "model.mm_projector.0.weight"
	KeyProjector0Bias   = "model.mm_projector.0.bias"
	KeyProjector2Weight = "model.mm_projector.2.weight"
	KeyProjector2Bias   = "model.mm_projector.2.bias"
)

// canonicalKeys listet alle Pflicht-Keys fuer die Invarianten-Pruefung.
var canonicalKeys = []string{
	KeyProjector0Weight,
	KeyProjector0Bias,
	KeyProjector2Weight,
	KeyProjector2Bias,
}

// weight ist ein roher Checkpoint-Tensor, strategie-unabhaengig.
type weight struct {
	shape []int
	data  []float32
}

// Projector ist das geladene zwei-Schicht MLP.
type Projector struct {
	w0 *tensor.Dense // (in, hidden), transponiert
	b0 []float32
	w2 *tensor.Dense // (hidden, out), transponiert
	b2 []float32

	inDim     int
	hiddenDim int
	outDim    int
}

// newProjector prueft die Vollstaendigkeits-Invariante und baut das MLP.
func newProjector(weights map[string]*weight) (*Projector, error) {
	for _, key := range canonicalKeys {
		if _, ok := weights[key]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrProjectorIncomplete, key)
		}
	}

	w0raw := weights[KeyProjector0Weight]
	w2raw := weights[KeyProjector2Weight]
	b0 := weights[KeyProjector0Bias]
	b2 := weights[KeyProjector2Bias]

	if len(w0raw.shape) != 2 || len(w2raw.shape) != 2 {
		return nil, fmt.Errorf("llava: projector weights must be matrices, got %v and %v",
			w0raw.shape, w2raw.shape)
	}

	hiddenDim, inDim := w0raw.shape[0], w0raw.shape[1]
	outDim := w2raw.shape[0]

	if w2raw.shape[1] != hiddenDim {
		return nil, fmt.Errorf("llava: projector layer mismatch: %v -> %v",
			w0raw.shape, w2raw.shape)
	}
	if len(b0.data) != hiddenDim || len(b2.data) != outDim {
		return nil, fmt.Errorf("llava: projector bias mismatch: %d/%d vs %d/%d",
			len(b0.data), len(b2.data), hiddenDim, outDim)
	}

	return &Projector{
		w0:        transpose(w0raw.data, hiddenDim, inDim),
		b0:        b0.data,
		w2:        transpose(w2raw.data, outDim, hiddenDim),
		b2:        b2.data,
		inDim:     inDim,
		hiddenDim: hiddenDim,
		outDim:    outDim,
	}, nil
}

// Forward projiziert eine Feature-Matrix (rows, inDim) nach (rows, outDim).
func (p *Projector) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != p.inDim {
		return nil, fmt.Errorf("llava: projector input shape %v, expected (*, %d)",
			shape, p.inDim)
	}

	h, err := matmul(x, p.w0)
	if err != nil {
		return nil, fmt.Errorf("llava: projector layer 0: %w", err)
	}
	addBias(h, p.b0)
	geluInPlace(h)

	out, err := matmul(h, p.w2)
	if err != nil {
		return nil, fmt.Errorf("llava: projector layer 2: %w", err)
	}
	addBias(out, p.b2)

	return out, nil
}

// Dims gibt (in, hidden, out) zurueck.
func (p *Projector) Dims() (int, int, int) {
	return p.inDim, p.hiddenDim, p.outDim
}

// matmul multipliziert zwei Matrizen ueber tensor.Dot.
func matmul(a, b *tensor.Dense) (*tensor.Dense, error) {
	res, err := tensor.Dot(a, b)
	if err != nil {
		return nil, err
	}
	dense, ok := res.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("unexpected matmul result %T", res)
	}
	return dense, nil
}

// transpose legt eine (rows, cols) Gewichts-Matrix als (cols, rows) Dense ab.
func transpose(data []float32, rows, cols int) *tensor.Dense {
	out := make([]float32, len(data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = data[r*cols+c]
		}
	}
	return tensor.New(tensor.WithShape(cols, rows), tensor.WithBacking(out))
}

// addBias addiert den Bias zeilenweise auf eine (rows, len(bias)) Matrix.
func addBias(m *tensor.Dense, bias []float32) {
	data := m.Data().([]float32)
	n := len(bias)
	for i := range data {
		data[i] += bias[i%n]
	}
}

// geluInPlace wendet die exakte GELU (erf-Form) elementweise an.
func geluInPlace(m *tensor.Dense) {
	data := m.Data().([]float32)
	for i, v := range data {
		x := float64(v)
		data[i] = float32(0.5 * x * (1 + math.Erf(x/math.Sqrt2)))
	}
}
