// MODUL: torch
// ZWECK: Reader fuer PyTorch .bin Checkpoints (Pickle-Format)
// INPUT: Pfad zu einer torch.save State-Dict Datei
// OUTPUT: map von Tensor-Namen zu float32-dekodierten Tensoren
// NEBENEFFEKTE: Dateisystem-Lesezugriff
// ABHAENGIGKEITEN: nlpodyssey/gopickle (Pickle/PyTorch Deserialisierung)
// HINWEISE: Nur zusammenhaengende (contiguous) Tensoren; alle Storage-Typen
// werden zu float32 erweitert

package torch

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// ============================================================================
// Fehler-Definitionen
// ============================================================================

var (
	ErrNotStateDict   = errors.New("torch: checkpoint is not a state dict")
	ErrUnknownStorage = errors.New("torch: unsupported storage type")
)

// ============================================================================
// Tensor - dekodierter Checkpoint-Tensor
// ============================================================================

// Tensor ist ein vollstaendig gelesener Tensor aus einem .bin Checkpoint.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// Elems gibt die Element-Anzahl laut Shape zurueck.
func (t *Tensor) Elems() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ============================================================================
// LoadStateDict - Checkpoint einlesen
// ============================================================================

// LoadStateDict laedt ein mit torch.save geschriebenes State-Dict.
// Sowohl OrderedDict als auch einfache Dict Wurzeln werden akzeptiert.
func LoadStateDict(path string) (map[string]*Tensor, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("torch: load %s: %w", path, err)
	}

	out := make(map[string]*Tensor)

	switch d := obj.(type) {
	case *types.OrderedDict:
		for key, entry := range d.Map {
			if err := collect(out, key, entry.Value); err != nil {
				return nil, err
			}
		}
	case *types.Dict:
		for _, entry := range *d {
			if err := collect(out, entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotStateDict, obj)
	}

	return out, nil
}

// collect konvertiert einen State-Dict Eintrag und traegt ihn in out ein.
// Nicht-Tensor Werte (z.B. Metadaten-Eintraege) werden ueberlesen.
func collect(out map[string]*Tensor, key, value any) error {
	name, ok := key.(string)
	if !ok {
		return nil
	}
	pt, ok := value.(*pytorch.Tensor)
	if !ok {
		return nil
	}

	t, err := Convert(name, pt)
	if err != nil {
		return err
	}
	out[name] = t
	return nil
}

// ============================================================================
// Convert - pytorch.Tensor zu float32-Tensor
// ============================================================================

// Convert dekodiert einen gopickle pytorch.Tensor zu float32.
// StorageOffset wird beruecksichtigt; Stride muss contiguous sein.
func Convert(name string, pt *pytorch.Tensor) (*Tensor, error) {
	shape := make([]int, len(pt.Size))
	n := 1
	for i, d := range pt.Size {
		shape[i] = d
		n *= d
	}

	data := make([]float32, n)
	start := int(pt.StorageOffset)

	switch src := pt.Source.(type) {
	case *pytorch.FloatStorage:
		copy(data, src.Data[start:start+n])
	case *pytorch.HalfStorage:
		copy(data, src.Data[start:start+n])
	case *pytorch.BFloat16Storage:
		copy(data, src.Data[start:start+n])
	case *pytorch.DoubleStorage:
		for i, v := range src.Data[start : start+n] {
			data[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("%w: %T (tensor %q)", ErrUnknownStorage, pt.Source, name)
	}

	return &Tensor{Name: name, Shape: shape, Data: data}, nil
}
