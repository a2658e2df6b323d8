//go:build !cgo

// MODUL: onnx/stub
// ZWECK: Stub-Implementierung wenn CGO nicht verfuegbar ist
// HINWEISE: Gibt Fehler zurueck bei allen Operationen

package onnx

import (
	"errors"

	"github.com/apinge/lightllm/vision"
)

// ErrCGORequired wird zurueckgegeben wenn CGO nicht verfuegbar ist
var ErrCGORequired = errors.New("onnx: CGO required but not available")

// DefaultInputName ist der Input-Tensor Name der exportierten CLIP-Tuerme
const DefaultInputName = "pixel_values"

// TowerFactory Stub - gibt immer Fehler zurueck
func TowerFactory(modelPath string, cfg vision.TowerConfig, opts vision.LoadOptions) (vision.Tower, error) {
	return nil, ErrCGORequired
}
