//go:build cgo

// MODUL: onnx/tower
// ZWECK: Vision-Tower auf Basis der ONNX Runtime
// INPUT: pixel_values Tensor (batch, 3, H, W)
// OUTPUT: Hidden-States aller Encoder-Schichten
// NEBENEFFEKTE: Alloziert ONNX Runtime Ressourcen
// ABHAENGIGKEITEN: onnxruntime_go, pdevine/tensor, vision
// HINWEISE: Das ONNX-Modell muss mit output_hidden_states exportiert sein;
// die Outputs heissen hidden_states.0 .. hidden_states.N

package onnx

import (
	"fmt"
	"sync"

	"github.com/pdevine/tensor"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/apinge/lightllm/vision"
	"github.com/apinge/lightllm/vision/backend"
)

// DefaultInputName ist der Input-Tensor Name der exportierten CLIP-Tuerme
const DefaultInputName = "pixel_values"

// hiddenStateName gibt den Output-Namen der i-ten Schicht zurueck
func hiddenStateName(i int) string {
	return fmt.Sprintf("hidden_states.%d", i)
}

// ============================================================================
// OnnxTower
// ============================================================================

// OnnxTower fuehrt einen vortrainierten Vision-Encoder ueber die ONNX
// Runtime aus und implementiert vision.Tower.
type OnnxTower struct {
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	modelPath   string
	cfg         vision.TowerConfig
	opts        vision.LoadOptions
	outputNames []string
	device      string
}

// NewOnnxTower laedt ein ONNX-Modell und erstellt eine Inference-Session.
func NewOnnxTower(modelPath string, cfg vision.TowerConfig, opts vision.LoadOptions) (*OnnxTower, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if cfg.NumLayers <= 0 || cfg.HiddenSize <= 0 {
		return nil, fmt.Errorf("onnx: invalid tower config: %+v", cfg)
	}

	// Bildgroesse aus dem Modell uebernehmen wenn abweichend exportiert
	if size := probeImageSize(modelPath, DefaultInputName); size > 0 {
		cfg.ImageSize = size
	}

	// Embedding-Schicht + ein Output pro Encoder-Block
	outputNames := make([]string, cfg.NumLayers+1)
	for i := range outputNames {
		outputNames[i] = hiddenStateName(i)
	}

	session, err := createSession(modelPath, sessionConfig{
		inputName:   DefaultInputName,
		outputNames: outputNames,
		numThreads:  opts.Threads,
		device:      opts.Device,
		gpuDeviceID: opts.GPUDeviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("onnx: load %s: %w", modelPath, err)
	}

	return &OnnxTower{
		session:     session,
		modelPath:   modelPath,
		cfg:         cfg,
		opts:        opts,
		outputNames: outputNames,
		device:      opts.Device,
	}, nil
}

// ForwardHiddenStates fuehrt einen Forward-Pass aus und gibt die
// Hidden-States aller Schichten zurueck, je (batch, sequence, hidden).
func (t *OnnxTower) ForwardHiddenStates(pixels *tensor.Dense) ([]*tensor.Dense, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return nil, fmt.Errorf("onnx: tower already closed")
	}

	shape := pixels.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("onnx: expected NCHW input, got shape %v", shape)
	}
	batch := shape[0]
	seq := t.Info().SequenceLen()

	data, ok := pixels.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("onnx: expected float32 pixels, got %T", pixels.Data())
	}

	inputTensor, err := ort.NewTensor(ort.Shape{
		int64(shape[0]), int64(shape[1]), int64(shape[2]), int64(shape[3]),
	}, data)
	if err != nil {
		return nil, fmt.Errorf("onnx: input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// Output-Tensoren vorab allozieren
	outputs := make([]ort.ArbitraryTensor, len(t.outputNames))
	backings := make([][]float32, len(t.outputNames))
	outShape := ort.Shape{int64(batch), int64(seq), int64(t.cfg.HiddenSize)}
	for i := range outputs {
		backings[i] = make([]float32, batch*seq*t.cfg.HiddenSize)
		out, err := ort.NewTensor(outShape, backings[i])
		if err != nil {
			for j := 0; j < i; j++ {
				outputs[j].Destroy()
			}
			return nil, fmt.Errorf("onnx: output tensor %d: %w", i, err)
		}
		outputs[i] = out
	}
	defer func() {
		for _, out := range outputs {
			out.Destroy()
		}
	}()

	if err := t.session.Run([]ort.ArbitraryTensor{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}

	hidden := make([]*tensor.Dense, len(backings))
	for i, backing := range backings {
		// Backing gehoert nach Run dem Dense-Tensor; ONNX-Outputs sind zerstoert
		hidden[i] = tensor.New(
			tensor.WithShape(batch, seq, t.cfg.HiddenSize),
			tensor.WithBacking(backing),
		)
	}

	return hidden, nil
}

// ToDevice verschiebt den Tower durch Neuaufbau der Session.
// Idempotent: gleiches Geraet ist ein No-Op.
func (t *OnnxTower) ToDevice(device string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if device == t.device {
		return nil
	}
	if device == backend.DeviceCUDA && !backend.IsDeviceAvailable(backend.DeviceCUDA) {
		return fmt.Errorf("onnx: device %s not available", device)
	}

	session, err := createSession(t.modelPath, sessionConfig{
		inputName:   DefaultInputName,
		outputNames: t.outputNames,
		numThreads:  t.opts.Threads,
		device:      device,
		gpuDeviceID: t.opts.GPUDeviceID,
	})
	if err != nil {
		return fmt.Errorf("onnx: move to %s: %w", device, err)
	}

	t.session.Destroy()
	t.session = session
	t.device = device
	return nil
}

// Info gibt Metadaten ueber den geladenen Tower zurueck.
func (t *OnnxTower) Info() vision.TowerInfo {
	return vision.TowerInfo{
		Name:       t.modelPath,
		Backend:    "onnx",
		HiddenSize: t.cfg.HiddenSize,
		ImageSize:  t.cfg.ImageSize,
		PatchSize:  t.cfg.PatchSize,
		NumLayers:  t.cfg.NumLayers,
	}
}

// Close gibt die Session frei.
func (t *OnnxTower) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		t.session.Destroy()
		t.session = nil
	}
	return nil
}

// TowerFactory erstellt einen OnnxTower; wird in der Registry verwendet.
func TowerFactory(modelPath string, cfg vision.TowerConfig, opts vision.LoadOptions) (vision.Tower, error) {
	return NewOnnxTower(modelPath, cfg, opts)
}
