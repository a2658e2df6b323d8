//go:build cgo

// MODUL: onnx/session
// ZWECK: ONNX Runtime Session Management - Erstellen, Konfigurieren, Ausfuehren
// INPUT: Modell-Pfad (.onnx), Session-Optionen
// OUTPUT: Session-Handle
// NEBENEFFEKTE: Alloziert ONNX Runtime Ressourcen, GPU Memory
// ABHAENGIGKEITEN: onnxruntime_go
// HINWEISE: Thread-sicher, Destroy() MUSS aufgerufen werden

package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/apinge/lightllm/vision/backend"
)

// ============================================================================
// Runtime Initialisierung (Singleton)
// ============================================================================

var (
	runtimeInitOnce sync.Once
	runtimeInitErr  error
)

// InitRuntime initialisiert die ONNX Runtime einmalig.
// Wird automatisch beim ersten Session-Erstellen aufgerufen.
func InitRuntime() error {
	runtimeInitOnce.Do(func() {
		runtimeInitErr = ort.InitializeEnvironment()
	})
	return runtimeInitErr
}

// DestroyRuntime gibt die ONNX Runtime frei.
// Sollte am Programmende aufgerufen werden.
func DestroyRuntime() error {
	return ort.DestroyEnvironment()
}

// ============================================================================
// Session-Erstellung
// ============================================================================

// sessionConfig buendelt die Parameter fuer createSession.
type sessionConfig struct {
	inputName   string
	outputNames []string
	numThreads  int
	device      string
	gpuDeviceID int
}

// createSession erstellt eine DynamicAdvancedSession mit den angegebenen
// Input/Output-Namen. Bei device == cuda wird der CUDA Execution Provider
// angehaengt; schlaegt das fehl, laeuft die Session auf CPU weiter.
func createSession(modelPath string, cfg sessionConfig) (*ort.DynamicAdvancedSession, error) {
	if err := InitRuntime(); err != nil {
		return nil, fmt.Errorf("runtime init: %w", err)
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer sessOpts.Destroy()

	if cfg.numThreads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(cfg.numThreads); err != nil {
			return nil, fmt.Errorf("threads setzen: %w", err)
		}
	}

	if cfg.device == backend.DeviceCUDA {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err == nil {
			_ = cudaOpts.Update(map[string]string{
				"device_id": fmt.Sprintf("%d", cfg.gpuDeviceID),
			})
			_ = sessOpts.AppendExecutionProviderCUDA(cudaOpts)
			cudaOpts.Destroy()
		}
		// Bei Fehler: Fallback auf CPU (kein Error)
	}

	inner, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{cfg.inputName},
		cfg.outputNames,
		sessOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("session erstellen: %w", err)
	}

	return inner, nil
}

// probeImageSize liest die Bildgroesse aus der Input-Shape der Modell-Datei.
// Erwartet NCHW Format [N, C, H, W], gibt H zurueck; 0 wenn unbekannt.
func probeImageSize(modelPath, inputName string) int {
	inputs, _, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return 0
	}
	for _, info := range inputs {
		if info.Name == inputName && len(info.Dimensions) >= 4 {
			h := info.Dimensions[2]
			if h > 0 && h <= 1024 {
				return int(h)
			}
		}
	}
	return 0
}
