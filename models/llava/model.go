// MODUL: llava/model
// ZWECK: VisionModel Struktur, Lade-Optionen und Geraete-Verwaltung
// INPUT: Geladene Komponenten (Tower, Projector, Preprocessor, Store)
// OUTPUT: Einsatzbereites Modell
// NEBENEFFEKTE: Geraete-Wechsel des Towers
// ABHAENGIGKEITEN: vision, vision/backend, embedcache
// HINWEISE: Single-threaded Nutzung; Cuda() ist idempotent

package llava

import (
	"fmt"
	"log/slog"

	"github.com/pdevine/tensor"

	"github.com/apinge/lightllm/embedcache"
	"github.com/apinge/lightllm/vision"
	"github.com/apinge/lightllm/vision/backend"
)

// ============================================================================
// Lade-Optionen (Functional Options)
// ============================================================================

// loadSettings buendelt alle LoadModel Einstellungen. Defaults stammen
// aus der Umgebungs-Konfiguration des Vision-Subsystems.
type loadSettings struct {
	store    embedcache.Store
	backend  string
	device   string
	threads  int
	gpuID    int
	cacheDir string
	logger   *slog.Logger
}

// Option ist eine funktionale Lade-Option.
type Option func(*loadSettings)

// WithStore setzt den Blob-Store fuer Bild-Rohdaten.
func WithStore(store embedcache.Store) Option {
	return func(s *loadSettings) { s.store = store }
}

// WithBackend setzt das Tower-Backend (Registry-Name).
func WithBackend(name string) Option {
	return func(s *loadSettings) {
		if name != "" {
			s.backend = name
		}
	}
}

// WithDevice setzt das initiale Compute-Geraet.
func WithDevice(device string) Option {
	return func(s *loadSettings) {
		if device != "" {
			s.device = device
		}
	}
}

// WithThreads setzt die CPU-Thread-Anzahl fuer die Tower-Inferenz.
func WithThreads(n int) Option {
	return func(s *loadSettings) {
		if n > 0 {
			s.threads = n
		}
	}
}

// WithCacheDir setzt das Verzeichnis fuer aufgeloeste Tower-Artefakte.
func WithCacheDir(dir string) Option {
	return func(s *loadSettings) {
		if dir != "" {
			s.cacheDir = dir
		}
	}
}

// WithLogger setzt den Logger des Modells.
func WithLogger(logger *slog.Logger) Option {
	return func(s *loadSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// defaultSettings leitet die Defaults aus der Umgebung ab.
func defaultSettings() loadSettings {
	envCfg := vision.LoadConfig()
	return loadSettings{
		store:    embedcache.NewShmStore(envCfg.ShmDir),
		backend:  envCfg.Backend,
		device:   backend.DeviceCPU,
		threads:  envCfg.Threads,
		gpuID:    0,
		cacheDir: envCfg.CacheDir,
		logger:   slog.Default(),
	}
}

// ============================================================================
// VisionModel
// ============================================================================

// preprocessor wandelt ein dekodiertes Bild in einen Pixel-Tensor der
// Form (tiles, 3, H, W). Die Kachel-Anzahl darf je Bild variieren.
type preprocessor interface {
	Preprocess(img *vision.ImageInput) (*tensor.Dense, error)
}

// VisionModel ist der geladene LLaVA Bild-Encoder: Preprocessor, Tower
// und Projector hinter einer Encode-Schnittstelle.
type VisionModel struct {
	cfg       *ModelConfig
	tower     vision.Tower
	projector *Projector
	processor preprocessor
	store     embedcache.Store
	device    string
	logger    *slog.Logger
	closed    bool
}

// Config gibt die ausgewertete Checkpoint-Konfiguration zurueck.
func (m *VisionModel) Config() *ModelConfig {
	return m.cfg
}

// Device gibt das aktuelle Compute-Geraet zurueck.
func (m *VisionModel) Device() string {
	return m.device
}

// Cuda verschiebt das Modell auf die GPU. Idempotent: ist das Modell
// bereits auf cuda, passiert nichts. Die Projector-Tensoren sind reine
// Go-Daten und brauchen keine Kopie; nur der Tower wechselt das Geraet.
func (m *VisionModel) Cuda() error {
	if m.closed {
		return ErrModelClosed
	}
	if m.device == backend.DeviceCUDA {
		return nil
	}
	if !backend.IsDeviceAvailable(backend.DeviceCUDA) {
		return fmt.Errorf("llava: device %s not available", backend.DeviceCUDA)
	}

	if err := m.tower.ToDevice(backend.DeviceCUDA); err != nil {
		return fmt.Errorf("llava: move tower: %w", err)
	}

	m.device = backend.DeviceCUDA
	m.logger.Info("llava: modell auf gpu verschoben", "device", m.device)
	return nil
}

// Close gibt die Tower-Ressourcen frei. Weitere Operationen schlagen
// mit ErrModelClosed fehl.
func (m *VisionModel) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.tower.Close()
}
