// MODUL: options
// ZWECK: Functional Options Pattern fuer Tower-Konfiguration
// INPUT: Optionale Konfigurationsparameter (Device, Threads, GPU-Index)
// OUTPUT: LoadOptions Struct mit Konfiguration
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: runtime (Standard-Library), vision/backend (Device-Konstanten)
// HINWEISE: Verwendet Functional Options Pattern fuer erweiterbare Konfiguration

package vision

import (
	"errors"
	"runtime"

	"github.com/apinge/lightllm/vision/backend"
)

// ============================================================================
// LoadOptions - Zentrale Konfigurationsstruktur
// ============================================================================

// LoadOptions enthaelt die Konfiguration fuer das Laden eines Towers.
type LoadOptions struct {
	Device      string // Compute-Backend: "cpu", "cuda"
	Threads     int    // Anzahl CPU-Threads
	GPUDeviceID int    // Index des Haupt-GPUs
}

// Option ist eine funktionale Option fuer LoadOptions.
type Option func(*LoadOptions)

// ============================================================================
// Fehler-Definitionen fuer Options
// ============================================================================

var (
	ErrInvalidDevice  = errors.New("vision: invalid device")
	ErrInvalidThreads = errors.New("vision: invalid thread count")
)

// ============================================================================
// DefaultLoadOptions - Standard-Konfiguration
// ============================================================================

// DefaultLoadOptions gibt eine Standard-Konfiguration zurueck.
// - Device: "cpu" (sicherster Default)
// - Threads: Anzahl CPU-Kerne
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Device:      backend.DeviceCPU,
		Threads:     runtime.NumCPU(),
		GPUDeviceID: 0,
	}
}

// ============================================================================
// Functional Options - Builder-Funktionen
// ============================================================================

// WithDevice setzt das Compute-Backend.
// Gueltige Werte: "cpu", "cuda"
func WithDevice(device string) Option {
	return func(o *LoadOptions) {
		o.Device = device
	}
}

// WithThreads setzt die Anzahl der CPU-Threads.
// Werte <= 0 werden ignoriert.
func WithThreads(n int) Option {
	return func(o *LoadOptions) {
		if n > 0 {
			o.Threads = n
		}
	}
}

// WithGPUDeviceID setzt den Index des Haupt-GPUs.
func WithGPUDeviceID(gpu int) Option {
	return func(o *LoadOptions) {
		if gpu >= 0 {
			o.GPUDeviceID = gpu
		}
	}
}

// Apply wendet alle Options auf LoadOptions an.
func (o *LoadOptions) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// ============================================================================
// Validation
// ============================================================================

// Validate prueft ob die LoadOptions gueltig sind.
func (o *LoadOptions) Validate() error {
	switch o.Device {
	case backend.DeviceCPU, backend.DeviceCUDA:
		// gueltig
	default:
		return ErrInvalidDevice
	}

	if o.Threads <= 0 {
		return ErrInvalidThreads
	}

	return nil
}
