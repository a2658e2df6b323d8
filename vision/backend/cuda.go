// MODUL: cuda
// ZWECK: CUDA-Erkennung ueber Treiber-Artefakte im Dateisystem
// INPUT: Keine (Dateisystem-Probe)
// OUTPUT: DeviceInfo fuer CUDA-Geraete
// NEBENEFFEKTE: Dateisystem-Lesezugriffe unter /proc und /dev
// HINWEISE: Keine CUDA-Runtime noetig; die eigentliche GPU-Nutzung laeuft
// ueber den Execution Provider des Tower-Backends

package backend

import (
	"fmt"
	"os"
)

// ============================================================================
// CUDADetector - Treiber-Probe
// ============================================================================

// CUDADetector erkennt NVIDIA-GPUs anhand der Geraeteknoten des Treibers.
type CUDADetector struct {
	available bool
	devices   []DeviceInfo
	checked   bool
}

// NewCUDADetector erstellt einen neuen CUDA-Detektor.
func NewCUDADetector() *CUDADetector {
	return &CUDADetector{}
}

// Detect prueft ob der NVIDIA-Treiber geladen ist.
// Ergebnis wird gecacht; die Hardware aendert sich zur Laufzeit nicht.
func (d *CUDADetector) Detect() bool {
	if d.checked {
		return d.available
	}

	d.available = driverPresent()
	d.checked = true
	return d.available
}

// GetDevices zaehlt die Geraeteknoten /dev/nvidia0..N auf.
func (d *CUDADetector) GetDevices() []DeviceInfo {
	if !d.Detect() {
		return nil
	}
	if d.devices != nil {
		return d.devices
	}

	for i := 0; ; i++ {
		if _, err := os.Stat(fmt.Sprintf("/dev/nvidia%d", i)); err != nil {
			break
		}
		d.devices = append(d.devices, DeviceInfo{
			Device:     DeviceCUDA,
			DeviceID:   i,
			DeviceName: fmt.Sprintf("CUDA %d", i),
		})
	}

	return d.devices
}

// Device gibt DeviceCUDA zurueck.
func (d *CUDADetector) Device() string {
	return DeviceCUDA
}

// driverPresent prueft die bekannten Treiber-Artefakte.
func driverPresent() bool {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true
	}
	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		return true
	}
	return false
}
