// MODUL: backend
// ZWECK: Abstraktion fuer Compute-Geraete (CPU/CUDA) und deren Erkennung
// INPUT: Keine (reine Datenstrukturen und Detection)
// OUTPUT: Device-Typ, DeviceInfo, Verfuegbarkeit
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: Keine externen (nur stdlib)
// HINWEISE: CUDA-Erkennung in cuda.go (Treiber-Probe ohne CGO)

package backend

// ============================================================================
// Device-Konstanten
// ============================================================================

const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// ============================================================================
// DeviceInfo - Hardware-Informationen
// ============================================================================

// DeviceInfo enthaelt Informationen ueber ein verfuegbares Compute-Geraet.
type DeviceInfo struct {
	Device     string // Geraete-Typ (cpu, cuda)
	DeviceID   int    // Geraete-Index (0 fuer CPU, GPU-Index sonst)
	DeviceName string // Lesbarer Geraetename
	IsDefault  bool   // Ob dies das Standard-Geraet ist
}

// ============================================================================
// Detection Interface
// ============================================================================

// Detector ist das Interface fuer Geraete-Erkennung.
type Detector interface {
	// Detect prueft ob das Geraet verfuegbar ist
	Detect() bool

	// GetDevices gibt alle verfuegbaren Geraete zurueck
	GetDevices() []DeviceInfo

	// Device gibt den Geraete-Typ zurueck
	Device() string
}

// ============================================================================
// Globale Detection-Funktionen
// ============================================================================

// registeredDetectors haelt alle registrierten Detektoren.
var registeredDetectors = map[string]Detector{
	DeviceCUDA: NewCUDADetector(),
}

// RegisterDetector registriert einen Detektor fuer ein Geraet.
// Ueberschreibt den eingebauten Detektor (z.B. fuer Tests).
func RegisterDetector(device string, d Detector) {
	registeredDetectors[device] = d
}

// DetectDevices erkennt alle verfuegbaren Geraete-Typen.
func DetectDevices() []string {
	// CPU ist immer verfuegbar
	available := []string{DeviceCPU}

	if d, ok := registeredDetectors[DeviceCUDA]; ok && d.Detect() {
		available = append(available, DeviceCUDA)
	}

	return available
}

// GetDevices gibt alle verfuegbaren Geraete zurueck.
func GetDevices() []DeviceInfo {
	devices := []DeviceInfo{cpuDeviceInfo()}

	if d, ok := registeredDetectors[DeviceCUDA]; ok && d.Detect() {
		devices = append(devices, d.GetDevices()...)
	}

	return devices
}

// IsDeviceAvailable prueft ob ein bestimmtes Geraet verfuegbar ist.
func IsDeviceAvailable(device string) bool {
	if device == DeviceCPU {
		return true
	}
	if d, ok := registeredDetectors[device]; ok {
		return d.Detect()
	}
	return false
}

// SelectBestDevice waehlt CUDA wenn verfuegbar, sonst CPU.
func SelectBestDevice() string {
	if IsDeviceAvailable(DeviceCUDA) {
		return DeviceCUDA
	}
	return DeviceCPU
}

// cpuDeviceInfo gibt Informationen ueber die CPU zurueck.
func cpuDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Device:     DeviceCPU,
		DeviceID:   0,
		DeviceName: "CPU",
		IsDefault:  true,
	}
}
