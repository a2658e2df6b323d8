// MODUL: config
// ZWECK: Umgebungs-Konfiguration fuer das Vision-Subsystem
// INPUT: Umgebungsvariablen mit Prefix LIGHTLLM_VISION_
// OUTPUT: Config Struktur mit validierten Werten
// NEBENEFFEKTE: Liest Umgebungsvariablen
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: Fehlende Variablen fallen auf Defaults zurueck; ungueltige
// Werte werden ignoriert statt Fehler zu werfen

package vision

import (
	"os"
	"runtime"
	"strconv"
)

// envPrefix ist der Prefix aller Vision-Umgebungsvariablen
const envPrefix = "LIGHTLLM_VISION_"

// Config enthaelt die Laufzeit-Konfiguration des Vision-Subsystems
type Config struct {
	Backend   string // Tower-Backend Name (Default: "onnx")
	PreferGPU bool   // GPU bevorzugen wenn verfuegbar
	ShmDir    string // Shared-Memory Verzeichnis fuer Bild-Blobs
	CacheDir  string // Cache-Verzeichnis fuer Modell-Artefakte
	Threads   int    // Intra-Op Threads fuer CPU-Inferenz
}

// DefaultConfig gibt die Konfiguration mit Default-Werten zurueck
func DefaultConfig() Config {
	return Config{
		Backend:   "onnx",
		PreferGPU: true,
		ShmDir:    "/dev/shm",
		CacheDir:  defaultCacheDir(),
		Threads:   runtime.NumCPU(),
	}
}

// LoadConfig liest die Konfiguration aus der Umgebung
func LoadConfig() Config {
	cfg := DefaultConfig()

	if v := os.Getenv(envPrefix + "BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv(envPrefix + "PREFER_GPU"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PreferGPU = b
		}
	}
	if v := os.Getenv(envPrefix + "SHM_DIR"); v != "" {
		cfg.ShmDir = v
	}
	if v := os.Getenv(envPrefix + "CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(envPrefix + "THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Threads = n
		}
	}

	return cfg
}

// defaultCacheDir bestimmt das Cache-Verzeichnis aus der Umgebung
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/lightllm/vision"
	}
	return os.TempDir() + "/lightllm-vision"
}
