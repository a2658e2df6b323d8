// MODUL: tower
// ZWECK: Capability-Interface fuer vortrainierte Vision-Tower
// INPUT: Preprocessed Pixel-Batches (NCHW float32)
// OUTPUT: Hidden-State Tensoren aller Layer
// NEBENEFFEKTE: Keine (reine Interface-Definition)
// ABHAENGIGKEITEN: pdevine/tensor
// HINWEISE: Konkrete Tower (z.B. ONNX Runtime) registrieren sich via init()
// in der DefaultRegistry; der Tower rechnet, dieses Paket orchestriert nur

package vision

import (
	"github.com/pdevine/tensor"
)

// ============================================================================
// Tower Interface
// ============================================================================

// Tower ist ein vortrainierter Bild-Feature-Extraktor. Er ist fuer den
// Adapter eine opake Faehigkeit: laden, vorwaerts rechnen, Geraet wechseln.
// Tower sind inference-only; es gibt keine Gradienten.
type Tower interface {
	// ForwardHiddenStates fuehrt einen Forward-Pass ueber einen Pixel-Batch
	// (batch, channels, height, width) aus und gibt die Hidden-States aller
	// Layer zurueck: Index 0 ist die Embedding-Schicht, danach je ein
	// Eintrag pro Encoder-Block. Jeder Tensor hat die Form
	// (batch, sequence, hidden).
	ForwardHiddenStates(pixels *tensor.Dense) ([]*tensor.Dense, error)

	// ToDevice verschiebt den Tower auf das angegebene Geraet.
	// Idempotent: erneutes Verschieben auf dasselbe Geraet ist ein No-Op.
	ToDevice(device string) error

	// Info gibt Metadaten ueber den geladenen Tower zurueck.
	Info() TowerInfo

	// Close gibt alle Ressourcen des Towers frei.
	Close() error
}

// TowerInfo enthaelt Metadaten ueber einen geladenen Tower.
type TowerInfo struct {
	Name       string // Modell-Name
	Backend    string // Backend-Typ (z.B. "onnx")
	HiddenSize int    // Breite der Hidden-States
	ImageSize  int    // Erwartete Bildkante in Pixeln
	PatchSize  int    // Patch-Kante in Pixeln
	NumLayers  int    // Anzahl Encoder-Bloecke
}

// SequenceLen gibt die Token-Anzahl pro Bild zurueck (Patches + CLS-Token).
func (i TowerInfo) SequenceLen() int {
	if i.PatchSize <= 0 {
		return 0
	}
	side := i.ImageSize / i.PatchSize
	return side*side + 1
}

// ============================================================================
// TowerConfig - Architektur-Parameter aus config.json
// ============================================================================

// TowerConfig beschreibt die Tower-Architektur soweit der Adapter sie
// kennen muss. Die Werte stammen aus der vision_config des Checkpoints.
type TowerConfig struct {
	HiddenSize int `json:"hidden_size"`
	ImageSize  int `json:"image_size"`
	PatchSize  int `json:"patch_size"`
	NumLayers  int `json:"num_hidden_layers"`
}

// DefaultTowerConfig gibt die Architektur von CLIP ViT-L/14-336 zurueck,
// dem Standard-Tower der LLaVA-Familie.
func DefaultTowerConfig() TowerConfig {
	return TowerConfig{
		HiddenSize: 1024,
		ImageSize:  336,
		PatchSize:  14,
		NumLayers:  24,
	}
}

// ============================================================================
// TowerFactory - Factory-Funktion Typ
// ============================================================================

// TowerFactory erstellt einen Tower aus einem Modell-Artefakt.
// Wird von Registry.Register() verwendet.
type TowerFactory func(modelPath string, cfg TowerConfig, opts LoadOptions) (Tower, error)
