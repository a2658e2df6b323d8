// MODUL: llava/errors
// ZWECK: Fehler-Definitionen des LLaVA-Adapters
// INPUT: Keine
// OUTPUT: Sentinel-Fehler
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: errors (stdlib)
// HINWEISE: Alle Fehler tragen den llava: Prefix und werden mit %w gewrappt

package llava

import "errors"

var (
	// ErrProjectorIncomplete: nicht alle vier kanonischen Projector-Keys
	// wurden im Checkpoint gefunden.
	ErrProjectorIncomplete = errors.New("llava: projector weights incomplete")

	// ErrUnsupportedItem: Encode hat ein Element erhalten das kein
	// *multimodal.ImageItem ist.
	ErrUnsupportedItem = errors.New("llava: unsupported item")

	// ErrLayerOutOfRange: der konfigurierte select_layer zeigt ausserhalb
	// der vom Tower gelieferten Hidden-States.
	ErrLayerOutOfRange = errors.New("llava: select layer out of range")

	// ErrConfigMissing: config.json fehlt im Gewichts-Verzeichnis.
	ErrConfigMissing = errors.New("llava: config.json not found")

	// ErrModelClosed: Operation auf einem geschlossenen Modell.
	ErrModelClosed = errors.New("llava: model closed")
)
