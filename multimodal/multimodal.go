// MODUL: multimodal
// ZWECK: Multimodale Request-Parameter fuer Bild-Eingaben
// INPUT: UUID, Bild-Metadaten
// OUTPUT: ImageItem Struktur
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: github.com/google/uuid
// HINWEISE: Die Rohdaten liegen im Shared-Memory Store (embedcache), nicht hier

package multimodal

import (
	"github.com/google/uuid"
)

// ============================================================================
// ImageItem - Referenz auf ein Bild im Shared-Memory Store
// ============================================================================

// ImageItem referenziert ein Bild ueber seine UUID. Die Bild-Bytes selbst
// werden vom Upstream-Request-Handler in den Shared-Memory Store geschrieben
// und hier nur gelesen.
type ImageItem struct {
	// UUID identifiziert den Byte-Blob im Shared-Memory Store
	UUID uuid.UUID `json:"uuid"`

	// Width und Height sind die Original-Abmessungen des Bildes
	Width  int `json:"image_w"`
	Height int `json:"image_h"`

	// TokenNum ist die Anzahl der Embedding-Tokens die das Bild im
	// Token-Strom des Sprachmodells belegt (vom Scheduler gesetzt)
	TokenNum int `json:"token_num"`
}

// NewImageItem erstellt ein ImageItem mit frischer UUID.
func NewImageItem(width, height int) *ImageItem {
	return &ImageItem{
		UUID:   uuid.New(),
		Width:  width,
		Height: height,
	}
}
