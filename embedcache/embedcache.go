// MODUL: embedcache
// ZWECK: Shared-Memory Blob-Store fuer Bild-Rohdaten und Embeddings
// INPUT: UUID des Blobs, optional Bytes zum Schreiben
// OUTPUT: Byte-Blobs aus dem Shared-Memory Verzeichnis
// NEBENEFFEKTE: Dateisystem-Zugriffe unter /dev/shm (bzw. konfiguriertem Dir)
// ABHAENGIGKEITEN: github.com/google/uuid
// HINWEISE: Der Store wird extern befuellt und synchronisiert; dieses Paket
// liest erst nachdem der Producer die UUID gemeldet hat

package embedcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DefaultShmDir ist das Standard-Verzeichnis fuer POSIX Shared Memory.
const DefaultShmDir = "/dev/shm"

// ErrBlobNotFound wird zurueckgegeben wenn kein Blob unter der UUID liegt.
var ErrBlobNotFound = errors.New("embedcache: blob not found")

// ============================================================================
// Blob-Namensschema
// ============================================================================

// ShmNameData gibt den Shared-Memory Namen fuer Bild-Rohdaten zurueck.
func ShmNameData(id uuid.UUID) string {
	return id.String() + "-data"
}

// ShmNameEmbed gibt den Shared-Memory Namen fuer berechnete Embeddings zurueck.
func ShmNameEmbed(id uuid.UUID) string {
	return id.String() + "-embed"
}

// ============================================================================
// Store Interface und Shared-Memory Implementierung
// ============================================================================

// Store ist die Lookup-Schnittstelle fuer Byte-Blobs per UUID.
type Store interface {
	// ReadData liest die Bild-Rohdaten zu einer UUID
	ReadData(id uuid.UUID) ([]byte, error)
}

// ShmStore liest und schreibt Blobs als Dateien im Shared-Memory Verzeichnis.
type ShmStore struct {
	// Dir ist das Blob-Verzeichnis (Standard: /dev/shm)
	Dir string
}

// NewShmStore erstellt einen ShmStore. Leerer dir nutzt DefaultShmDir.
func NewShmStore(dir string) *ShmStore {
	if dir == "" {
		dir = DefaultShmDir
	}
	return &ShmStore{Dir: dir}
}

// ReadData liest die Bild-Rohdaten zu einer UUID.
func (s *ShmStore) ReadData(id uuid.UUID) ([]byte, error) {
	return s.read(ShmNameData(id))
}

// ReadEmbed liest ein zuvor geschriebenes Embedding-Blob.
func (s *ShmStore) ReadEmbed(id uuid.UUID) ([]byte, error) {
	return s.read(ShmNameEmbed(id))
}

// WriteEmbed schreibt ein berechnetes Embedding zurueck in den Store.
// Wird vom Embedding-Cache des Servers genutzt um Doppelberechnung zu sparen.
func (s *ShmStore) WriteEmbed(id uuid.UUID, data []byte) error {
	return os.WriteFile(filepath.Join(s.Dir, ShmNameEmbed(id)), data, 0o644)
}

// read liest einen benannten Blob aus dem Verzeichnis.
func (s *ShmStore) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
