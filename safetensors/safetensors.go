// MODUL: safetensors
// ZWECK: Minimaler Reader fuer das Safetensors-Checkpoint-Format
// INPUT: Pfad zu einer .safetensors Datei
// OUTPUT: Tensor-Namen, Shapes und float32-dekodierte Daten
// NEBENEFFEKTE: Dateisystem-Lesezugriff
// ABHAENGIGKEITEN: x448/float16, d4l3k/go-bfloat16 (Dtype-Dekodierung)
// HINWEISE: Unterstuetzt F32/F16/BF16; alle Werte werden zu float32 erweitert

package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// ============================================================================
// Fehler-Definitionen
// ============================================================================

var (
	ErrInvalidHeader  = errors.New("safetensors: invalid header")
	ErrTensorNotFound = errors.New("safetensors: tensor not found")
	ErrUnknownDType   = errors.New("safetensors: unsupported dtype")
)

// maxHeaderSize begrenzt die Header-Laenge gegen korrupte Dateien.
const maxHeaderSize = 100 << 20

// ============================================================================
// Datei-Layout
// ============================================================================

// entry beschreibt einen Tensor im JSON-Header.
// data_offsets sind relativ zum Beginn der Datensektion.
type entry struct {
	DType   string  `json:"dtype"`
	Shape   []int   `json:"shape"`
	Offsets [2]int64 `json:"data_offsets"`
}

// Tensor ist ein vollstaendig gelesener und zu float32 dekodierter Tensor.
type Tensor struct {
	Name  string
	DType string
	Shape []int
	Data  []float32
}

// Elems gibt die Element-Anzahl laut Shape zurueck.
func (t *Tensor) Elems() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// File ist eine geoeffnete Safetensors-Datei.
type File struct {
	f       *os.File
	entries map[string]entry
	dataOff int64
}

// ============================================================================
// Open / Close
// ============================================================================

// Open liest den Header einer Safetensors-Datei ein.
// Layout: 8 Byte Header-Laenge (little-endian), JSON-Header, Rohdaten.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var headerLen uint64
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if headerLen == 0 || headerLen > maxHeaderSize {
		f.Close()
		return nil, fmt.Errorf("%w: header length %d", ErrInvalidHeader, headerLen)
	}

	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(f, raw); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw, &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	entries := make(map[string]entry, len(header))
	for name, msg := range header {
		// "__metadata__" ist ein optionaler String-Map Eintrag, kein Tensor
		if name == "__metadata__" {
			continue
		}
		var e entry
		if err := json.Unmarshal(msg, &e); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: tensor %q: %v", ErrInvalidHeader, name, err)
		}
		entries[name] = e
	}

	return &File{
		f:       f,
		entries: entries,
		dataOff: int64(8 + headerLen),
	}, nil
}

// Close schliesst die unterliegende Datei.
func (st *File) Close() error {
	return st.f.Close()
}

// ============================================================================
// Zugriff
// ============================================================================

// Keys gibt alle Tensor-Namen sortiert zurueck.
func (st *File) Keys() []string {
	keys := make([]string, 0, len(st.entries))
	for name := range st.entries {
		keys = append(keys, name)
	}
	slices.Sort(keys)
	return keys
}

// Has prueft ob ein Tensor unter dem Namen existiert.
func (st *File) Has(name string) bool {
	_, ok := st.entries[name]
	return ok
}

// Tensor liest einen Tensor vollstaendig und dekodiert ihn zu float32.
func (st *File) Tensor(name string) (*Tensor, error) {
	e, ok := st.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
	}

	size := e.Offsets[1] - e.Offsets[0]
	buf := make([]byte, size)
	if _, err := st.f.ReadAt(buf, st.dataOff+e.Offsets[0]); err != nil {
		return nil, fmt.Errorf("safetensors: read %q: %w", name, err)
	}

	data, err := decode(e.DType, buf)
	if err != nil {
		return nil, fmt.Errorf("%w (tensor %q)", err, name)
	}

	return &Tensor{
		Name:  name,
		DType: e.DType,
		Shape: slices.Clone(e.Shape),
		Data:  data,
	}, nil
}

// ============================================================================
// Dtype-Dekodierung
// ============================================================================

// decode erweitert Rohbytes des gegebenen Dtypes zu float32.
func decode(dtype string, buf []byte) ([]float32, error) {
	switch dtype {
	case "F32":
		out := make([]float32, len(buf)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return out, nil

	case "F16":
		out := make([]float32, len(buf)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[i*2:])).Float32()
		}
		return out, nil

	case "BF16":
		return bfloat16.DecodeFloat32(buf), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDType, dtype)
	}
}
