// MODUL: llava/encode_test
// ZWECK: Tests fuer Encode: Items, Bereiche, Sentinels, Geraete-Wechsel
// INPUT: Fake-Store mit PNG-Blobs, Fake-Tower
// OUTPUT: Testresultate
// NEBENEFFEKTE: Ersetzt den CUDA-Detektor fuer die Testdauer
// ABHAENGIGKEITEN: testing
// HINWEISE: keine

package llava

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/pdevine/tensor"

	"github.com/apinge/lightllm/embedcache"
	"github.com/apinge/lightllm/multimodal"
	"github.com/apinge/lightllm/vision"
	"github.com/apinge/lightllm/vision/backend"
)

func TestEncodeEmptyInput(t *testing.T) {
	ft := &fakeTower{layers: 2, seq: 3, hidden: 2}
	m := testModel(t, ft, &fakeStore{}, &ModelConfig{SelectLayer: -1, SelectFeature: "patch"}, 1, 1)

	batch, err := m.Encode(nil)
	if err != nil {
		t.Fatalf("Encode(nil) Fehler: %v", err)
	}
	if batch != nil {
		t.Fatal("Encode(nil) sollte nil Batch liefern")
	}

	batch, err = m.Encode([]any{})
	if err != nil || batch != nil {
		t.Fatalf("Encode([]) = (%v, %v), erwartet (nil, nil)", batch, err)
	}
}

func TestEncodeUnsupportedItem(t *testing.T) {
	ft := &fakeTower{layers: 2, seq: 3, hidden: 2}
	m := testModel(t, ft, &fakeStore{}, &ModelConfig{SelectLayer: -1, SelectFeature: "patch"}, 1, 1)

	_, err := m.Encode([]any{"kein item"})
	if !errors.Is(err, ErrUnsupportedItem) {
		t.Fatalf("err = %v, erwartet ErrUnsupportedItem", err)
	}
	// Fehlermeldung muss Typ und Wert nennen
	if !strings.Contains(err.Error(), "string") || !strings.Contains(err.Error(), "kein item") {
		t.Errorf("Fehlermeldung %q nennt Typ oder Wert nicht", err.Error())
	}
}

func TestEncodeSingleImage(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{blobs: map[uuid.UUID][]byte{id: pngBytes(t, 32, 24)}}

	ft := &fakeTower{layers: 2, seq: 3, hidden: 2}
	m := testModel(t, ft, store, &ModelConfig{SelectLayer: -1, SelectFeature: "patch"}, 1, 1)

	item := &multimodal.ImageItem{UUID: id}
	batch, err := m.Encode([]any{item})
	if err != nil {
		t.Fatalf("Encode Fehler: %v", err)
	}

	if len(batch.UUIDs) != 1 || batch.UUIDs[0] != id {
		t.Errorf("UUIDs = %v, erwartet [%s]", batch.UUIDs, id)
	}
	if len(batch.ValidRanges) != 1 || batch.ValidRanges[0] != [2]int{0, 1} {
		t.Errorf("ValidRanges = %v, erwartet [[0 1]]", batch.ValidRanges)
	}

	// (tiles, tokens, out) mit tokens = seq-1 nach CLS-Drop
	shape := batch.Embeddings.Shape()
	if shape[0] != 1 || shape[1] != 2 || shape[2] != 2 {
		t.Errorf("Embeddings Shape = %v, erwartet [1 2 2]", shape)
	}

	// Metadaten-Nachtrag
	if item.Width != 32 || item.Height != 24 {
		t.Errorf("Item-Abmessungen = %dx%d, erwartet 32x24", item.Width, item.Height)
	}
	if item.TokenNum != 2 {
		t.Errorf("TokenNum = %d, erwartet 2 (1 Kachel x 2 Tokens)", item.TokenNum)
	}
}

func TestEncodeRangesAcrossItems(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	store := &fakeStore{blobs: map[uuid.UUID][]byte{
		id1: pngBytes(t, 40, 20),
		id2: pngBytes(t, 20, 40),
	}}

	// 2x1 Kachel-Raster: jedes Bild liefert 2 Kacheln
	ft := &fakeTower{layers: 2, seq: 3, hidden: 2}
	m := testModel(t, ft, store, &ModelConfig{SelectLayer: -1, SelectFeature: "patch"}, 2, 1)

	batch, err := m.Encode([]any{
		&multimodal.ImageItem{UUID: id1},
		&multimodal.ImageItem{UUID: id2},
	})
	if err != nil {
		t.Fatalf("Encode Fehler: %v", err)
	}

	want := [][2]int{{0, 2}, {2, 4}}
	if diff := cmp.Diff(want, batch.ValidRanges); diff != "" {
		t.Errorf("ValidRanges (-want +got):\n%s", diff)
	}
	if shape := batch.Embeddings.Shape(); shape[0] != 4 {
		t.Errorf("Batch-Dimension = %d, erwartet 4 Kacheln gesamt", shape[0])
	}
}

func TestEncodeMixedTileCounts(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	store := &fakeStore{blobs: map[uuid.UUID][]byte{
		id1: pngBytes(t, 16, 16),
		id2: pngBytes(t, 16, 16),
	}}

	ft := &fakeTower{layers: 2, seq: 3, hidden: 2}
	m := testModel(t, ft, store, &ModelConfig{SelectLayer: -1, SelectFeature: "patch"}, 1, 1)
	// Preprocessor der pro Bild unterschiedlich viele Kacheln liefert
	m.processor = &variableTilePreprocessor{tiles: []int{1, 2}}

	batch, err := m.Encode([]any{
		&multimodal.ImageItem{UUID: id1},
		&multimodal.ImageItem{UUID: id2},
	})
	if err != nil {
		t.Fatalf("Encode Fehler: %v", err)
	}

	if diff := cmp.Diff([][2]int{{0, 1}, {1, 3}}, batch.ValidRanges); diff != "" {
		t.Errorf("ValidRanges (-want +got):\n%s", diff)
	}
	if batch.UUIDs[0] != id1 || batch.UUIDs[1] != id2 {
		t.Errorf("UUIDs = %v, erwartet Eingabe-Reihenfolge", batch.UUIDs)
	}
	if shape := batch.Embeddings.Shape(); shape[0] != 3 {
		t.Errorf("Batch-Dimension = %d, erwartet 3 Kacheln gesamt", shape[0])
	}
}

// variableTilePreprocessor liefert pro Aufruf die naechste Kachel-Anzahl.
type variableTilePreprocessor struct {
	tiles []int
	call  int
}

func (p *variableTilePreprocessor) Preprocess(img *vision.ImageInput) (*tensor.Dense, error) {
	n := p.tiles[p.call%len(p.tiles)]
	p.call++
	return pixelBatch(n), nil
}

func TestEncodeMissingBlob(t *testing.T) {
	ft := &fakeTower{layers: 2, seq: 3, hidden: 2}
	m := testModel(t, ft, &fakeStore{}, &ModelConfig{SelectLayer: -1, SelectFeature: "patch"}, 1, 1)

	_, err := m.Encode([]any{&multimodal.ImageItem{UUID: uuid.New()}})
	if !errors.Is(err, embedcache.ErrBlobNotFound) {
		t.Fatalf("err = %v, erwartet ErrBlobNotFound", err)
	}
}

func TestCudaIdempotent(t *testing.T) {
	backend.RegisterDetector(backend.DeviceCUDA, &alwaysDetector{})
	t.Cleanup(func() {
		backend.RegisterDetector(backend.DeviceCUDA, backend.NewCUDADetector())
	})

	ft := &fakeTower{layers: 2, seq: 3, hidden: 2}
	m := testModel(t, ft, &fakeStore{}, &ModelConfig{SelectLayer: -1, SelectFeature: "patch"}, 1, 1)

	if err := m.Cuda(); err != nil {
		t.Fatalf("Cuda Fehler: %v", err)
	}
	if m.Device() != backend.DeviceCUDA {
		t.Errorf("Device = %q, erwartet cuda", m.Device())
	}
	if err := m.Cuda(); err != nil {
		t.Fatalf("zweiter Cuda-Aufruf Fehler: %v", err)
	}
	if ft.moveCalls != 1 {
		t.Errorf("moveCalls = %d, erwartet 1 (idempotent)", ft.moveCalls)
	}
}

func TestCudaWithoutGPU(t *testing.T) {
	backend.RegisterDetector(backend.DeviceCUDA, &neverDetector{})
	t.Cleanup(func() {
		backend.RegisterDetector(backend.DeviceCUDA, backend.NewCUDADetector())
	})

	ft := &fakeTower{layers: 2, seq: 3, hidden: 2}
	m := testModel(t, ft, &fakeStore{}, &ModelConfig{SelectLayer: -1, SelectFeature: "patch"}, 1, 1)

	if err := m.Cuda(); err == nil {
		t.Fatal("erwartet Fehler ohne verfuegbare GPU")
	}
	if m.Device() != backend.DeviceCPU {
		t.Errorf("Device = %q, erwartet weiterhin cpu", m.Device())
	}
}

// alwaysDetector meldet immer eine GPU.
type alwaysDetector struct{}

func (alwaysDetector) Detect() bool { return true }
func (alwaysDetector) GetDevices() []backend.DeviceInfo {
	return []backend.DeviceInfo{{Device: backend.DeviceCUDA, DeviceName: "CUDA 0"}}
}
func (alwaysDetector) Device() string { return backend.DeviceCUDA }

// neverDetector meldet nie eine GPU.
type neverDetector struct{}

func (neverDetector) Detect() bool                     { return false }
func (neverDetector) GetDevices() []backend.DeviceInfo { return nil }
func (neverDetector) Device() string                   { return backend.DeviceCUDA }
