// MODUL: torch_test
// ZWECK: Tests fuer die PyTorch-Checkpoint Konvertierung
// INPUT: Direkt konstruierte gopickle Tensor-Strukturen
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, nlpodyssey/gopickle
// HINWEISE: Pickle-Binaerdateien lassen sich in Go nicht erzeugen, daher
// wird die Konvertierungsschicht gegen konstruierte Storages getestet

package torch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nlpodyssey/gopickle/pytorch"
)

func TestConvertFloatStorage(t *testing.T) {
	pt := &pytorch.Tensor{
		Source: &pytorch.FloatStorage{Data: []float32{1, 2, 3, 4, 5, 6}},
		Size:   []int{2, 3},
	}

	got, err := Convert("model.mm_projector.0.weight", pt)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got.Elems() != 6 || len(got.Shape) != 2 || got.Shape[0] != 2 || got.Shape[1] != 3 {
		t.Errorf("Shape = %v, erwartet [2 3]", got.Shape)
	}
	if got.Data[0] != 1 || got.Data[5] != 6 {
		t.Errorf("Data = %v", got.Data)
	}
}

func TestConvertStorageOffset(t *testing.T) {
	// Mehrere Tensoren teilen sich ein Storage: Offset muss greifen
	pt := &pytorch.Tensor{
		Source:        &pytorch.FloatStorage{Data: []float32{9, 9, 1, 2, 3, 4}},
		StorageOffset: 2,
		Size:          []int{4},
	}

	got, err := Convert("w", pt)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := []float32{1, 2, 3, 4}
	for i, v := range want {
		if got.Data[i] != v {
			t.Errorf("Data[%d] = %f, erwartet %f", i, got.Data[i], v)
		}
	}
}

func TestConvertDoubleStorage(t *testing.T) {
	pt := &pytorch.Tensor{
		Source: &pytorch.DoubleStorage{Data: []float64{0.5, -0.25}},
		Size:   []int{2},
	}

	got, err := Convert("b", pt)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got.Data[0] != 0.5 || got.Data[1] != -0.25 {
		t.Errorf("Data = %v", got.Data)
	}
}

func TestConvertUnknownStorage(t *testing.T) {
	pt := &pytorch.Tensor{
		Source: &pytorch.ByteStorage{Data: []byte{1}},
		Size:   []int{1},
	}

	if _, err := Convert("x", pt); !errors.Is(err, ErrUnknownStorage) {
		t.Errorf("err = %v, erwartet ErrUnknownStorage", err)
	}
}

func TestLoadStateDictInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	if err := os.WriteFile(path, []byte("kein pickle"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadStateDict(path); err == nil {
		t.Error("LoadStateDict sollte bei korrupter Datei fehlschlagen")
	}
}
