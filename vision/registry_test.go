// MODUL: registry_test
// ZWECK: Tests fuer die Tower-Registry
// INPUT: Fake-Factories
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine (eigene Registry-Instanzen)
// ABHAENGIGKEITEN: testing
// HINWEISE: DefaultRegistry wird nicht veraendert

package vision

import (
	"errors"
	"testing"

	"github.com/pdevine/tensor"
)

// fakeTower implementiert das Tower-Interface fuer Tests.
type fakeTower struct {
	info TowerInfo
}

func (f *fakeTower) ForwardHiddenStates(pixels *tensor.Dense) ([]*tensor.Dense, error) {
	return nil, nil
}
func (f *fakeTower) ToDevice(device string) error { return nil }
func (f *fakeTower) Info() TowerInfo              { return f.info }
func (f *fakeTower) Close() error                 { return nil }

func fakeFactory(modelPath string, cfg TowerConfig, opts LoadOptions) (Tower, error) {
	return &fakeTower{info: TowerInfo{Name: modelPath, Backend: "fake"}}, nil
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	reg := NewRegistry()
	reg.Register("fake", fakeFactory)

	if !reg.Has("fake") {
		t.Fatal("Registry sollte 'fake' kennen")
	}

	tower, err := reg.Create("fake", "/models/test", DefaultTowerConfig(), DefaultLoadOptions())
	if err != nil {
		t.Fatalf("Create Fehler: %v", err)
	}
	if tower.Info().Backend != "fake" {
		t.Errorf("Backend = %q, erwartet fake", tower.Info().Backend)
	}
}

func TestRegistryUnknownTower(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Create("nope", "/models/x", DefaultTowerConfig(), DefaultLoadOptions())
	if !errors.Is(err, ErrTowerNotRegistered) {
		t.Fatalf("err = %v, erwartet ErrTowerNotRegistered", err)
	}

	var regErr *RegistryError
	if !errors.As(err, &regErr) {
		t.Fatal("err sollte als *RegistryError auspackbar sein")
	}
	if regErr.Name != "nope" || regErr.Op != "create" {
		t.Errorf("RegistryError = %+v, erwartet Op=create Name=nope", regErr)
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register("fake", fakeFactory)
	reg.Unregister("fake")

	if reg.Has("fake") {
		t.Error("Unregister sollte den Eintrag entfernen")
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", fakeFactory)
	reg.Register("a", fakeFactory)

	names := reg.List()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("List = %v, erwartet [a b] sortiert", names)
	}
}

func TestTowerInfoSequenceLen(t *testing.T) {
	info := TowerInfo{ImageSize: 336, PatchSize: 14}
	// (336/14)^2 + 1 = 577
	if got := info.SequenceLen(); got != 577 {
		t.Errorf("SequenceLen = %d, erwartet 577", got)
	}
}
