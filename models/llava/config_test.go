// MODUL: llava/config_test
// ZWECK: Tests fuer Konfigurations-Parsing und Strategie-Wahl
// INPUT: Temporaere config.json Dateien
// OUTPUT: Testresultate
// NEBENEFFEKTE: Temporaere Dateien (via t.TempDir)
// ABHAENGIGKEITEN: testing
// HINWEISE: keine

package llava

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeConfig legt eine config.json in ein frisches Verzeichnis.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestParseConfigPackaged(t *testing.T) {
	dir := writeConfig(t, `{
		"text_config": {"hidden_size": 4096},
		"vision_feature_layer": -1,
		"vision_feature_select_strategy": "full",
		"vision_config": {"hidden_size": 1152, "image_size": 384, "patch_size": 16, "num_hidden_layers": 27}
	}`)

	cfg, err := ParseConfig(dir)
	if err != nil {
		t.Fatalf("ParseConfig Fehler: %v", err)
	}
	if cfg.Strategy != StrategyPackaged {
		t.Errorf("Strategy = %q, erwartet packaged", cfg.Strategy)
	}
	if cfg.SelectLayer != -1 {
		t.Errorf("SelectLayer = %d, erwartet -1", cfg.SelectLayer)
	}
	if cfg.SelectFeature != "full" {
		t.Errorf("SelectFeature = %q, erwartet full", cfg.SelectFeature)
	}
	if cfg.Tower.HiddenSize != 1152 || cfg.Tower.NumLayers != 27 {
		t.Errorf("Tower = %+v, erwartet vision_config Werte", cfg.Tower)
	}
}

func TestParseConfigPackagedDefaults(t *testing.T) {
	dir := writeConfig(t, `{"text_config": {}}`)

	cfg, err := ParseConfig(dir)
	if err != nil {
		t.Fatalf("ParseConfig Fehler: %v", err)
	}
	if cfg.SelectLayer != -2 {
		t.Errorf("SelectLayer = %d, erwartet Default -2", cfg.SelectLayer)
	}
	if cfg.SelectFeature != "default" {
		t.Errorf("SelectFeature = %q, erwartet Default 'default'", cfg.SelectFeature)
	}
	if cfg.Tower.HiddenSize != 1024 {
		t.Errorf("Tower.HiddenSize = %d, erwartet CLIP-Default 1024", cfg.Tower.HiddenSize)
	}
}

func TestParseConfigLooseDefaults(t *testing.T) {
	dir := writeConfig(t, `{"model_type": "llava"}`)

	cfg, err := ParseConfig(dir)
	if err != nil {
		t.Fatalf("ParseConfig Fehler: %v", err)
	}
	if cfg.Strategy != StrategyLoose {
		t.Errorf("Strategy = %q, erwartet loose", cfg.Strategy)
	}
	if cfg.SelectLayer != -2 {
		t.Errorf("SelectLayer = %d, erwartet -2", cfg.SelectLayer)
	}
	if cfg.SelectFeature != "patch" {
		t.Errorf("SelectFeature = %q, erwartet patch", cfg.SelectFeature)
	}
	if cfg.TowerName != DefaultTowerName {
		t.Errorf("TowerName = %q, erwartet %q", cfg.TowerName, DefaultTowerName)
	}
}

func TestParseConfigLooseTowerVariants(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"string", `{"mm_vision_tower": "openai/clip-vit-base-patch32"}`, "openai/clip-vit-base-patch32"},
		{"liste nimmt erstes", `{"mm_vision_tower": ["a/b", "c/d"]}`, "a/b"},
		{"leere liste faellt auf default", `{"mm_vision_tower": []}`, DefaultTowerName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(writeConfig(t, tt.json))
			if err != nil {
				t.Fatalf("ParseConfig Fehler: %v", err)
			}
			if cfg.TowerName != tt.want {
				t.Errorf("TowerName = %q, erwartet %q", cfg.TowerName, tt.want)
			}
		})
	}
}

func TestParseConfigMissing(t *testing.T) {
	_, err := ParseConfig(t.TempDir())
	if !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("err = %v, erwartet ErrConfigMissing", err)
	}
}

func TestResolveTowerDir(t *testing.T) {
	cache := "/cache"

	if got := resolveTowerDir("/w", "./vit", cache); got != "/w/vit" {
		t.Errorf("relative Referenz = %q, erwartet /w/vit", got)
	}
	if got := resolveTowerDir("/w", "/abs/vit", cache); got != "/abs/vit" {
		t.Errorf("absoluter Pfad = %q, erwartet /abs/vit", got)
	}
	if got := resolveTowerDir("/w", "openai/clip-vit-large-patch14-336", cache); got != "/cache/openai--clip-vit-large-patch14-336" {
		t.Errorf("benanntes Modell = %q, erwartet Cache-Pfad", got)
	}
}
