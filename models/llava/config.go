// MODUL: llava/config
// ZWECK: Parsen der Checkpoint-Konfiguration und Strategie-Wahl
// INPUT: config.json aus dem Gewichts-Verzeichnis
// OUTPUT: ModelConfig mit Strategie, Layer-/Feature-Auswahl, Tower-Daten
// NEBENEFFEKTE: Dateisystem-Lesezugriff
// ABHAENGIGKEITEN: encoding/json, vision (TowerConfig)
// HINWEISE: Ein text_config Feld markiert gepackte
// Conditional-Generation-Checkpoints; sein Fehlen die lose Variante mit
// separatem Vision-Tower

package llava

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apinge/lightllm/vision"
)

// Strategy benennt das Checkpoint-Layout.
type Strategy string

const (
	// StrategyPackaged: Tower, Projector und LM in einem Checkpoint
	// (HuggingFace LlavaForConditionalGeneration Layout).
	StrategyPackaged Strategy = "packaged"

	// StrategyLoose: Projector im Checkpoint, Tower separat referenziert
	// (klassisches LLaVA Layout).
	StrategyLoose Strategy = "loose"
)

// DefaultTowerName ist der Standard-Tower der LLaVA-Familie.
const DefaultTowerName = "openai/clip-vit-large-patch14-336"

// configFile ist der Dateiname der Checkpoint-Konfiguration.
const configFile = "config.json"

// ModelConfig ist die ausgewertete Checkpoint-Konfiguration.
type ModelConfig struct {
	Strategy      Strategy           // Checkpoint-Layout
	SelectLayer   int                // Hidden-State Index, negativ = vom Ende
	SelectFeature string             // "patch"/"default" droppen das CLS-Token
	TowerName     string             // Tower-Referenz (nur loose)
	Tower         vision.TowerConfig // Architektur-Parameter des Towers
}

// ParseConfig liest config.json und waehlt die Lade-Strategie.
func ParseConfig(weightDir string) (*ModelConfig, error) {
	data, err := os.ReadFile(filepath.Join(weightDir, configFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigMissing, weightDir)
	}
	if err != nil {
		return nil, fmt.Errorf("llava: read %s: %w", configFile, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("llava: parse %s: %w", configFile, err)
	}

	if _, ok := raw["text_config"]; ok {
		return parsePackaged(raw)
	}
	return parseLoose(raw)
}

// parsePackaged wertet das Conditional-Generation Layout aus.
func parsePackaged(raw map[string]json.RawMessage) (*ModelConfig, error) {
	cfg := &ModelConfig{
		Strategy:      StrategyPackaged,
		SelectLayer:   intField(raw, "vision_feature_layer", -2),
		SelectFeature: stringField(raw, "vision_feature_select_strategy", "default"),
		Tower:         vision.DefaultTowerConfig(),
	}

	if msg, ok := raw["vision_config"]; ok {
		if err := json.Unmarshal(msg, &cfg.Tower); err != nil {
			return nil, fmt.Errorf("llava: parse vision_config: %w", err)
		}
	}

	return cfg, nil
}

// parseLoose wertet das klassische LLaVA Layout aus.
func parseLoose(raw map[string]json.RawMessage) (*ModelConfig, error) {
	cfg := &ModelConfig{
		Strategy:      StrategyLoose,
		SelectLayer:   intField(raw, "mm_vision_select_layer", -2),
		SelectFeature: stringField(raw, "mm_vision_select_feature", "patch"),
		TowerName:     DefaultTowerName,
		Tower:         vision.DefaultTowerConfig(),
	}

	if msg, ok := raw["mm_vision_tower"]; ok {
		name, err := parseTowerName(msg)
		if err != nil {
			return nil, err
		}
		if name != "" {
			cfg.TowerName = name
		}
	}

	return cfg, nil
}

// parseTowerName akzeptiert einen String oder eine Liste (erstes Element).
func parseTowerName(msg json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(msg, &name); err == nil {
		return name, nil
	}

	var names []string
	if err := json.Unmarshal(msg, &names); err == nil {
		if len(names) == 0 {
			return "", nil
		}
		return names[0], nil
	}

	return "", fmt.Errorf("llava: mm_vision_tower has unexpected shape: %s", msg)
}

// intField liest ein Int-Feld mit Default.
func intField(raw map[string]json.RawMessage, key string, def int) int {
	msg, ok := raw[key]
	if !ok {
		return def
	}
	var v int
	if err := json.Unmarshal(msg, &v); err != nil {
		return def
	}
	return v
}

// stringField liest ein String-Feld mit Default.
func stringField(raw map[string]json.RawMessage, key, def string) string {
	msg, ok := raw[key]
	if !ok {
		return def
	}
	var v string
	if err := json.Unmarshal(msg, &v); err != nil || v == "" {
		return def
	}
	return v
}
