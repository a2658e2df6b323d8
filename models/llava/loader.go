// MODUL: llava/loader
// ZWECK: Laden eines LLaVA Checkpoints aus einem Gewichts-Verzeichnis
// INPUT: weightDir mit config.json und Checkpoint-Dateien
// OUTPUT: Einsatzbereites VisionModel
// NEBENEFFEKTE: Dateisystem-Lesezugriffe, Tower-Session-Aufbau, Logging
// ABHAENGIGKEITEN: safetensors, torch, vision (Registry, Preprocessor)
// HINWEISE: Gepackte Checkpoints liefern den Tower als exportiertes
// vision_tower.onnx im selben Verzeichnis; lose Checkpoints referenzieren
// ein separates Tower-Verzeichnis mit model.onnx

package llava

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apinge/lightllm/safetensors"
	"github.com/apinge/lightllm/torch"
	"github.com/apinge/lightllm/vision"
)

// Artefakt-Namen der beiden Strategien.
const (
	packagedTowerFile = "vision_tower.onnx"
	looseTowerFile    = "model.onnx"
)

// loadBinStateDict liest ein .bin State-Dict. Als Variable gehalten damit
// Tests die Pickle-Dekodierung ersetzen koennen.
var loadBinStateDict = torch.LoadStateDict

// LoadModel laedt einen LLaVA Checkpoint aus weightDir.
// Die Strategie folgt aus config.json: text_config vorhanden -> gepackt,
// sonst lose. Beide Wege muenden in denselben vier Projector-Keys.
func LoadModel(weightDir string, opts ...Option) (*VisionModel, error) {
	settings := defaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := ParseConfig(weightDir)
	if err != nil {
		return nil, err
	}

	var (
		weights       map[string]*weight
		towerArtifact string
		processorDir  string
	)

	switch cfg.Strategy {
	case StrategyPackaged:
		weights, err = loadPackagedProjector(weightDir)
		towerArtifact = filepath.Join(weightDir, packagedTowerFile)
		processorDir = weightDir
	case StrategyLoose:
		towerDir := resolveTowerDir(weightDir, cfg.TowerName, settings.cacheDir)
		weights, err = loadLooseProjector(weightDir)
		towerArtifact = filepath.Join(towerDir, looseTowerFile)
		processorDir = towerDir
	default:
		return nil, fmt.Errorf("llava: unknown strategy %q", cfg.Strategy)
	}
	if err != nil {
		return nil, err
	}

	projector, err := newProjector(weights)
	if err != nil {
		return nil, err
	}

	processor, err := vision.NewImageProcessor(processorDir)
	if err != nil {
		return nil, err
	}

	loadOpts := vision.DefaultLoadOptions()
	loadOpts.Apply(
		vision.WithDevice(settings.device),
		vision.WithThreads(settings.threads),
		vision.WithGPUDeviceID(settings.gpuID),
	)

	tower, err := vision.CreateTower(settings.backend, towerArtifact, cfg.Tower, loadOpts)
	if err != nil {
		return nil, fmt.Errorf("llava: create tower: %w", err)
	}

	inDim, hiddenDim, outDim := projector.Dims()
	settings.logger.Info("llava: checkpoint geladen",
		"dir", weightDir,
		"strategy", string(cfg.Strategy),
		"select_layer", cfg.SelectLayer,
		"select_feature", cfg.SelectFeature,
		"backend", settings.backend,
		"projector_dims", fmt.Sprintf("%d->%d->%d", inDim, hiddenDim, outDim),
	)

	return &VisionModel{
		cfg:       cfg,
		tower:     tower,
		projector: projector,
		processor: processor,
		store:     settings.store,
		device:    settings.device,
		logger:    settings.logger,
	}, nil
}

// ============================================================================
// Gepackte Strategie: *.safetensors mit Umbenennung
// ============================================================================

// loadPackagedProjector scannt alle *.safetensors Dateien nach den
// multi_modal_projector Keys und benennt sie auf die kanonische Form um.
func loadPackagedProjector(weightDir string) (map[string]*weight, error) {
	paths, err := sortedGlob(weightDir, "*.safetensors")
	if err != nil {
		return nil, err
	}

	weights := make(map[string]*weight)
	for _, path := range paths {
		if err := scanSafetensors(path, weights); err != nil {
			return nil, err
		}
	}
	return weights, nil
}

// scanSafetensors uebernimmt alle Projector-Tensoren einer Datei.
func scanSafetensors(path string, weights map[string]*weight) error {
	file, err := safetensors.Open(path)
	if err != nil {
		return fmt.Errorf("llava: open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	for _, key := range file.Keys() {
		canonical, ok := renamePackagedKey(key)
		if !ok {
			continue
		}
		t, err := file.Tensor(key)
		if err != nil {
			return fmt.Errorf("llava: read %s: %w", key, err)
		}
		weights[canonical] = &weight{shape: t.Shape, data: t.Data}
	}
	return nil
}

// renamePackagedKey bildet die HuggingFace Projector-Namen auf die
// kanonischen LLaVA-Namen ab:
//
//	multi_modal_projector.linear_1.* -> model.mm_projector.0.*
//	multi_modal_projector.linear_2.* -> model.mm_projector.2.*
func renamePackagedKey(key string) (string, bool) {
	const (
		prefix1 = "multi_modal_projector.linear_1."
		prefix2 = "multi_modal_projector.linear_2."
	)
	switch {
	case strings.HasPrefix(key, prefix1):
		return "model.mm_projector.0." + key[len(prefix1):], true
	case strings.HasPrefix(key, prefix2):
		return "model.mm_projector.2." + key[len(prefix2):], true
	}
	return "", false
}

// ============================================================================
// Lose Strategie: *.bin mit woertlichen Keys
// ============================================================================

// loadLooseProjector scannt alle *.bin Dateien nach model.mm_projector
// Keys; die Namen werden unveraendert uebernommen.
func loadLooseProjector(weightDir string) (map[string]*weight, error) {
	paths, err := sortedGlob(weightDir, "*.bin")
	if err != nil {
		return nil, err
	}

	weights := make(map[string]*weight)
	for _, path := range paths {
		dict, err := loadBinStateDict(path)
		if err != nil {
			return nil, fmt.Errorf("llava: load %s: %w", filepath.Base(path), err)
		}
		for name, t := range dict {
			if !strings.Contains(name, "model.mm_projector") {
				continue
			}
			weights[name] = &weight{shape: t.Shape, data: t.Data}
		}
	}
	return weights, nil
}

// ============================================================================
// Tower-Aufloesung
// ============================================================================

// resolveTowerDir bestimmt das lokale Verzeichnis des referenzierten
// Towers. Relative "./"-Referenzen zeigen in das Gewichts-Verzeichnis;
// benannte Modelle liegen unter dem Cache-Verzeichnis.
func resolveTowerDir(weightDir, name, cacheDir string) string {
	if strings.HasPrefix(name, "./") {
		return filepath.Join(weightDir, name)
	}
	if filepath.IsAbs(name) {
		return name
	}
	if info, err := os.Stat(name); err == nil && info.IsDir() {
		return name
	}
	return filepath.Join(cacheDir, sanitizeTowerName(name))
}

// sanitizeTowerName macht einen Modell-Namen Verzeichnis-tauglich.
func sanitizeTowerName(name string) string {
	return strings.ReplaceAll(name, "/", "--")
}

// sortedGlob listet Treffer deterministisch sortiert.
func sortedGlob(dir, pattern string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("llava: scan %s: %w", pattern, err)
	}
	sort.Strings(paths)
	return paths, nil
}
