// Package vision - Tower Registry fuer dynamische Backend-Registrierung.
//
// MODUL: registry
// ZWECK: Zentrale Registry fuer Tower-Factories mit Thread-sicherer Verwaltung
// INPUT: Backend-Name, TowerFactory-Funktionen, LoadOptions
// OUTPUT: Erstellte Tower-Instanzen
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: sync (stdlib), tower.go (TowerFactory, Tower)
// HINWEISE: Backends registrieren sich typischerweise via init() in ihren
// Packages (z.B. vision/onnx)
package vision

import (
	"errors"
	"sort"
	"sync"
)

// ============================================================================
// Registry Errors
// ============================================================================

// ErrTowerNotRegistered wird zurueckgegeben wenn kein Backend unter dem
// Namen registriert ist.
var ErrTowerNotRegistered = errors.New("vision: tower backend not registered")

// RegistryError repraesentiert einen Registry-spezifischen Fehler.
type RegistryError struct {
	Op   string // Operation (z.B. "create")
	Name string // Backend-Name
	Err  error  // Urspruenglicher Fehler
}

// Error implementiert das error Interface.
func (e *RegistryError) Error() string {
	return "vision: " + e.Op + " tower '" + e.Name + "': " + e.Err.Error()
}

// Unwrap gibt den urspruenglichen Fehler zurueck.
func (e *RegistryError) Unwrap() error {
	return e.Err
}

// ============================================================================
// Registry - Zentrale Tower-Verwaltung
// ============================================================================

// Registry verwaltet registrierte Tower-Factories.
// Thread-sicher durch RWMutex.
type Registry struct {
	towers map[string]TowerFactory
	mu     sync.RWMutex
}

// NewRegistry erstellt eine neue leere Registry.
func NewRegistry() *Registry {
	return &Registry{
		towers: make(map[string]TowerFactory),
	}
}

// Register registriert eine TowerFactory unter dem angegebenen Namen.
// Ueberschreibt existierende Eintraege ohne Warnung.
func (r *Registry) Register(name string, factory TowerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.towers[name] = factory
}

// Unregister entfernt ein Backend aus der Registry.
// Gibt true zurueck wenn das Backend existierte, sonst false.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.towers[name]
	if exists {
		delete(r.towers, name)
	}
	return exists
}

// Get gibt die Factory fuer den angegebenen Namen zurueck.
func (r *Registry) Get(name string) (TowerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.towers[name]
	return factory, exists
}

// Has prueft ob ein Backend unter dem Namen registriert ist.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.towers[name]
	return exists
}

// List gibt alle registrierten Backend-Namen sortiert zurueck.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.towers))
	for name := range r.towers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create erstellt einen Tower mit der registrierten Factory.
// Gibt einen RegistryError mit ErrTowerNotRegistered zurueck wenn der
// Name nicht gefunden wurde.
func (r *Registry) Create(name, modelPath string, cfg TowerConfig, opts LoadOptions) (Tower, error) {
	factory, exists := r.Get(name)
	if !exists {
		return nil, &RegistryError{
			Op:   "create",
			Name: name,
			Err:  ErrTowerNotRegistered,
		}
	}

	return factory(modelPath, cfg, opts)
}

// ============================================================================
// Globale Registry-Instanz
// ============================================================================

// DefaultRegistry ist die globale Registry fuer Tower-Backends.
var DefaultRegistry = NewRegistry()

// RegisterToDefault registriert eine TowerFactory in der DefaultRegistry.
func RegisterToDefault(name string, factory TowerFactory) {
	DefaultRegistry.Register(name, factory)
}

// CreateTower erstellt einen Tower ueber die DefaultRegistry.
func CreateTower(name, modelPath string, cfg TowerConfig, opts LoadOptions) (Tower, error) {
	return DefaultRegistry.Create(name, modelPath, cfg, opts)
}
