package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-kart/internal/engine"
)

// ErrNotFound is returned for unknown catalogue entries and sessions.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating an entry whose ID is taken.
var ErrExists = errors.New("already exists")

// DefaultLayers is the catalogue a fresh data directory starts with: county
// and municipality boundaries plus the upper secondary school points.
func DefaultLayers(regionsURL, municipalitiesURL, schoolsURL string) []LayerConfig {
	layers := []LayerConfig{
		{ID: "fylker", Name: "Fylker", Kind: engine.KindRegion, URL: regionsURL, Order: 0, Visible: true},
		{ID: "kommuner", Name: "Kommuner", Kind: engine.KindMunicipality, URL: municipalitiesURL, Order: 1, Visible: true},
	}
	if schoolsURL != "" {
		layers = append(layers, LayerConfig{
			ID: "vgs", Name: "Videregående skoler", Kind: engine.KindOverlay, URL: schoolsURL, Order: 2, Visible: true,
			Style: &engine.Style{Fill: "red", Stroke: "black", StrokeWidth: 2, Radius: 5},
		})
	}
	return layers
}

// LayerService manages the layer catalogue, persisted as layers.yaml.
type LayerService struct {
	dataDir string
	layers  map[string]LayerConfig
	mu      sync.RWMutex
	bus     *EventBus
}

// NewLayerService loads the catalogue from dataDir. When no catalogue exists
// yet it is seeded with defaults and written out.
func NewLayerService(dataDir string, defaults []LayerConfig, bus *EventBus) (*LayerService, error) {
	s := &LayerService{
		dataDir: dataDir,
		layers:  make(map[string]LayerConfig),
		bus:     bus,
	}

	found, err := s.loadFromDisk()
	if err != nil {
		return nil, err
	}
	if found {
		return s, nil
	}

	for _, l := range defaults {
		if err := validateLayer(l); err != nil {
			return nil, err
		}
		s.layers[l.ID] = l
	}
	if err := s.saveToDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

// List returns the catalogue sorted by draw order, then ID.
func (s *LayerService) List() []LayerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]LayerConfig, 0, len(s.layers))
	for _, v := range s.layers {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Sources returns the catalogue as engine sources, in draw order.
func (s *LayerService) Sources() []engine.Source {
	layers := s.List()
	out := make([]engine.Source, len(layers))
	for i, l := range layers {
		out[i] = l.Source()
	}
	return out
}

// Get returns a layer by ID.
func (s *LayerService) Get(id string) (LayerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer, ok := s.layers[id]
	return layer, ok
}

// Create adds a new layer configuration.
func (s *LayerService) Create(layer LayerConfig) (LayerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if layer.ID == "" {
		layer.ID = generateID(layer.Name)
	}
	if _, exists := s.layers[layer.ID]; exists {
		return LayerConfig{}, fmt.Errorf("layer %q: %w", layer.ID, ErrExists)
	}
	if err := validateLayer(layer); err != nil {
		return LayerConfig{}, err
	}
	if err := s.checkRole(layer); err != nil {
		return LayerConfig{}, err
	}

	s.layers[layer.ID] = layer
	if err := s.saveToDisk(); err != nil {
		delete(s.layers, layer.ID)
		return LayerConfig{}, err
	}
	s.publish("created", layer.ID)
	return layer, nil
}

// Update replaces a layer configuration by ID.
func (s *LayerService) Update(id string, layer LayerConfig) (LayerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.layers[id]
	if !exists {
		return LayerConfig{}, fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}

	layer.ID = id
	if err := validateLayer(layer); err != nil {
		return LayerConfig{}, err
	}
	if err := s.checkRole(layer); err != nil {
		return LayerConfig{}, err
	}

	s.layers[id] = layer
	if err := s.saveToDisk(); err != nil {
		s.layers[id] = prev
		return LayerConfig{}, err
	}
	s.publish("updated", id)
	return layer, nil
}

// Delete removes a layer by ID.
func (s *LayerService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.layers[id]
	if !exists {
		return fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}

	delete(s.layers, id)
	if err := s.saveToDisk(); err != nil {
		s.layers[id] = prev
		return err
	}
	s.publish("deleted", id)
	return nil
}

// checkRole rejects a second region or municipality layer.
// Caller holds s.mu.
func (s *LayerService) checkRole(layer LayerConfig) error {
	if layer.Kind == engine.KindOverlay {
		return nil
	}
	for id, l := range s.layers {
		if id != layer.ID && l.Kind == layer.Kind {
			return fmt.Errorf("layer %q: %s role already taken by %q: %w", layer.ID, layer.Kind, id, ErrExists)
		}
	}
	return nil
}

func (s *LayerService) publish(action, id string) {
	if s.bus != nil {
		s.bus.Publish(Event{Resource: "layers", Action: action, ID: id})
	}
}

// configFile returns the path to the layers config file.
func (s *LayerService) configFile() string {
	return filepath.Join(s.dataDir, "layers.yaml")
}

// loadFromDisk reports whether a catalogue file was found.
func (s *LayerService) loadFromDisk() (bool, error) {
	data, err := os.ReadFile(s.configFile())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading layer catalogue: %w", err)
	}

	var layers []LayerConfig
	if err := yaml.Unmarshal(data, &layers); err != nil {
		return false, fmt.Errorf("parsing %s: %w", s.configFile(), err)
	}
	for _, l := range layers {
		if err := validateLayer(l); err != nil {
			return false, fmt.Errorf("parsing %s: %w", s.configFile(), err)
		}
		s.layers[l.ID] = l
	}
	return true, nil
}

// saveToDisk persists the catalogue. Caller holds s.mu.
func (s *LayerService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	layers := make([]LayerConfig, 0, len(s.layers))
	for _, l := range s.layers {
		layers = append(layers, l)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i].ID < layers[j].ID })

	data, err := yaml.Marshal(layers)
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}

func validateLayer(l LayerConfig) error {
	if l.ID == "" {
		return fmt.Errorf("layer %q: empty id", l.Name)
	}
	if l.URL == "" {
		return fmt.Errorf("layer %q: empty url", l.ID)
	}
	switch l.Kind {
	case engine.KindRegion, engine.KindMunicipality, engine.KindOverlay:
	default:
		return fmt.Errorf("layer %q: unknown kind %q", l.ID, l.Kind)
	}
	if err := engine.CheckURL(l.URL); err != nil {
		return fmt.Errorf("layer %q: %w", l.ID, err)
	}
	return nil
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
