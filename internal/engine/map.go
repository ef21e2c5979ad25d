package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
)

// Kind is the role a layer plays for the interaction controller.
type Kind string

const (
	KindRegion       Kind = "region"
	KindMunicipality Kind = "municipality"
	KindOverlay      Kind = "overlay"
)

// Source names a vector layer and where its GeoJSON lives.
type Source struct {
	Name string
	Kind Kind
	URL  string
}

// Config configures a Map.
type Config struct {
	Center  orb.Point
	Zoom    float64
	Sources []Source
	Loader  *Loader
	Logger  *slog.Logger
	View    []ViewOption

	// OnLoad, if set, is called after every source load attempt with the
	// feature count or the error.
	OnLoad func(layer string, features int, err error)
}

// Map owns the collections, view and user marker for one rendering surface.
// It is not shared: every page session creates and closes its own Map.
type Map struct {
	view   *View
	user   *Marker
	loader *Loader
	logger *slog.Logger
	onLoad func(string, int, error)

	sources []Source
	layers  map[string]*Collection
	region  *Collection
	munic   *Collection

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// New creates a Map with empty collections. Data is fetched by Load.
func New(cfg Config) (*Map, error) {
	if cfg.Loader == nil {
		cfg.Loader = NewLoader("")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Map{
		view:    NewView(cfg.Center, cfg.Zoom, cfg.View...),
		user:    NewMarker(Style{Fill: "blue", Stroke: "white", StrokeWidth: 2, Radius: 8}),
		loader:  cfg.Loader,
		logger:  cfg.Logger,
		onLoad:  cfg.OnLoad,
		sources: cfg.Sources,
		layers:  make(map[string]*Collection, len(cfg.Sources)),
	}

	for _, src := range cfg.Sources {
		if _, dup := m.layers[src.Name]; dup {
			return nil, fmt.Errorf("duplicate layer %q", src.Name)
		}
		c := NewCollection(src.Name)
		m.layers[src.Name] = c

		switch src.Kind {
		case KindRegion:
			if m.region != nil {
				return nil, fmt.Errorf("layer %q: only one region layer allowed", src.Name)
			}
			m.region = c
		case KindMunicipality:
			if m.munic != nil {
				return nil, fmt.Errorf("layer %q: only one municipality layer allowed", src.Name)
			}
			m.munic = c
		case KindOverlay:
		default:
			return nil, fmt.Errorf("layer %q: unknown kind %q", src.Name, src.Kind)
		}
	}

	// Controllers expect both collections; missing ones stay empty.
	if m.region == nil {
		m.region = NewCollection(string(KindRegion))
	}
	if m.munic == nil {
		m.munic = NewCollection(string(KindMunicipality))
	}
	return m, nil
}

// View returns the map view.
func (m *Map) View() *View { return m.view }

// User returns the user position marker.
func (m *Map) User() *Marker { return m.user }

// Regions returns the region collection.
func (m *Map) Regions() *Collection { return m.region }

// Municipalities returns the municipality collection.
func (m *Map) Municipalities() *Collection { return m.munic }

// Layer returns the collection registered under name.
func (m *Map) Layer(name string) (*Collection, bool) {
	c, ok := m.layers[name]
	return c, ok
}

// Sources returns the configured layer sources.
func (m *Map) Sources() []Source {
	out := make([]Source, len(m.sources))
	copy(out, m.sources)
	return out
}

// Load fetches every source in the background. Each collection is replaced,
// and its listeners notified, as soon as its document arrives. Failures are
// logged and leave the collection empty.
func (m *Map) Load(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	prev := m.cancel
	m.cancel = func() {
		if prev != nil {
			prev()
		}
		cancel()
	}

	for _, src := range m.sources {
		m.wg.Add(1)
		go func(src Source) {
			defer m.wg.Done()
			if err := m.loadSource(ctx, src); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("layer_load_error", "layer", src.Name, "url", src.URL, "err", err)
			}
		}(src)
	}
}

// LoadSync fetches every source in turn and joins the errors.
func (m *Map) LoadSync(ctx context.Context) error {
	var errs []error
	for _, src := range m.sources {
		if err := m.loadSource(ctx, src); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until background loads started by Load have finished.
func (m *Map) Wait() {
	m.wg.Wait()
}

// Close cancels pending loads and waits for them to stop.
func (m *Map) Close() {
	m.mu.Lock()
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Map) loadSource(ctx context.Context, src Source) error {
	fc, err := m.loader.Fetch(ctx, src.URL)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if m.onLoad != nil && !errors.Is(err, context.Canceled) {
			m.onLoad(src.Name, 0, err)
		}
		return err
	}

	m.layers[src.Name].Replace(fc)
	if m.onLoad != nil {
		m.onLoad(src.Name, len(fc.Features), nil)
	}
	m.logger.Debug("layer_loaded", "layer", src.Name, "features", len(fc.Features))
	return nil
}
