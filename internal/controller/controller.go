// Package controller binds map events to UI state: hover highlighting of
// regions, click selection of municipalities, the sorted municipality roster
// and following the user's live position.
//
// Event handlers are serialized. Each one runs to completion, including the
// notifications it triggers, before the next starts. Listeners may read
// controller state but must not call event handlers from inside a
// notification.
package controller

import (
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/joeblew999/plat-kart/internal/engine"
	"github.com/joeblew999/plat-kart/internal/geoloc"
)

// Property names used by the Norwegian administrative GeoJSON.
const (
	RegionNameKey       = "fylkesnavn"
	MunicipalityNameKey = "kommunenavn"
)

// DefaultPlaceholder is the header text when no municipality is selected.
const DefaultPlaceholder = "Velg kommune"

// DefaultLocale orders the roster: Norwegian Bokmål puts Æ, Ø and Å after Z.
var DefaultLocale = language.MustParse("nb")

// FeatureSource is a feature collection with point hit queries.
type FeatureSource interface {
	At(p orb.Point) []*engine.Feature
	Features() []*engine.Feature
	OnChange(fn func()) (cancel func())
}

// Viewport can be recentered with an animation.
type Viewport interface {
	AnimateCenter(p orb.Point)
}

// Marker is a point geometry that can be moved.
type Marker interface {
	SetCenter(p orb.Point)
}

// Deps are the collaborators a Controller works on.
type Deps struct {
	Regions        FeatureSource
	Municipalities FeatureSource
	View           Viewport
	Marker         Marker
	Locator        geoloc.Provider
}

// Options tune naming and presentation.
type Options struct {
	RegionNameKey       string
	MunicipalityNameKey string
	Placeholder         string
	Locale              language.Tag
	Highlight           func(label string) *engine.Style
	Logger              *slog.Logger
}

// Selection is the selected municipality together with its header text.
// Feature is nil when nothing is selected.
type Selection struct {
	Feature *engine.Feature
	Header  string
}

// Controller is the interaction state of one map.
type Controller struct {
	deps Deps
	opts Options
	log  *slog.Logger

	// dispatch serializes handlers; mu guards the state below.
	dispatch sync.Mutex
	mu       sync.RWMutex
	closed   bool
	active   Slot[*engine.Feature]
	selected Slot[*engine.Feature]
	user     Slot[geoloc.Position]
	roster   []RosterEntry
	collator *collate.Collator

	onActive    listeners[*engine.Feature]
	onSelection listeners[Selection]
	onRoster    listeners[[]RosterEntry]
	onPosition  listeners[geoloc.Position]

	cancels []func()
}

// New creates a controller, subscribes it to municipality changes and
// position updates and enables tracking. A tracking failure is logged and
// leaves the user position unset.
func New(deps Deps, opts Options) *Controller {
	if opts.RegionNameKey == "" {
		opts.RegionNameKey = RegionNameKey
	}
	if opts.MunicipalityNameKey == "" {
		opts.MunicipalityNameKey = MunicipalityNameKey
	}
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	if opts.Locale == language.Und {
		opts.Locale = DefaultLocale
	}
	if opts.Highlight == nil {
		opts.Highlight = engine.Highlight
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		deps:     deps,
		opts:     opts,
		log:      opts.Logger,
		collator: collate.New(opts.Locale),
		roster:   []RosterEntry{},
	}

	if deps.Municipalities != nil {
		c.cancels = append(c.cancels, deps.Municipalities.OnChange(c.municipalitiesChanged))
	}
	c.startFollowing()

	return c
}

// Close unsubscribes from every source and disables tracking. Handlers
// called after Close are no-ops.
func (c *Controller) Close() {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil

	if c.deps.Locator != nil {
		if err := c.deps.Locator.SetTracking(false); err != nil {
			c.log.Warn("geoloc_stop_error", "err", err)
		}
	}
}

// ActiveRegion returns the hovered region, or nil.
func (c *Controller) ActiveRegion() *engine.Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, _ := c.active.Get()
	return f
}

// SelectedMunicipality returns the clicked municipality, or nil.
func (c *Controller) SelectedMunicipality() *engine.Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, _ := c.selected.Get()
	return f
}

// Header returns the header text for the current selection.
func (c *Controller) Header() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headerLocked()
}

// RegionName returns f's name under the configured region key.
func (c *Controller) RegionName(f *engine.Feature) string {
	if f == nil {
		return ""
	}
	return f.Name(c.opts.RegionNameKey)
}

// MunicipalityName returns f's name under the configured municipality key.
func (c *Controller) MunicipalityName(f *engine.Feature) string {
	if f == nil {
		return ""
	}
	return f.Name(c.opts.MunicipalityNameKey)
}

// FeatureName names a feature of any layer, trying the municipality key
// before the region key.
func (c *Controller) FeatureName(f *engine.Feature) string {
	if name := c.MunicipalityName(f); name != "" {
		return name
	}
	return c.RegionName(f)
}

// Roster returns the sorted municipality list. The slice must not be modified.
func (c *Controller) Roster() []RosterEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roster
}

// UserPosition returns the last position and whether one has arrived.
func (c *Controller) UserPosition() (geoloc.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.Get()
}

// OnActiveRegion registers fn for Active Region changes; nil means none.
func (c *Controller) OnActiveRegion(fn func(*engine.Feature)) (cancel func()) {
	return c.onActive.add(fn)
}

// OnSelection registers fn for Selected Municipality changes.
func (c *Controller) OnSelection(fn func(Selection)) (cancel func()) {
	return c.onSelection.add(fn)
}

// OnRoster registers fn for every roster rebuild.
func (c *Controller) OnRoster(fn func([]RosterEntry)) (cancel func()) {
	return c.onRoster.add(fn)
}

// OnUserPosition registers fn for every position update.
func (c *Controller) OnUserPosition(fn func(geoloc.Position)) (cancel func()) {
	return c.onPosition.add(fn)
}

func (c *Controller) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Controller) headerLocked() string {
	f, ok := c.selected.Get()
	if !ok {
		return c.opts.Placeholder
	}
	return f.Name(c.opts.MunicipalityNameKey) + " "
}
