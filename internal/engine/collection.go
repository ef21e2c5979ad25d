package engine

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Collection is an ordered set of features with point hit queries and a
// change notification. Query results follow insertion order.
type Collection struct {
	name string

	mu       sync.RWMutex
	features []*Feature

	lmu       sync.Mutex
	listeners map[int]func()
	nextID    int
}

// NewCollection creates an empty collection.
func NewCollection(name string) *Collection {
	return &Collection{name: name, listeners: make(map[int]func())}
}

// Name returns the collection (layer) name.
func (c *Collection) Name() string {
	return c.name
}

// Features returns a snapshot of all features in insertion order.
func (c *Collection) Features() []*Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Feature, len(c.features))
	copy(out, c.features)
	return out
}

// Len returns the number of features.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.features)
}

// Get returns the feature with the given ID.
func (c *Collection) Get(id string) (*Feature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, f := range c.features {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// At returns all features whose geometry contains p, in insertion order.
func (c *Collection) At(p orb.Point) []*Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var hits []*Feature
	for _, f := range c.features {
		if f.Geometry == nil {
			continue
		}
		// Fast bounding box check
		if !f.Geometry.Bound().Contains(p) {
			continue
		}
		if containsPoint(f.Geometry, p) {
			hits = append(hits, f)
		}
	}
	return hits
}

// Replace swaps the whole content for the features of fc and notifies
// listeners. Features without an ID get "<name>/<index>".
func (c *Collection) Replace(fc *geojson.FeatureCollection) {
	features := make([]*Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		features = append(features, NewFeature(featureID(c.name, i, gf), gf))
	}

	c.mu.Lock()
	c.features = features
	c.mu.Unlock()

	c.notify()
}

// Add appends features and notifies listeners.
func (c *Collection) Add(features ...*Feature) {
	if len(features) == 0 {
		return
	}
	c.mu.Lock()
	c.features = append(c.features, features...)
	c.mu.Unlock()

	c.notify()
}

// Clear removes every feature and notifies listeners.
func (c *Collection) Clear() {
	c.mu.Lock()
	c.features = nil
	c.mu.Unlock()

	c.notify()
}

// OnChange registers fn to be called after every mutation.
// The returned function removes the registration.
func (c *Collection) OnChange(fn func()) (cancel func()) {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.lmu.Lock()
			delete(c.listeners, id)
			c.lmu.Unlock()
		})
	}
}

// FeatureCollection returns the current content as GeoJSON.
func (c *Collection) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range c.Features() {
		fc.Append(f.GeoJSON())
	}
	return fc
}

func (c *Collection) notify() {
	c.lmu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.lmu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func featureID(layer string, i int, f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return fmt.Sprintf("%s/%d", layer, int64(id))
	}
	return fmt.Sprintf("%s/%d", layer, i)
}

// containsPoint reports whether geometry g contains p.
func containsPoint(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	case orb.Ring:
		return planar.RingContains(geom, p)
	case orb.Bound:
		return geom.Contains(p)
	case orb.Point:
		return geom.Equal(p)
	case orb.MultiPoint:
		for _, q := range geom {
			if q.Equal(p) {
				return true
			}
		}
		return false
	case orb.Collection:
		for _, sub := range geom {
			if containsPoint(sub, p) {
				return true
			}
		}
		return false
	default:
		// Lines have no interior.
		return false
	}
}
