package engine

import (
	"sync"

	"github.com/paulmach/orb"
)

// Marker is a single point geometry drawn on top of the map, used for the
// user's position. It is hidden until its center is first set.
type Marker struct {
	mu      sync.RWMutex
	center  orb.Point
	visible bool
	style   Style
}

// NewMarker creates a hidden marker drawn with style.
func NewMarker(style Style) *Marker {
	return &Marker{style: style}
}

// SetCenter moves the marker and makes it visible.
func (m *Marker) SetCenter(p orb.Point) {
	m.mu.Lock()
	m.center = p
	m.visible = true
	m.mu.Unlock()
}

// Center returns the marker position and whether it has been placed.
func (m *Marker) Center() (orb.Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.center, m.visible
}

// Style returns the marker style.
func (m *Marker) Style() Style {
	return m.style
}
