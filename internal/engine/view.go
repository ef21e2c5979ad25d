package engine

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
)

// DefaultAnimation is the duration of AnimateCenter transitions.
const DefaultAnimation = 250 * time.Millisecond

// ViewState is what the browser needs to move its view: the target center,
// the zoom and how long the transition should take (0 = jump).
type ViewState struct {
	Center   orb.Point     `json:"center"`
	Zoom     float64       `json:"zoom"`
	Duration time.Duration `json:"duration"`
}

// View is the map viewport. Center changes are either instantaneous
// (SetCenter) or animated (AnimateCenter).
type View struct {
	mu       sync.RWMutex
	center   orb.Point
	zoom     float64
	from     orb.Point
	start    time.Time
	duration time.Duration

	now       func() time.Time
	animation time.Duration

	lmu       sync.Mutex
	listeners map[int]func(ViewState)
	nextID    int
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithClock overrides the time source used for interpolating animations.
func WithClock(now func() time.Time) ViewOption {
	return func(v *View) { v.now = now }
}

// WithAnimation sets the AnimateCenter duration.
func WithAnimation(d time.Duration) ViewOption {
	return func(v *View) { v.animation = d }
}

// NewView creates a view at center and zoom.
func NewView(center orb.Point, zoom float64, opts ...ViewOption) *View {
	v := &View{
		center:    center,
		from:      center,
		zoom:      zoom,
		now:       time.Now,
		animation: DefaultAnimation,
		listeners: make(map[int]func(ViewState)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Center returns the current, possibly mid-animation, center.
func (v *View) Center() orb.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.currentLocked()
}

// Target returns the center the view is at or animating towards.
func (v *View) Target() orb.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center
}

// Zoom returns the zoom level.
func (v *View) Zoom() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.zoom
}

// Animating reports whether a center transition is in progress.
func (v *View) Animating() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.duration > 0 && v.now().Sub(v.start) < v.duration
}

// SetCenter jumps to center.
func (v *View) SetCenter(center orb.Point) {
	v.mu.Lock()
	v.center, v.from, v.duration = center, center, 0
	state := ViewState{Center: center, Zoom: v.zoom}
	v.mu.Unlock()

	v.notify(state)
}

// SetZoom changes the zoom level without animation.
func (v *View) SetZoom(zoom float64) {
	v.mu.Lock()
	v.zoom = zoom
	state := ViewState{Center: v.center, Zoom: zoom}
	v.mu.Unlock()

	v.notify(state)
}

// AnimateCenter starts a smooth transition from the current center to center.
func (v *View) AnimateCenter(center orb.Point) {
	v.mu.Lock()
	v.from = v.currentLocked()
	v.center = center
	v.start = v.now()
	v.duration = v.animation
	state := ViewState{Center: center, Zoom: v.zoom, Duration: v.animation}
	v.mu.Unlock()

	v.notify(state)
}

// OnChange registers fn for every center or zoom change.
func (v *View) OnChange(fn func(ViewState)) (cancel func()) {
	v.lmu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.lmu.Unlock()

	return func() {
		v.lmu.Lock()
		delete(v.listeners, id)
		v.lmu.Unlock()
	}
}

func (v *View) currentLocked() orb.Point {
	if v.duration <= 0 {
		return v.center
	}
	elapsed := v.now().Sub(v.start)
	if elapsed >= v.duration {
		return v.center
	}
	t := easeInOut(float64(elapsed) / float64(v.duration))
	return orb.Point{
		v.from[0] + (v.center[0]-v.from[0])*t,
		v.from[1] + (v.center[1]-v.from[1])*t,
	}
}

func (v *View) notify(state ViewState) {
	v.lmu.Lock()
	fns := make([]func(ViewState), 0, len(v.listeners))
	for id := 0; id < v.nextID; id++ {
		if fn, ok := v.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	v.lmu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func easeInOut(t float64) float64 {
	return t * t * (3 - 2*t)
}
