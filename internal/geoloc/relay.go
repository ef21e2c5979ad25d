package geoloc

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Relay is a Provider fed from outside, typically by the browser posting
// navigator.geolocation fixes over HTTP. Pushes are dropped while tracking
// is off.
type Relay struct {
	subs   subscribers
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	tracking bool
	denied   bool
}

// NewRelay creates a relay with tracking off.
func NewRelay(logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{logger: logger, now: time.Now}
}

// SetTracking turns delivery on or off. Enabling fails once the client has
// reported that permission was denied.
func (r *Relay) SetTracking(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if on && r.denied {
		return fmt.Errorf("enable tracking: %w", ErrUnavailable)
	}
	r.tracking = on
	return nil
}

// Tracking reports whether positions are delivered.
func (r *Relay) Tracking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracking
}

// Subscribe registers fn for every delivered position.
func (r *Relay) Subscribe(fn func(Position)) func() {
	return r.subs.add(fn)
}

// Push delivers p to subscribers. It returns false when tracking is off or
// the coordinate is out of range.
func (r *Relay) Push(p Position) bool {
	if p.Lon < -180 || p.Lon > 180 || p.Lat < -90 || p.Lat > 90 {
		r.logger.Warn("geoloc_invalid_position", "lon", p.Lon, "lat", p.Lat)
		return false
	}
	if !r.Tracking() {
		return false
	}
	if p.Time.IsZero() {
		p.Time = r.now()
	}
	r.subs.publish(p)
	return true
}

// Fail records a client-side geolocation error. Code 1 is the browser's
// PERMISSION_DENIED and disables tracking for good; other codes are
// transient and only logged.
func (r *Relay) Fail(code int, message string) {
	if code == 1 {
		r.mu.Lock()
		r.denied = true
		r.tracking = false
		r.mu.Unlock()
	}
	r.logger.Warn("geoloc_error", "code", code, "message", message)
}
