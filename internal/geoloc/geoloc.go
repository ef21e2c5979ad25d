// Package geoloc provides position sources for the location follower.
package geoloc

import (
	"errors"
	"sync"
	"time"

	"github.com/paulmach/orb"
)

// ErrUnavailable is returned when tracking cannot be enabled.
var ErrUnavailable = errors.New("geolocation unavailable")

// Position is one geolocation fix.
type Position struct {
	Lon      float64   `json:"lon"`
	Lat      float64   `json:"lat"`
	Accuracy float64   `json:"accuracy,omitempty"`
	Time     time.Time `json:"time"`
}

// Point returns the position as an orb point (lon, lat).
func (p Position) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Provider delivers continuous position updates once tracking is enabled.
type Provider interface {
	SetTracking(on bool) error
	Subscribe(fn func(Position)) (cancel func())
}

// subscribers is the fan-out shared by providers.
type subscribers struct {
	mu     sync.Mutex
	fns    map[int]func(Position)
	nextID int
}

func (s *subscribers) add(fn func(Position)) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[int]func(Position))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) publish(p Position) {
	s.mu.Lock()
	fns := make([]func(Position), 0, len(s.fns))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.fns[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}
