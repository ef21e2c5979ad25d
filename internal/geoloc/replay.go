package geoloc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Replay is a Provider that plays back a recorded track at a fixed interval.
// Tracking on starts (or resumes) playback, tracking off pauses it.
type Replay struct {
	subs     subscribers
	points   []orb.Point
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	next   int
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewReplay plays points one per interval.
func NewReplay(points []orb.Point, interval time.Duration) *Replay {
	return &Replay{
		points:   points,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// TrackPoints extracts the coordinates of every LineString, MultiLineString
// and Point feature in fc, in document order.
func TrackPoints(fc *geojson.FeatureCollection) ([]orb.Point, error) {
	var pts []orb.Point
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			pts = append(pts, g...)
		case orb.MultiLineString:
			for _, ls := range g {
				pts = append(pts, ls...)
			}
		case orb.Point:
			pts = append(pts, g)
		case orb.MultiPoint:
			pts = append(pts, g...)
		}
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("track has no line or point geometry")
	}
	return pts, nil
}

// Subscribe registers fn for every replayed position.
func (r *Replay) Subscribe(fn func(Position)) func() {
	return r.subs.add(fn)
}

// SetTracking starts or pauses playback.
func (r *Replay) SetTracking(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !on {
		if r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
		return nil
	}
	if r.cancel != nil {
		return nil
	}
	if len(r.points) > 0 && r.next >= len(r.points) {
		// The last point went out just before a pause.
		r.once.Do(func() { close(r.done) })
		return nil
	}
	if len(r.points) == 0 {
		return fmt.Errorf("replay: %w", ErrUnavailable)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

// Done is closed once the last point has been delivered.
func (r *Replay) Done() <-chan struct{} {
	return r.done
}

// Close stops playback and waits for the playback goroutines.
func (r *Replay) Close() {
	r.SetTracking(false)
	r.wg.Wait()
}

func (r *Replay) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		// cancel runs under mu, so a paused run stops here before it can
		// take a point or finish alongside the run that resumed it.
		r.mu.Lock()
		if ctx.Err() != nil {
			r.mu.Unlock()
			return
		}
		if r.next >= len(r.points) {
			r.mu.Unlock()
			r.once.Do(func() { close(r.done) })
			return
		}
		p := r.points[r.next]
		r.next++
		r.mu.Unlock()

		r.subs.publish(Position{Lon: p[0], Lat: p[1], Time: r.now()})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
