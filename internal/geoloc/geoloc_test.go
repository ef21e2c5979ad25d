package geoloc

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelayDeliversOnlyWhileTracking(t *testing.T) {
	r := NewRelay(quietLogger())

	var got []Position
	cancel := r.Subscribe(func(p Position) { got = append(got, p) })
	defer cancel()

	if r.Push(Position{Lon: 10.75, Lat: 59.91}) {
		t.Fatal("push delivered with tracking off")
	}

	if err := r.SetTracking(true); err != nil {
		t.Fatal(err)
	}
	if !r.Push(Position{Lon: 10.75, Lat: 59.91}) {
		t.Fatal("push not delivered with tracking on")
	}
	if len(got) != 1 || got[0].Lon != 10.75 || got[0].Lat != 59.91 {
		t.Fatalf("got=%+v", got)
	}
	if got[0].Time.IsZero() {
		t.Error("missing timestamp")
	}

	if r.Push(Position{Lon: 200, Lat: 0}) {
		t.Error("out of range position delivered")
	}
}

func TestRelayPermissionDenied(t *testing.T) {
	r := NewRelay(quietLogger())
	r.SetTracking(true)

	r.Fail(3, "timeout")
	if !r.Tracking() {
		t.Fatal("transient error must not stop tracking")
	}

	r.Fail(1, "User denied Geolocation")
	if r.Tracking() {
		t.Fatal("tracking should stop after permission denied")
	}
	if err := r.SetTracking(true); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err=%v, want ErrUnavailable", err)
	}
}

func TestTrackPoints(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{10, 59}, {10.5, 59.5}}))
	fc.Append(geojson.NewFeature(orb.Point{11, 60}))
	fc.Append(geojson.NewFeature(orb.Polygon{}))

	pts, err := TrackPoints(fc)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 3 || !pts[2].Equal(orb.Point{11, 60}) {
		t.Errorf("pts=%v", pts)
	}

	if _, err := TrackPoints(geojson.NewFeatureCollection()); err == nil {
		t.Error("expected error for empty track")
	}
}

func TestReplayPlaysAllPoints(t *testing.T) {
	r := NewReplay([]orb.Point{{10, 59}, {10.5, 59.5}, {10.75, 59.91}}, time.Millisecond)

	got := make(chan Position, 3)
	r.Subscribe(func(p Position) { got <- p })

	if err := r.SetTracking(true); err != nil {
		t.Fatal(err)
	}

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}
	r.Close()

	if len(got) != 3 {
		t.Fatalf("delivered=%d, want 3", len(got))
	}
	<-got
	<-got
	if last := <-got; last.Lon != 10.75 || last.Lat != 59.91 {
		t.Errorf("last=%+v", last)
	}

	// Resuming a finished replay is a no-op.
	if err := r.SetTracking(true); err != nil {
		t.Error(err)
	}
	r.Close()
}

func TestReplayEmpty(t *testing.T) {
	r := NewReplay(nil, time.Millisecond)
	if err := r.SetTracking(true); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err=%v, want ErrUnavailable", err)
	}
}

func TestReplayPauseResume(t *testing.T) {
	points := make([]orb.Point, 40)
	for i := range points {
		points[i] = orb.Point{10 + float64(i)*0.01, 59.9}
	}
	r := NewReplay(points, time.Microsecond)

	var delivered atomic.Int64
	r.Subscribe(func(Position) {
		delivered.Add(1)
		time.Sleep(50 * time.Microsecond)
	})

	for i := 0; i < 200; i++ {
		if err := r.SetTracking(true); err != nil {
			t.Fatal(err)
		}
		if err := r.SetTracking(false); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.SetTracking(true); err != nil {
		t.Fatal(err)
	}

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish after resuming")
	}
	r.Close()

	if got := delivered.Load(); got != int64(len(points)) {
		t.Errorf("delivered=%d, want %d", got, len(points))
	}
}
