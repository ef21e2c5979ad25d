package engine

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestViewAnimateCenter(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	v := NewView(orb.Point{11, 60}, 8, WithClock(clock.Now), WithAnimation(100*time.Millisecond))

	var states []ViewState
	v.OnChange(func(s ViewState) { states = append(states, s) })

	v.AnimateCenter(orb.Point{13, 62})

	if !v.Animating() {
		t.Fatal("view should be animating")
	}
	if got := v.Target(); !got.Equal(orb.Point{13, 62}) {
		t.Errorf("target=%v, want [13 62]", got)
	}
	if got := v.Center(); !got.Equal(orb.Point{11, 60}) {
		t.Errorf("center at start=%v, want [11 60]", got)
	}

	clock.Advance(50 * time.Millisecond)
	mid := v.Center()
	if mid[0] <= 11 || mid[0] >= 13 || mid[1] <= 60 || mid[1] >= 62 {
		t.Errorf("center mid-animation=%v, want strictly between", mid)
	}

	clock.Advance(50 * time.Millisecond)
	if v.Animating() {
		t.Error("animation should be finished")
	}
	if got := v.Center(); !got.Equal(orb.Point{13, 62}) {
		t.Errorf("center after animation=%v, want [13 62]", got)
	}

	if len(states) != 1 || states[0].Duration != 100*time.Millisecond {
		t.Fatalf("states=%+v, want one animated change", states)
	}
}

func TestViewSetCenterJumps(t *testing.T) {
	v := NewView(orb.Point{0, 0}, 4)

	var last ViewState
	cancel := v.OnChange(func(s ViewState) { last = s })
	v.SetCenter(orb.Point{5, 5})
	cancel()

	if v.Animating() {
		t.Error("SetCenter must not animate")
	}
	if last.Duration != 0 || !last.Center.Equal(orb.Point{5, 5}) {
		t.Errorf("last=%+v", last)
	}

	v.SetZoom(10)
	if last.Zoom != 4 {
		t.Error("cancelled listener was called")
	}
	if v.Zoom() != 10 {
		t.Errorf("zoom=%v, want 10", v.Zoom())
	}
}
