package controller

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-kart/internal/engine"
)

// PointerMove resolves the region under p and makes it the Active Region.
// The first feature returned by the hit query wins; no match clears the
// slot. The highlight moves with the slot: the previous feature is reset to
// the layer style before the new one is styled. It returns the Active Region
// after the move.
func (c *Controller) PointerMove(p orb.Point) *engine.Feature {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	if c.isClosed() || c.deps.Regions == nil {
		return nil
	}

	var next *engine.Feature
	if hits := c.deps.Regions.At(p); len(hits) > 0 {
		next = hits[0]
	}

	c.mu.Lock()
	var prev *engine.Feature
	var had bool
	switch {
	case next == nil:
		prev, had = c.active.Clear()
		if !had {
			c.mu.Unlock()
			return nil
		}
	case c.active.Holds(next):
		c.mu.Unlock()
		return next
	default:
		prev, had = c.active.Set(next)
	}
	c.mu.Unlock()

	if had && prev != nil {
		prev.SetStyle(nil)
	}
	if next != nil {
		name := next.Name(c.opts.RegionNameKey)
		if name == "" {
			c.log.Warn("region_missing_name", "id", next.ID, "key", c.opts.RegionNameKey)
		}
		next.SetStyle(c.opts.Highlight(name))
	}

	c.onActive.emit(next)
	return next
}
