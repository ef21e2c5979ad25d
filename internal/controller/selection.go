package controller

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-kart/internal/engine"
)

// Click resolves the municipality under p and makes it the Selected
// Municipality, or clears the selection when nothing is hit. Selection only
// drives the header; the layer is not restyled.
func (c *Controller) Click(p orb.Point) Selection {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	if c.isClosed() || c.deps.Municipalities == nil {
		return Selection{Header: c.Header()}
	}

	var next *engine.Feature
	if hits := c.deps.Municipalities.At(p); len(hits) > 0 {
		next = hits[0]
	}

	c.mu.Lock()
	var changed bool
	if next == nil {
		_, changed = c.selected.Clear()
	} else {
		changed = !c.selected.Holds(next)
		c.selected.Set(next)
	}
	sel := Selection{Feature: next, Header: c.headerLocked()}
	c.mu.Unlock()

	if changed {
		c.onSelection.emit(sel)
	}
	return sel
}
