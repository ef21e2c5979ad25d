package controller

import (
	"github.com/joeblew999/plat-kart/internal/geoloc"
)

func (c *Controller) startFollowing() {
	if c.deps.Locator == nil {
		return
	}
	c.cancels = append(c.cancels, c.deps.Locator.Subscribe(c.positionChanged))

	if err := c.deps.Locator.SetTracking(true); err != nil {
		c.log.Warn("geoloc_unavailable", "err", err)
	}
}

// positionChanged stores the fix, moves the user marker and animates the
// view to follow it.
func (c *Controller) positionChanged(p geoloc.Position) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	if c.isClosed() {
		return
	}

	c.mu.Lock()
	c.user.Set(p)
	c.mu.Unlock()

	pt := p.Point()
	if c.deps.Marker != nil {
		c.deps.Marker.SetCenter(pt)
	}
	if c.deps.View != nil {
		c.deps.View.AnimateCenter(pt)
	}

	c.onPosition.emit(p)
}
