package controller

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RosterEntry is one municipality in the sidebar list: its property bag and
// the geometry used to recenter the view on it.
type RosterEntry struct {
	ID         string
	Name       string
	Properties geojson.Properties
	Geometry   orb.Geometry
}

// Center returns the center of the entry's bounding box.
func (e RosterEntry) Center() orb.Point {
	if e.Geometry == nil {
		return orb.Point{}
	}
	return e.Geometry.Bound().Center()
}

// municipalitiesChanged rebuilds the roster from the full collection.
func (c *Controller) municipalitiesChanged() {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	if c.isClosed() {
		return
	}

	features := c.deps.Municipalities.Features()
	entries := make([]RosterEntry, 0, len(features))
	for _, f := range features {
		props := make(geojson.Properties, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
		name := f.Name(c.opts.MunicipalityNameKey)
		if name == "" {
			c.log.Warn("municipality_missing_name", "id", f.ID, "key", c.opts.MunicipalityNameKey)
		}
		entries = append(entries, RosterEntry{
			ID:         f.ID,
			Name:       name,
			Properties: props,
			Geometry:   f.Geometry,
		})
	}

	c.mu.Lock()
	sort.SliceStable(entries, func(i, j int) bool {
		return c.collator.CompareString(entries[i].Name, entries[j].Name) < 0
	})
	c.roster = entries
	c.mu.Unlock()

	c.log.Debug("roster_rebuilt", "entries", len(entries))
	c.onRoster.emit(entries)
}

// RecenterOn animates the view to the center of the entry's extent.
func (c *Controller) RecenterOn(e RosterEntry) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	if c.isClosed() || c.deps.View == nil {
		return
	}
	if e.Geometry == nil {
		c.log.Warn("roster_entry_without_geometry", "id", e.ID)
		return
	}
	c.deps.View.AnimateCenter(e.Center())
}

// RecenterOnID recenters on the roster entry with the given feature ID.
func (c *Controller) RecenterOnID(id string) (RosterEntry, bool) {
	for _, e := range c.Roster() {
		if e.ID == id {
			c.RecenterOn(e)
			return e, true
		}
	}
	return RosterEntry{}, false
}
