package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeblew999/plat-kart/internal/engine"
)

func defaults() []LayerConfig {
	return DefaultLayers("/geojson/fylker2021.json", "/geojson/kommuner2021.json", "/geojson/vgs.geojson")
}

func TestLayerServiceSeedsDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLayerService(dir, defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, l := range s.List() {
		ids = append(ids, l.ID)
	}
	if strings.Join(ids, ",") != "fylker,kommuner,vgs" {
		t.Fatalf("ids=%v", ids)
	}

	vgs, ok := s.Get("vgs")
	if !ok || vgs.Style == nil || vgs.Style.Fill != "red" || vgs.Style.Radius != 5 {
		t.Fatalf("vgs=%+v", vgs)
	}

	if _, err := os.Stat(filepath.Join(dir, "layers.yaml")); err != nil {
		t.Fatalf("catalogue not written: %v", err)
	}
}

func TestLayerServicePersists(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLayerService(dir, defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("vgs"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(LayerConfig{Name: "Tettsteder", Kind: engine.KindOverlay, URL: "/geojson/tettsteder.json", Order: 5}); err != nil {
		t.Fatal(err)
	}

	// Defaults are ignored once a catalogue exists.
	reloaded, err := NewLayerService(dir, defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Get("vgs"); ok {
		t.Error("deleted layer came back")
	}
	l, ok := reloaded.Get("tettsteder")
	if !ok || l.URL != "/geojson/tettsteder.json" || l.Order != 5 {
		t.Errorf("tettsteder=%+v ok=%v", l, ok)
	}
}

func TestLayerServiceErrors(t *testing.T) {
	s, err := NewLayerService(t.TempDir(), defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Create(LayerConfig{ID: "fylker", Name: "Fylker", Kind: engine.KindOverlay, URL: "/x.json"}); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate id: err=%v", err)
	}
	if _, err := s.Create(LayerConfig{Name: "Kommuner 2024", Kind: engine.KindMunicipality, URL: "/x.json"}); !errors.Is(err, ErrExists) {
		t.Errorf("second municipality layer: err=%v", err)
	}
	if _, err := s.Create(LayerConfig{Name: "Veier", Kind: "roads", URL: "/x.json"}); err == nil {
		t.Error("unknown kind accepted")
	}
	for _, url := range []string{"/../secret.geojson", "geojson/../../x.json", "file:///etc/passwd"} {
		if _, err := s.Create(LayerConfig{Name: "Ute", Kind: engine.KindOverlay, URL: url}); !errors.Is(err, engine.ErrOutsideBase) {
			t.Errorf("url %q: err=%v, want ErrOutsideBase", url, err)
		}
	}
	if _, err := s.Update("missing", LayerConfig{Kind: engine.KindOverlay, URL: "/x.json"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err=%v", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing: err=%v", err)
	}

	// Updating the municipality layer in place keeps its role.
	l, _ := s.Get("kommuner")
	l.URL = "/geojson/kommuner2024.json"
	if _, err := s.Update("kommuner", l); err != nil {
		t.Errorf("update in place: %v", err)
	}
}

func TestLayerServicePublishes(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	s, err := NewLayerService(t.TempDir(), defaults(), bus)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(LayerConfig{Name: "Skoler", Kind: engine.KindOverlay, URL: "/s.json"}); err != nil {
		t.Fatal(err)
	}

	e := <-ch
	if e != (Event{Resource: "layers", Action: "created", ID: "skoler"}) {
		t.Errorf("event=%+v", e)
	}
}

func TestLayerServiceSourcesInDrawOrder(t *testing.T) {
	s, err := NewLayerService(t.TempDir(), defaults(), nil)
	if err != nil {
		t.Fatal(err)
	}
	src := s.Sources()
	if len(src) != 3 || src[0].Kind != engine.KindRegion || src[1].Kind != engine.KindMunicipality || src[2].Name != "vgs" {
		t.Errorf("sources=%+v", src)
	}
}

func TestGenerateID(t *testing.T) {
	tests := map[string]string{
		"Kommuner":            "kommuner",
		"Videregående skoler": "videregende_skoler",
		"Fylker 2021":         "fylker_2021",
	}
	for in, want := range tests {
		if got := generateID(in); got != want {
			t.Errorf("generateID(%q)=%q, want %q", in, got, want)
		}
	}
}
