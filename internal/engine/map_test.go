package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

const kommunerJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"kommunenavn": "Oslo"},
      "geometry": {"type": "Polygon", "coordinates": [[[10, 59], [11, 59], [11, 60], [10, 60], [10, 59]]]}
    }
  ]
}`

const fylkerJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "03",
      "properties": {"fylkesnavn": "Oslo"},
      "geometry": {"type": "Polygon", "coordinates": [[[9, 58], [12, 58], [12, 61], [9, 61], [9, 58]]]}
    }
  ]
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoaderFetchFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "geojson"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "geojson", "kommuner.geojson"), []byte(kommunerJSON), 0644); err != nil {
		t.Fatal(err)
	}

	fc, err := NewLoader(dir).Fetch(context.Background(), "/geojson/kommuner.geojson")
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("features=%d, want 1", len(fc.Features))
	}
}

func TestLoaderStaysInsideBaseDir(t *testing.T) {
	parent := t.TempDir()
	web := filepath.Join(parent, "web")
	if err := os.MkdirAll(web, 0755); err != nil {
		t.Fatal(err)
	}
	secret := filepath.Join(parent, "secret.geojson")
	if err := os.WriteFile(secret, []byte(kommunerJSON), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(web)
	for _, url := range []string{"/../secret.geojson", "../secret.geojson", "/geojson/../../secret.geojson", "file://" + secret} {
		if _, err := l.Fetch(context.Background(), url); !errors.Is(err, ErrOutsideBase) {
			t.Errorf("Fetch(%q) err=%v, want ErrOutsideBase", url, err)
		}
	}
	if _, err := NewLoader("").Fetch(context.Background(), "/secret.geojson"); !errors.Is(err, ErrOutsideBase) {
		t.Errorf("no base dir: err=%v, want ErrOutsideBase", err)
	}

	// Trusted callers may still read files directly.
	fc, err := NewFileLoader().Fetch(context.Background(), "file://"+secret)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 {
		t.Errorf("features=%d, want 1", len(fc.Features))
	}

	for _, url := range []string{"/geojson/kommuner.json", "https://example.com/k.geojson"} {
		if err := CheckURL(url); err != nil {
			t.Errorf("CheckURL(%q)=%v", url, err)
		}
	}
}

func TestLoaderFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fylker.geojson" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		io.WriteString(w, fylkerJSON)
	}))
	defer srv.Close()

	l := NewLoader("")
	fc, err := l.Fetch(context.Background(), srv.URL+"/fylker.geojson")
	if err != nil {
		t.Fatal(err)
	}
	if fc.Features[0].Properties.MustString("fylkesnavn") != "Oslo" {
		t.Errorf("unexpected feature %+v", fc.Features[0].Properties)
	}

	if _, err := l.Fetch(context.Background(), srv.URL+"/missing.geojson"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestMapLoadNotifiesCollections(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "fylker.geojson"), []byte(fylkerJSON), 0644)
	os.WriteFile(filepath.Join(dir, "kommuner.geojson"), []byte(kommunerJSON), 0644)

	m, err := New(Config{
		Center: orb.Point{11, 60},
		Zoom:   8,
		Sources: []Source{
			{Name: "fylker", Kind: KindRegion, URL: "fylker.geojson"},
			{Name: "kommuner", Kind: KindMunicipality, URL: "kommuner.geojson"},
			{Name: "vgs", Kind: KindOverlay, URL: "missing.geojson"},
		},
		Loader: NewLoader(dir),
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	changed := make(chan struct{}, 1)
	m.Municipalities().OnChange(func() { changed <- struct{}{} })

	m.Load(context.Background())
	m.Wait()

	select {
	case <-changed:
	default:
		t.Fatal("municipality collection did not notify")
	}
	if m.Regions().Len() != 1 {
		t.Errorf("regions=%d, want 1", m.Regions().Len())
	}
	if _, ok := m.Regions().Get("03"); !ok {
		t.Error("region id not kept")
	}
	vgs, ok := m.Layer("vgs")
	if !ok || vgs.Len() != 0 {
		t.Error("failed overlay should exist and stay empty")
	}
}

func TestMapRejectsDuplicateRoles(t *testing.T) {
	_, err := New(Config{Sources: []Source{
		{Name: "a", Kind: KindRegion},
		{Name: "b", Kind: KindRegion},
	}})
	if err == nil {
		t.Fatal("expected error for two region layers")
	}

	_, err = New(Config{Sources: []Source{{Name: "a", Kind: "lake"}}})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
