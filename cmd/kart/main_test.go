package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"golang.org/x/text/language"
)

func TestParseCenter(t *testing.T) {
	got, err := parseCenter(" 10.75, 59.91")
	if err != nil {
		t.Fatal(err)
	}
	if got != (orb.Point{10.75, 59.91}) {
		t.Errorf("got %v", got)
	}

	for _, bad := range []string{"", "11", "a,60", "11,b", "1,2,3"} {
		if _, err := parseCenter(bad); err == nil {
			t.Errorf("parseCenter(%q) succeeded", bad)
		}
	}
}

func TestControllerOptions(t *testing.T) {
	o, err := controllerOptions(&Options{Locale: "nn", Placeholder: "Vel kommune"})
	if err != nil {
		t.Fatal(err)
	}
	if o.Locale != language.MustParse("nn") || o.Placeholder != "Vel kommune" {
		t.Errorf("options=%+v", o)
	}
	if _, err := controllerOptions(&Options{Locale: "not a tag!"}); err == nil {
		t.Error("invalid locale accepted")
	}
}

func TestLoadCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.geojson")
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"kommunenavn":"Ås"},"geometry":{"type":"Point","coordinates":[10.8,59.7]}},
		{"type":"Feature","properties":{"kommunenavn":"Asker"},"geometry":{"type":"Point","coordinates":[10.4,59.8]}}
	]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := loadCollection(context.Background(), "kommuner", path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Errorf("len=%d, want 2", c.Len())
	}

	if _, err := loadCollection(context.Background(), "kommuner", filepath.Join(t.TempDir(), "missing.geojson")); err == nil {
		t.Error("missing file loaded")
	}
}
