package server

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-kart/internal/service"
)

const kommuner = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"kommunenavn":"Oslo"},"geometry":{"type":"Polygon","coordinates":[[[10.65,59.8],[10.95,59.8],[10.95,60.0],[10.65,60.0],[10.65,59.8]]]}},
 {"type":"Feature","properties":{"kommunenavn":"Bærum"},"geometry":{"type":"Polygon","coordinates":[[[10.4,59.85],[10.65,59.85],[10.65,60.05],[10.4,60.05],[10.4,59.85]]]}}
]}`

const fylker = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"fylkesnavn":"Viken"},"geometry":{"type":"Polygon","coordinates":[[[9,58],[12,58],[12,61],[9,61],[9,58]]]}}
]}`

// copyDir copies the repo's page templates so tests render what ships.
func copyDir(t *testing.T, src, dst string) {
	t.Helper()
	entries, err := os.ReadDir(src)
	if err != nil {
		t.Fatal(err)
	}
	os.MkdirAll(dst, 0755)
	for _, e := range entries {
		if e.IsDir() {
			copyDir(t, filepath.Join(src, e.Name()), filepath.Join(dst, e.Name()))
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		os.WriteFile(filepath.Join(dst, e.Name()), data, 0644)
	}
}

type fixture struct {
	srv *Server
	ts  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

func newFixtureWith(t *testing.T, configure func(*Config)) *fixture {
	t.Helper()
	web := t.TempDir()
	copyDir(t, filepath.Join("..", "..", "web", "templates"), filepath.Join(web, "templates"))
	os.MkdirAll(filepath.Join(web, "geojson"), 0755)
	os.WriteFile(filepath.Join(web, "geojson", "kommuner.json"), []byte(kommuner), 0644)
	os.WriteFile(filepath.Join(web, "geojson", "fylker.json"), []byte(fylker), 0644)

	cfg := Config{
		Host:    "127.0.0.1",
		Port:    "0",
		DataDir: t.TempDir(),
		WebDir:  web,
		Layers:  service.DefaultLayers("/geojson/fylker.json", "/geojson/kommuner.json", ""),
		Center:  orb.Point{11, 60},
		Zoom:    8,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if configure != nil {
		configure(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &fixture{srv: srv, ts: ts}
}

// openPage loads the map page and returns its session, layers loaded.
func (f *fixture) openPage(t *testing.T) *service.Session {
	t.Helper()
	resp, err := http.Get(f.ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("page: %d %s", resp.StatusCode, body)
	}

	infos := f.srv.Sessions().List()
	if len(infos) != 1 {
		t.Fatalf("sessions=%d", len(infos))
	}
	id := infos[0].ID
	if !strings.Contains(string(body), "/api/v1/map/"+id+"/events") {
		t.Errorf("page does not reference its session")
	}
	if !strings.Contains(string(body), "Velg kommune") {
		t.Errorf("page header missing placeholder")
	}

	s, err := f.srv.Sessions().Get(id)
	if err != nil {
		t.Fatal(err)
	}
	s.Map.Wait()
	return s
}

func (f *fixture) post(t *testing.T, path, signals string) (int, string) {
	t.Helper()
	resp, err := http.Post(f.ts.URL+path, "application/json", strings.NewReader(signals))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestPointerHighlightsRegion(t *testing.T) {
	f := newFixture(t)
	s := f.openPage(t)

	code, body := f.post(t, "/api/v1/map/"+s.ID+"/pointer", `{"lon": 10.75, "lat": 59.91}`)
	if code != http.StatusOK {
		t.Fatalf("pointer: %d %s", code, body)
	}
	for _, want := range []string{"datastar-patch-signals", `"activeRegion":"Viken"`, `"strokeWidth":3`} {
		if !strings.Contains(body, want) {
			t.Errorf("pointer body missing %s: %s", want, body)
		}
	}

	_, body = f.post(t, "/api/v1/map/"+s.ID+"/pointer", `{"lon": 3, "lat": 50}`)
	if !strings.Contains(body, `"activeRegion":""`) {
		t.Errorf("miss body: %s", body)
	}
}

func TestPointerUsesConfiguredRegionKey(t *testing.T) {
	f := newFixtureWith(t, func(cfg *Config) {
		cfg.Controller.RegionNameKey = "navn"
		doc := `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"navn":"Innlandet"},"geometry":{"type":"Polygon","coordinates":[[[9,58],[12,58],[12,61],[9,61],[9,58]]]}}
]}`
		os.WriteFile(filepath.Join(cfg.WebDir, "geojson", "fylker.json"), []byte(doc), 0644)
	})
	s := f.openPage(t)

	_, body := f.post(t, "/api/v1/map/"+s.ID+"/pointer", `{"lon": 10.75, "lat": 59.91}`)
	if !strings.Contains(body, `"activeRegion":"Innlandet"`) {
		t.Errorf("pointer body: %s", body)
	}
}

func TestClickPatchesHeader(t *testing.T) {
	f := newFixture(t)
	s := f.openPage(t)

	_, body := f.post(t, "/api/v1/map/"+s.ID+"/click", `{"lon": 10.5, "lat": 59.9}`)
	if !strings.Contains(body, "datastar-patch-elements") || !strings.Contains(body, "Bærum ") {
		t.Errorf("click body: %s", body)
	}
	if s.Controller.Header() != "Bærum " {
		t.Errorf("header=%q", s.Controller.Header())
	}

	code, _ := f.post(t, "/api/v1/map/"+s.ID+"/click", `{"lon": "x"}`)
	if code != http.StatusBadRequest {
		t.Errorf("bad signals: %d", code)
	}
}

func TestPositionAndDenial(t *testing.T) {
	f := newFixture(t)
	s := f.openPage(t)

	_, body := f.post(t, "/api/v1/map/"+s.ID+"/position", `{"lon": 10.75, "lat": 59.91, "accuracy": 20}`)
	if !strings.Contains(body, `"tracking":true`) {
		t.Errorf("position body: %s", body)
	}
	if p, ok := s.Controller.UserPosition(); !ok || p.Accuracy != 20 {
		t.Errorf("user=%v %v", p, ok)
	}
	if got := s.Map.View().Target(); got != (orb.Point{10.75, 59.91}) {
		t.Errorf("view target=%v", got)
	}

	_, body = f.post(t, "/api/v1/map/"+s.ID+"/position-error", `{"code": 1, "message": "User denied Geolocation"}`)
	if !strings.Contains(body, `"tracking":false`) {
		t.Errorf("error body: %s", body)
	}
	_, body = f.post(t, "/api/v1/map/"+s.ID+"/position", `{"lon": 5.32, "lat": 60.39}`)
	if !strings.Contains(body, `"tracking":false`) {
		t.Errorf("position after denial: %s", body)
	}
}

func TestFocusRecentersOnRosterEntry(t *testing.T) {
	f := newFixture(t)
	s := f.openPage(t)

	roster := s.Controller.Roster()
	if len(roster) != 2 || roster[0].Name != "Bærum" {
		t.Fatalf("roster=%v", roster)
	}

	code, body := f.post(t, "/api/v1/map/"+s.ID+"/focus", `{"focus": "`+roster[0].ID+`"}`)
	if code != http.StatusOK {
		t.Fatalf("focus: %d %s", code, body)
	}
	if got := s.Map.View().Target(); got != roster[0].Center() {
		t.Errorf("target=%v, want %v", got, roster[0].Center())
	}

	if code, _ := f.post(t, "/api/v1/map/"+s.ID+"/focus", `{"focus": "kommuner/99"}`); code != http.StatusNotFound {
		t.Errorf("unknown entry: %d", code)
	}
}

// eventStream is an open /events response read line by line.
type eventStream struct {
	ctx   context.Context
	lines chan string
}

func (f *fixture) openEvents(t *testing.T, id string) *eventStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, f.ts.URL+"/api/v1/map/"+id+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events: %d", resp.StatusCode)
	}

	es := &eventStream{ctx: ctx, lines: make(chan string)}
	go func() {
		defer close(es.lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case es.lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return es
}

func (es *eventStream) waitFor(t *testing.T, want string) {
	t.Helper()
	for {
		select {
		case line, ok := <-es.lines:
			if !ok {
				t.Fatalf("stream closed before %q", want)
			}
			if strings.Contains(line, want) {
				return
			}
		case <-es.ctx.Done():
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func (es *eventStream) waitClosed(t *testing.T) {
	t.Helper()
	for {
		select {
		case _, ok := <-es.lines:
			if !ok {
				return
			}
		case <-es.ctx.Done():
			t.Fatal("stream still open")
		}
	}
}

func TestEventsStreamRosterAndPosition(t *testing.T) {
	f := newFixture(t)
	s := f.openPage(t)
	es := f.openEvents(t, s.ID)

	es.waitFor(t, "Bærum")

	f.post(t, "/api/v1/map/"+s.ID+"/position", `{"lon": 10.75, "lat": 59.91}`)
	es.waitFor(t, `"user"`)
	es.waitFor(t, `"view"`)
}

func TestEventsStreamEndsWhenSessionDeleted(t *testing.T) {
	f := newFixture(t)
	s := f.openPage(t)
	es := f.openEvents(t, s.ID)
	es.waitFor(t, "Bærum")

	if err := f.srv.Sessions().Delete(s.ID); err != nil {
		t.Fatal(err)
	}
	es.waitFor(t, "session-closed")
	es.waitClosed(t)
}

func TestEventsStreamKeepsSessionAlive(t *testing.T) {
	ttl := 200 * time.Millisecond
	f := newFixtureWith(t, func(cfg *Config) { cfg.SessionTTL = ttl })
	s := f.openPage(t)
	es := f.openEvents(t, s.ID)
	es.waitFor(t, "Bærum")

	// Well past the TTL with no requests but the open stream.
	time.Sleep(3 * ttl)
	if n := f.srv.Sessions().Sweep(time.Now()); n != 0 {
		t.Fatalf("swept %d sessions with an open stream", n)
	}
	if _, err := f.srv.Sessions().Get(s.ID); err != nil {
		t.Fatal(err)
	}

	// Once it does expire, the stream says so and ends.
	if n := f.srv.Sessions().Sweep(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("swept=%d, want 1", n)
	}
	es.waitFor(t, "session-closed")
	es.waitClosed(t)
}

func TestUnknownSessionAndMetrics(t *testing.T) {
	f := newFixture(t)

	code, _ := f.post(t, "/api/v1/map/nope/pointer", `{"lon": 10, "lat": 60}`)
	if code != http.StatusNotFound {
		t.Errorf("unknown session: %d", code)
	}

	resp, err := http.Get(f.ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "kart_sessions_active") {
		t.Error("metrics missing kart_sessions_active")
	}
}

func TestOpenAPIDocumentsRoutes(t *testing.T) {
	f := newFixture(t)
	paths := f.srv.OpenAPI().Paths
	for _, p := range []string{"/health", "/api/v1/layers", "/api/v1/sessions/{id}/roster", "/api/v1/map/{id}/events"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("OpenAPI missing %s", p)
		}
	}
}
