// Package mapui contains the Datastar SSE handlers behind the map page.
//
// The browser is a thin client: it posts pointer, click and geolocation
// events as signals and applies the patches it gets back. Responses to a
// POST carry the state that POST changed; the event stream carries changes
// that arrive on their own (layer loads, roster rebuilds, position fixes and
// the view animations they cause).
package mapui

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-kart/internal/controller"
	"github.com/joeblew999/plat-kart/internal/engine"
	"github.com/joeblew999/plat-kart/internal/humastar"
	"github.com/joeblew999/plat-kart/internal/service"
	"github.com/joeblew999/plat-kart/internal/templates"
)

// Tag marks the Datastar operations in the OpenAPI document.
const Tag = "map"

// DefaultKeepalive is how often an open event stream touches its session.
const DefaultKeepalive = 30 * time.Second

// Handler serves the map page and its SSE endpoints.
type Handler struct {
	humastar.Handler
	sessions *service.SessionRegistry
	layers   *service.LayerService
	bus      *service.EventBus
	log      *slog.Logger

	// Keepalive must stay below the session TTL. Zero means DefaultKeepalive.
	Keepalive time.Duration
}

// New creates the map handlers. bus may be nil, in which case streams only
// notice a closed session on their keepalive tick.
func New(sessions *service.SessionRegistry, layers *service.LayerService, bus *service.EventBus, renderer *templates.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		layers:   layers,
		bus:      bus,
		log:      logger,
	}
}

// RegisterRoutes registers the SSE routes with Huma.
func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags(Tag)
	huma.Get(api, "/api/v1/map/{id}/events", h.Events, tags)
	huma.Get(api, "/api/v1/map/{id}/roster", h.Roster, tags)
	huma.Post(api, "/api/v1/map/{id}/pointer", h.Pointer, tags)
	huma.Post(api, "/api/v1/map/{id}/click", h.Click, tags)
	huma.Post(api, "/api/v1/map/{id}/focus", h.Focus, tags)
	huma.Post(api, "/api/v1/map/{id}/position", h.Position, tags)
	huma.Post(api, "/api/v1/map/{id}/position-error", h.PositionError, tags)
}

// SessionInput identifies the page session.
type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// SessionSignalsInput is a session path plus the Datastar signal body.
type SessionSignalsInput struct {
	SessionInput
	humastar.SignalsInput
}

func (h *Handler) session(id string) (*service.Session, error) {
	s, err := h.sessions.Get(id)
	if errors.Is(err, service.ErrNotFound) {
		return nil, huma.Error404NotFound("session not found or expired")
	}
	return s, err
}

// LayerView is one catalogue layer as the page script needs it.
type LayerView struct {
	ID      string        `json:"id"`
	Kind    engine.Kind   `json:"kind"`
	Visible bool          `json:"visible"`
	Style   *engine.Style `json:"style,omitempty"`
	DataURL string        `json:"dataUrl"`
}

// PageData is rendered into map.html.
type PageData struct {
	SessionID string
	Header    string
	Config    PageConfig
}

// PageConfig is handed to the page script as JSON.
type PageConfig struct {
	Session   string       `json:"session"`
	Center    [2]float64   `json:"center"`
	Zoom      float64      `json:"zoom"`
	Layers    []LayerView  `json:"layers"`
	Highlight engine.Style `json:"highlight"`
	User      engine.Style `json:"user"`
}

// Page opens a new session and renders the map page for it.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s, err := h.sessions.Create(r.Context())
	if err != nil {
		h.log.Error("session_create_error", "err", err)
		http.Error(w, "could not open map session", http.StatusInternalServerError)
		return
	}

	center := s.Map.View().Center()
	cfg := PageConfig{
		Session:   s.ID,
		Center:    [2]float64{center[0], center[1]},
		Zoom:      s.Map.View().Zoom(),
		Highlight: *engine.Highlight(""),
		User:      s.Map.User().Style(),
	}
	for _, l := range h.layers.List() {
		if _, ok := s.Map.Layer(l.ID); !ok {
			continue
		}
		cfg.Layers = append(cfg.Layers, LayerView{
			ID:      l.ID,
			Kind:    l.Kind,
			Visible: l.Visible,
			Style:   l.Style,
			DataURL: "/api/v1/sessions/" + s.ID + "/layers/" + l.ID,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := PageData{SessionID: s.ID, Header: s.Controller.Header(), Config: cfg}
	if err := h.Renderer.Execute(w, "map.html", data); err != nil {
		h.log.Error("page_render_error", "session", s.ID, "err", err)
	}
}

// rosterHTML renders the roster list, or the empty state before the
// municipalities have loaded.
func (h *Handler) rosterHTML(s *service.Session) string {
	entries := s.Controller.Roster()
	items := make([]any, len(entries))
	for i, e := range entries {
		items[i] = rosterItem(s.ID, e)
	}
	return h.RenderList("roster-item", items, "Laster kommuner", "Listen fylles når kartdataene er lastet.")
}

// RosterItemData is the roster-item fragment's data.
type RosterItemData struct {
	Session string
	ID      string
	Name    string
}

func rosterItem(session string, e controller.RosterEntry) RosterItemData {
	return RosterItemData{Session: session, ID: e.ID, Name: e.Name}
}

func (h *Handler) headerHTML(header string) string {
	html, err := h.Renderer.Render("header", map[string]string{"Header": header})
	if err != nil {
		h.log.Error("fragment_render_error", "fragment", "header", "err", err)
	}
	return html
}

// Roster streams the current roster once.
func (h *Handler) Roster(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.rosterHTML(s), "#roster")
	}), nil
}
