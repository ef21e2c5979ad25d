package mapui

import (
	"context"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-kart/internal/engine"
	"github.com/joeblew999/plat-kart/internal/geoloc"
	"github.com/joeblew999/plat-kart/internal/humastar"
	"github.com/joeblew999/plat-kart/internal/metrics"
)

// pointSignals reads the lon/lat signals every map event carries.
func pointSignals(input *SessionSignalsInput) (humastar.Signals, orb.Point, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, orb.Point{}, err
	}
	lon, lat, err := signals.Coord("lon", "lat")
	if err != nil {
		return nil, orb.Point{}, huma.Error400BadRequest(err.Error())
	}
	return signals, orb.Point{lon, lat}, nil
}

// Pointer hit-tests the region layer under the pointer and returns the
// hover highlight.
func (h *Handler) Pointer(ctx context.Context, input *SessionSignalsInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	_, p, err := pointSignals(input)
	if err != nil {
		return nil, err
	}

	active := s.Controller.PointerMove(p)
	metrics.PointerEventsTotal.WithLabelValues(metrics.HitResult(active != nil)).Inc()

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{
			"activeRegion": s.Controller.RegionName(active),
			"hover":        hoverSignal(active),
		})
	}), nil
}

// Click selects the municipality under the pointer and patches the header.
func (h *Handler) Click(ctx context.Context, input *SessionSignalsInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	_, p, err := pointSignals(input)
	if err != nil {
		return nil, err
	}

	sel := s.Controller.Click(p)
	metrics.ClicksTotal.WithLabelValues(metrics.HitResult(sel.Feature != nil)).Inc()

	selected := ""
	if sel.Feature != nil {
		selected = sel.Feature.ID
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.headerHTML(sel.Header), "#header")
		sse.Signals(map[string]any{"selected": selected})
	}), nil
}

// Focus recenters the view on the roster entry named by the focus signal.
// The view change itself reaches the page through the event stream.
func (h *Handler) Focus(ctx context.Context, input *SessionSignalsInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	id := signals.String("focus")
	if id == "" {
		return nil, huma.Error400BadRequest("focus signal is required")
	}
	if _, ok := s.Controller.RecenterOnID(id); !ok {
		return nil, huma.Error404NotFound("municipality " + strconv.Quote(id) + " not in roster")
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"focused": id})
	}), nil
}

// Position relays a browser geolocation fix to the session.
func (h *Handler) Position(ctx context.Context, input *SessionSignalsInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, p, err := pointSignals(input)
	if err != nil {
		return nil, err
	}

	pos := geoloc.Position{Lon: p[0], Lat: p[1], Accuracy: signals.Float("accuracy")}
	if ms := signals.Float("timestamp"); ms > 0 {
		pos.Time = time.UnixMilli(int64(ms))
	}
	accepted := s.Relay.Push(pos)

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"tracking": accepted && s.Relay.Tracking()})
	}), nil
}

// PositionError records a browser geolocation error. Permission denied
// stops tracking for the rest of the session.
func (h *Handler) PositionError(ctx context.Context, input *SessionSignalsInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	code := signals.Int("code")
	s.Relay.Fail(code, signals.String("message"))
	metrics.GeolocationErrorsTotal.WithLabelValues(strconv.Itoa(code)).Inc()

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"tracking": s.Relay.Tracking()})
	}), nil
}

func hoverSignal(f *engine.Feature) map[string]any {
	if f == nil {
		return map[string]any{"id": "", "style": map[string]any{}}
	}
	return map[string]any{"id": f.ID, "style": f.Style()}
}
