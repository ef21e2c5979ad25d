package mapui

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-kart/internal/humastar"
	"github.com/joeblew999/plat-kart/internal/service"
)

// Events streams state changes that happen outside a request: layer loads,
// roster rebuilds, user positions and view animations. The current state is
// sent first so a reconnecting page catches up. An open stream keeps its
// session alive; when the session is deleted or expires the page gets a
// session-closed event and the stream ends.
func (h *Handler) Events(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			w := watch(s)
			defer w.close()

			h.log.Debug("map_events_open", "session", s.ID)
			defer h.log.Debug("map_events_closed", "session", s.ID)

			var events chan service.Event
			if h.bus != nil {
				events = h.bus.Subscribe()
				defer h.bus.Unsubscribe(events)
			}
			keepalive := time.NewTicker(h.keepalive())
			defer keepalive.Stop()

			closed := func(reason string) {
				h.log.Debug("map_events_session_closed", "session", s.ID, "reason", reason)
				sse.Event("session-closed", map[string]any{"session": s.ID, "reason": reason})
			}

			sse.Patch(h.headerHTML(s.Controller.Header()), "#header")
			sse.Patch(h.rosterHTML(s), "#roster")
			h.sendUser(sse, s)

			for {
				select {
				case <-ctx.Done():
					return
				case <-humaCtx.Context().Done():
					return
				case e := <-events:
					if e.Resource == "sessions" && e.ID == s.ID && (e.Action == "deleted" || e.Action == "expired") {
						closed(e.Action)
						return
					}
					continue
				case <-keepalive.C:
					// Get touches the session and catches a close whose
					// event was dropped.
					if _, err := h.sessions.Get(s.ID); err != nil {
						closed("expired")
						return
					}
					continue
				case <-w.wake:
				}
				s.Touch()

				c, view, layers := w.take()
				for _, name := range layers {
					sse.Event("layer-changed", map[string]any{"layer": name})
				}
				if c&changeRoster != 0 {
					sse.Patch(h.rosterHTML(s), "#roster")
				}
				if c&changeUser != 0 {
					h.sendUser(sse, s)
				}
				if c&changeView != 0 {
					sse.Signals(map[string]any{"view": map[string]any{
						"center":   [2]float64{view.Center[0], view.Center[1]},
						"zoom":     view.Zoom,
						"duration": view.Duration.Milliseconds(),
					}})
				}
			}
		},
	}, nil
}

func (h *Handler) keepalive() time.Duration {
	if h.Keepalive > 0 {
		return h.Keepalive
	}
	return DefaultKeepalive
}

func (h *Handler) sendUser(sse humastar.SSE, s *service.Session) {
	p, ok := s.Controller.UserPosition()
	if !ok {
		return
	}
	sse.Signals(map[string]any{"user": map[string]any{
		"lon":      p.Lon,
		"lat":      p.Lat,
		"accuracy": p.Accuracy,
	}})
}
