package mapui

import (
	"sync"

	"github.com/joeblew999/plat-kart/internal/controller"
	"github.com/joeblew999/plat-kart/internal/engine"
	"github.com/joeblew999/plat-kart/internal/geoloc"
	"github.com/joeblew999/plat-kart/internal/service"
)

type change uint8

const (
	changeRoster change = 1 << iota
	changeUser
	changeView
	changeLayers
)

// watcher collects session changes for one event stream. Listeners run
// inside the controller's dispatch, so they only record what changed and
// wake the stream; the stream reads current state when it gets to it.
// Bursts coalesce into one patch.
type watcher struct {
	mu      sync.Mutex
	pending change
	view    engine.ViewState
	layers  map[string]struct{}

	wake    chan struct{}
	cancels []func()
}

func watch(s *service.Session) *watcher {
	w := &watcher{
		layers: map[string]struct{}{},
		wake:   make(chan struct{}, 1),
	}

	ctrl := s.Controller
	w.cancels = append(w.cancels,
		ctrl.OnRoster(func(_ []controller.RosterEntry) { w.mark(changeRoster) }),
		ctrl.OnUserPosition(func(_ geoloc.Position) { w.mark(changeUser) }),
		s.Map.View().OnChange(func(v engine.ViewState) {
			w.mu.Lock()
			w.view = v
			w.mu.Unlock()
			w.mark(changeView)
		}),
	)
	for _, src := range s.Map.Sources() {
		c, ok := s.Map.Layer(src.Name)
		if !ok {
			continue
		}
		name := src.Name
		w.cancels = append(w.cancels, c.OnChange(func() {
			w.mu.Lock()
			w.layers[name] = struct{}{}
			w.mu.Unlock()
			w.mark(changeLayers)
		}))
	}
	return w
}

func (w *watcher) mark(c change) {
	w.mu.Lock()
	w.pending |= c
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// take returns and clears everything recorded since the last call.
func (w *watcher) take() (change, engine.ViewState, []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.pending
	w.pending = 0
	var layers []string
	for name := range w.layers {
		layers = append(layers, name)
	}
	clear(w.layers)
	return c, w.view, layers
}

func (w *watcher) close() {
	for _, cancel := range w.cancels {
		cancel()
	}
}
