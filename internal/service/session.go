package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-kart/internal/controller"
	"github.com/joeblew999/plat-kart/internal/engine"
	"github.com/joeblew999/plat-kart/internal/geoloc"
	"github.com/joeblew999/plat-kart/internal/metrics"
)

// Session is one open map page: its engine, interaction controller and the
// relay carrying the browser's geolocation.
type Session struct {
	ID      string
	Created time.Time

	Map        *engine.Map
	Controller *controller.Controller
	Relay      *geoloc.Relay

	lastSeen atomic.Int64
	cancels  []func()
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.Controller.Close()
	s.Map.Close()
}

// SessionInfo summarizes a session for listings.
type SessionInfo struct {
	ID       string    `json:"id" doc:"Session identifier"`
	Created  time.Time `json:"created" doc:"Creation time"`
	LastSeen time.Time `json:"lastSeen" doc:"Last request time"`
	Header   string    `json:"header" doc:"Current header text"`
	Roster   int       `json:"roster" doc:"Number of municipalities loaded"`
	Tracking bool      `json:"tracking" doc:"Whether geolocation tracking is on"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:       s.ID,
		Created:  s.Created,
		LastSeen: s.LastSeen(),
		Header:   s.Controller.Header(),
		Roster:   len(s.Controller.Roster()),
		Tracking: s.Relay.Tracking(),
	}
}

// SessionConfig configures new sessions.
type SessionConfig struct {
	Center     orb.Point
	Zoom       float64
	Loader     *engine.Loader
	Controller controller.Options

	// TTL is how long an unused session lives. Zero disables expiry.
	TTL time.Duration
}

// SessionRegistry creates, finds and expires sessions.
type SessionRegistry struct {
	cfg    SessionConfig
	layers *LayerService
	tracks *TrackService
	bus    *EventBus
	log    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates a registry. tracks and bus may be nil.
func NewSessionRegistry(cfg SessionConfig, layers *LayerService, tracks *TrackService, bus *EventBus, logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Loader == nil {
		cfg.Loader = engine.NewLoader("")
	}
	if cfg.Controller.Logger == nil {
		cfg.Controller.Logger = logger
	}
	return &SessionRegistry{
		cfg:      cfg,
		layers:   layers,
		tracks:   tracks,
		bus:      bus,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session over the current layer catalogue and starts loading
// its layers in the background. The loads outlive ctx's cancellation.
func (r *SessionRegistry) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	log := r.log.With("session", id)

	m, err := engine.New(engine.Config{
		Center:  r.cfg.Center,
		Zoom:    r.cfg.Zoom,
		Sources: r.layers.Sources(),
		Loader:  r.cfg.Loader,
		Logger:  log,
		OnLoad:  recordLayerLoad,
	})
	if err != nil {
		return nil, fmt.Errorf("creating map: %w", err)
	}

	relay := geoloc.NewRelay(log)
	opts := r.cfg.Controller
	opts.Logger = log
	ctrl := controller.New(controller.Deps{
		Regions:        m.Regions(),
		Municipalities: m.Municipalities(),
		View:           m.View(),
		Marker:         m.User(),
		Locator:        relay,
	}, opts)

	s := &Session{
		ID:         id,
		Created:    time.Now(),
		Map:        m,
		Controller: ctrl,
		Relay:      relay,
	}
	s.Touch()

	s.cancels = append(s.cancels,
		ctrl.OnRoster(func(entries []controller.RosterEntry) {
			metrics.RosterSize.Observe(float64(len(entries)))
		}),
		ctrl.OnUserPosition(func(p geoloc.Position) {
			metrics.PositionUpdatesTotal.Inc()
			if r.tracks == nil {
				return
			}
			if err := r.tracks.Record(context.Background(), id, p); err != nil {
				log.Warn("track_record_error", "err", err)
			}
		}),
	)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	metrics.SessionsActive.Inc()
	r.publish("created", id)
	log.Info("session_created", "layers", len(m.Sources()))

	m.Load(context.WithoutCancel(ctx))
	return s, nil
}

// Get returns a session and marks it used.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	s.Touch()
	return s, nil
}

// Delete closes and removes a session.
func (r *SessionRegistry) Delete(id string) error {
	s, ok := r.remove(id)
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	s.close()
	r.publish("deleted", id)
	r.log.Info("session_deleted", "session", id)
	return nil
}

// List returns all sessions, oldest first.
func (r *SessionRegistry) List() []SessionInfo {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, len(all))
	for i, s := range all {
		infos[i] = s.Info()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Created.Before(infos[j].Created) })
	return infos
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions unused since before now-TTL and returns how many
// were closed.
func (r *SessionRegistry) Sweep(now time.Time) int {
	if r.cfg.TTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.cfg.TTL)

	var expired []string
	r.mu.RLock()
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range expired {
		s, ok := r.remove(id)
		if !ok {
			continue
		}
		s.close()
		r.publish("expired", id)
		r.log.Info("session_expired", "session", id, "idle", now.Sub(s.LastSeen()).Round(time.Second))
		n++
	}
	return n
}

// Run sweeps expired sessions until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context) {
	if r.cfg.TTL <= 0 {
		return
	}
	interval := r.cfg.TTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Close closes every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for id, s := range all {
		s.close()
		metrics.SessionsActive.Dec()
		if r.tracks != nil {
			r.tracks.Forget(id)
		}
	}
}

func (r *SessionRegistry) remove(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		metrics.SessionsActive.Dec()
		if r.tracks != nil {
			r.tracks.Forget(id)
		}
	}
	return s, ok
}

func (r *SessionRegistry) publish(action, id string) {
	if r.bus != nil {
		r.bus.Publish(Event{Resource: "sessions", Action: action, ID: id})
	}
}

func recordLayerLoad(layer string, _ int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LayerLoadsTotal.WithLabelValues(layer, status).Inc()
}
