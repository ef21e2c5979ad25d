// Package server wires the kart HTTP surface: the Huma REST API, the
// Datastar map endpoints, the map page, static files and metrics.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"
	"golang.org/x/text/language"

	"github.com/joeblew999/plat-kart/internal/api"
	"github.com/joeblew999/plat-kart/internal/api/mapui"
	"github.com/joeblew999/plat-kart/internal/controller"
	"github.com/joeblew999/plat-kart/internal/db"
	"github.com/joeblew999/plat-kart/internal/engine"
	"github.com/joeblew999/plat-kart/internal/humastar"
	"github.com/joeblew999/plat-kart/internal/logger"
	"github.com/joeblew999/plat-kart/internal/metrics"
	"github.com/joeblew999/plat-kart/internal/service"
	"github.com/joeblew999/plat-kart/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // web/ directory: templates, static files and geojson

	// Layers seed the catalogue when the data directory has none.
	Layers []service.LayerConfig

	Center     orb.Point
	Zoom       float64
	Controller controller.Options
	SessionTTL time.Duration

	// DBExtensions are DuckDB extensions loaded for ad-hoc queries.
	DBExtensions []string

	Logger *slog.Logger
}

// Server is the kart HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	bus      *service.EventBus
	renderer *templates.Renderer
	links    *humastar.Links
	log      *slog.Logger

	stop context.CancelFunc
}

// New creates the server and its services.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.L()
	}
	log := cfg.Logger
	mux := http.NewServeMux()

	links := humastar.NewLinks()
	humaConfig := huma.DefaultConfig("plat-kart API", "1.0.0")
	humaConfig.Info.Description = "Interactive map of Norwegian counties and municipalities: layer catalogue, map sessions, hover, selection, roster and position tracking."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	bus := service.NewEventBus()
	layers, err := service.NewLayerService(cfg.DataDir, cfg.Layers, bus)
	if err != nil {
		return nil, fmt.Errorf("layer catalogue: %w", err)
	}

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		bus:     bus,
		links:   links,
		log:     log,
	}

	// Position history is optional; the map works without it.
	var tracks *service.TrackService
	conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "kart", Extensions: cfg.DBExtensions})
	if err != nil {
		log.Warn("duckdb_unavailable", "err", err)
	} else if tracks, err = service.NewTrackService(context.Background(), conn); err != nil {
		log.Warn("duckdb_unavailable", "err", err)
		conn.Close()
	} else {
		s.db = conn
	}

	sessions := service.NewSessionRegistry(service.SessionConfig{
		Center:     cfg.Center,
		Zoom:       cfg.Zoom,
		Loader:     engine.NewLoader(cfg.WebDir),
		Controller: cfg.Controller,
		TTL:        cfg.SessionTTL,
	}, layers, tracks, bus, log)

	s.services = &api.Services{
		Layer:    layers,
		Source:   service.NewSourceService(cfg.WebDir),
		Sessions: sessions,
		Tracks:   tracks,
	}

	if cfg.WebDir != "" {
		dir := filepath.Join(cfg.WebDir, "templates")
		r, err := templates.New(dir, filepath.Join(dir, "fragments"))
		if err != nil {
			return nil, fmt.Errorf("loading templates: %w", err)
		}
		s.renderer = r
		log.Debug("templates_loaded", "dir", dir)
	}

	s.routes()
	s.handler = logger.AccessMiddleware(log)(mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the session registry.
func (s *Server) Sessions() *service.SessionRegistry {
	return s.services.Sessions
}

// Start runs background work (the session janitor) until Close.
func (s *Server) Start(ctx context.Context) {
	ctx, s.stop = context.WithCancel(ctx)
	go s.services.Sessions.Run(ctx)
}

// Close stops background work, closes every session and the database.
func (s *Server) Close() error {
	if s.stop != nil {
		s.stop()
	}
	s.services.Sessions.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)
	locale := s.config.Controller.Locale
	if locale == language.Und {
		locale = controller.DefaultLocale
	}
	api.NewInfoHandler(s.config.DataDir, s.db != nil, locale.String()).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	if s.renderer != nil {
		ui := mapui.New(s.services.Sessions, s.services.Layer, s.bus, s.renderer, s.log)
		if ttl := s.config.SessionTTL; ttl > 0 && ttl/4 < mapui.DefaultKeepalive {
			ui.Keepalive = ttl / 4
		}
		ui.RegisterRoutes(s.humaAPI)
		s.mux.HandleFunc("GET /{$}", ui.Page)
	}

	s.links.Build(s.humaAPI, mapui.Tag)

	s.mux.Handle("GET /metrics", metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

		geojsonDir := filepath.Join(s.config.WebDir, "geojson")
		s.mux.Handle("/geojson/", http.StripPrefix("/geojson/", http.FileServer(http.Dir(geojsonDir))))
	}
}
