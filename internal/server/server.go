// Package server wires the review service: the feature backend, session
// store, REST API, review page and static assets.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/redis/go-redis/v9"

	"github.com/joeblew999/plat-polymer/internal/api"
	"github.com/joeblew999/plat-polymer/internal/api/pointslines"
	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/db"
	"github.com/joeblew999/plat-polymer/internal/humastar"
	"github.com/joeblew999/plat-polymer/internal/logger"
	"github.com/joeblew999/plat-polymer/internal/metrics"
	"github.com/joeblew999/plat-polymer/internal/review"
	"github.com/joeblew999/plat-polymer/internal/service"
	"github.com/joeblew999/plat-polymer/internal/store"
	"github.com/joeblew999/plat-polymer/internal/templates"
	"github.com/joeblew999/plat-polymer/pkg/linesclient"
	"github.com/joeblew999/plat-polymer/web"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // serve templates and static files from disk instead of the embedded copy

	// BackendURL selects a remote feature service. Empty uses the local
	// DuckDB store under DataDir.
	BackendURL   string
	BackendToken string

	// RedisAddr enables session snapshots. Empty keeps sessions in memory only.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL   time.Duration
	AutoRecenter bool
	MaxPasses    int
}

// Server is the polymer HTTP server.
type Server struct {
	config   Config
	log      *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	links    *humastar.Graph
	db       *sql.DB
	redis    *redis.Client
	sessions *review.MemoryStore
	services *api.Services
	renderer *templates.Renderer
	assets   fs.FS
	static   fs.FS
}

// New creates a new polymer server.
func New(cfg Config) (*Server, error) {
	log := logger.L()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-polymer API", api.Version)
	humaConfig.Info.Description = "Review service for points and lines extracted from geological maps."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	links := humastar.NewGraph("/health")
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:  cfg,
		log:     log,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		links:   links,
	}

	services := &api.Services{
		Source: service.NewSourceService(cfg.DataDir),
		Cog:    service.NewCogService(cfg.DataDir),
		Bus:    service.NewEventBus(),
	}

	if cfg.BackendURL == "" {
		conn, err := db.Open(db.Config{DataDir: cfg.DataDir})
		if err != nil {
			return nil, err
		}
		st, err := store.New(context.Background(), conn, log)
		if err != nil {
			conn.Close()
			return nil, err
		}
		s.db = conn
		services.Store = st
		services.Backend = backend.Instrument(st, log)
		log.Info("backend_local", "data_dir", cfg.DataDir)
	} else {
		var opts []linesclient.Option
		if cfg.BackendToken != "" {
			opts = append(opts, linesclient.WithToken(cfg.BackendToken))
		}
		services.Backend = backend.Instrument(linesclient.New(cfg.BackendURL, opts...), log)
		log.Info("backend_remote", "url", cfg.BackendURL)
	}

	var snaps review.Snapshotter
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rc.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Warn("redis_unavailable", "addr", cfg.RedisAddr, "err", err)
			rc.Close()
		} else {
			s.redis = rc
			snaps = review.NewRedisSnapshots(rc, "polymer:session:", cfg.SessionTTL)
			log.Info("session_snapshots", "addr", cfg.RedisAddr)
		}
	}
	s.sessions = review.NewMemoryStore(snaps, log)
	services.Sessions = s.sessions
	s.services = services

	assets := fs.FS(web.FS)
	if cfg.WebDir != "" {
		assets = os.DirFS(cfg.WebDir)
	}
	renderer, err := templates.New(assets)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}
	s.renderer = renderer
	s.assets = assets
	if s.static, err = fs.Sub(assets, "static"); err != nil {
		s.Close()
		return nil, err
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

// Run evicts idle sessions until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.sessions.RunEvictor(ctx, time.Minute, s.config.SessionTTL)
}

// Close closes server resources.
func (s *Server) Close() error {
	var err error
	if s.redis != nil {
		err = s.redis.Close()
	}
	if s.db != nil {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) routes() {
	// REST API: every Register* method on the handler.
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services, s.log))

	// Review page SSE routes using Huma + Datastar SDK
	ctrl := review.NewController(s.services.Backend, s.sessions, s.services.Bus, review.Config{
		AutoRecenter: s.config.AutoRecenter,
		MaxPasses:    s.config.MaxPasses,
	}, s.log)
	page := pointslines.NewHandler(ctrl, s.sessions, s.services.Bus, s.services.Cog, s.renderer, s.log)
	page.RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI)

	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(s.static)))
	s.mux.Handle("/cogs/", http.StripPrefix("/cogs/", s.handleCogs(s.services.Cog.CogsDir())))
	s.mux.Handle("GET /points-lines/{cog_id}", s.reloading(http.HandlerFunc(page.Page)))
	s.mux.HandleFunc("/", s.handleRoot)
}

// reloading re-parses templates before each page load when they are served
// from a web directory, so edits show up without a restart.
func (s *Server) reloading(next http.Handler) http.Handler {
	if s.config.WebDir == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.renderer.Reload(s.assets); err != nil {
			s.log.Error("template_reload_error", "err", err)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Entry() {
		w.Header().Add("Link", link.String())
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"service":"plat-polymer","status":"running","version":%q}`+"\n", api.Version)
}

// handleCogs serves COG files with the CORS and range headers GeoTIFF
// readers need.
func (s *Server) handleCogs(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		files.ServeHTTP(w, r)
	})
}
