// Package server wires the HTTP surface: the streaming agent protocol, the
// JSON inspection API, the live-run websocket, and the middleware stack.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	agentapi "github.com/lumenos/lumen/internal/api/agent"
	v1 "github.com/lumenos/lumen/internal/api/v1"
	"github.com/lumenos/lumen/internal/api/ws"
	"github.com/lumenos/lumen/internal/config"
	"github.com/lumenos/lumen/internal/llm"
	"github.com/lumenos/lumen/internal/server/middleware"
	"github.com/lumenos/lumen/internal/session"
	"github.com/lumenos/lumen/internal/store/postgres"
	redisstore "github.com/lumenos/lumen/internal/store/redis"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	sessions   *session.Store
	store      *postgres.Store    // nil when the run archive is not configured
	pubsub     *redisstore.PubSub // nil when the event mirror is not configured
	wsHub      *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. store and pubsub may be nil;
// the corresponding routes and sinks are then simply absent.
func New(ctx context.Context, cfg *config.Config, provider llm.Provider, store *postgres.Store, pubsub *redisstore.PubSub) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	sessions := session.NewStore(cfg.Agent.SessionTTL)

	var sinks []agentapi.Sink
	if store != nil {
		sinks = append(sinks, agentapi.NewArchiveSink(store.RunLogs()))
	}
	if pubsub != nil {
		sinks = append(sinks, agentapi.NewMirrorSink(pubsub))
	}

	s := &Server{
		router:   router,
		sessions: sessions,
		store:    store,
		pubsub:   pubsub,
		cfg:      cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Streaming protocol endpoints.
	agentHandler := agentapi.NewHandler(sessions, provider, cfg.Agent, sinks...)
	router.Route("/api/agent", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 10, 20))
		agentHandler.Routes(r)
	})

	// JSON inspection API.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 50, 100))

		apiConfig := huma.DefaultConfig("Lumen API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, sessions, store)
	})

	// Live run watching, only meaningful with the event mirror present.
	if pubsub != nil {
		s.wsHub = ws.NewHub(pubsub)
		router.Route("/ws", func(r chi.Router) {
			registerWSRoutes(r, s.wsHub)
		})
	}

	// Health check.
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Sessions exposes the in-memory session store, mainly for tests.
func (s *Server) Sessions() *session.Store { return s.sessions }

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func registerAPIRoutes(api huma.API, sessions *session.Store, store *postgres.Store) {
	v1.RegisterSessionRoutes(api, sessions)
	if store != nil {
		v1.RegisterRunRoutes(api, store.RunLogs())
	}
}
