// Package server exposes the index over a local HTTP API: similarity
// queries, rebuild triggers, run history, and a websocket feed of
// scheduler events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/semlink/semlink/internal/history"
	"github.com/semlink/semlink/internal/index"
	"github.com/semlink/semlink/internal/scheduler"
)

// Config holds server configuration.
type Config struct {
	Port     int
	TopK     int  // default result count for related queries
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server serves the semlink HTTP API.
type Server struct {
	cfg        Config
	store      *index.Store
	ranker     *index.Ranker
	builder    *index.Builder
	sched      *scheduler.Scheduler
	hist       *history.DB
	hub        *Hub
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all dependencies. hist may be nil when run
// history is not kept.
func New(cfg Config, store *index.Store, ranker *index.Ranker, builder *index.Builder, sched *scheduler.Scheduler, hist *history.DB) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		ranker:  ranker,
		builder: builder,
		sched:   sched,
		hist:    hist,
		hub:     NewHub(),
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/related/*", s.handleRelated)
	r.Post("/api/rebuild", s.handleRebuild)
	r.Post("/api/reindex/*", s.handleReindex)
	r.Get("/api/history", s.handleHistory)
	r.Get("/api/stats", s.handleStats)
	r.Get("/ws", s.hub.handleWebSocket)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Hub returns the event hub; wire it to the scheduler with
// scheduler.WithEventFunc(hub.Publish).
func (s *Server) Hub() *Hub { return s.hub }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("semlink server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
