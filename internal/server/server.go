// Package server provides the thin chi-based HTTP front door:
// trigger/correlation/graph/chat endpoints that deserialize requests,
// call into the core packages, and serialize their results. It owns no
// domain logic of its own.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/bus"
	"github.com/stdin/venezuelawatch/internal/llm"
	"github.com/stdin/venezuelawatch/internal/storage"
)

// Config holds everything New needs to wire the router; cmd/pulsed
// assembles one of these after constructing the storage/bus/adapter
// layers.
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Registry  *adapter.Registry
	Publisher *bus.EventPublisher
	Events    *storage.EventStore
	Mentions  *storage.MentionStore
	Entities  *storage.EntityStore
	Narrator  llm.Narrator
}

// Server is the HTTP front door: a chi router plus the narrow set of
// ports its handlers call into.
type Server struct {
	router    *chi.Mux
	http      *http.Server
	log       zerolog.Logger
	registry  *adapter.Registry
	publisher *bus.EventPublisher
	events    *storage.EventStore
	mentions  *storage.MentionStore
	entities  *storage.EntityStore
	narrator  llm.Narrator
}

// New builds a Server, wires its middleware and routes, but does not
// start listening -- call Start for that.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		registry:  cfg.Registry,
		publisher: cfg.Publisher,
		events:    cfg.Events,
		mentions:  cfg.Mentions,
		entities:  cfg.Entities,
		narrator:  cfg.Narrator,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // /chat streams past the default write window
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/trigger", func(r chi.Router) {
		r.Post("/{source}", s.handleTrigger)
	})
	s.router.Get("/adapters/health", s.handleAdaptersHealth)
	s.router.Post("/correlation/compute", s.handleCorrelationCompute)
	s.router.Get("/graph/entities", s.handleGraphEntities)
	s.router.Get("/graph/narrative/{a}/{b}", s.handleGraphNarrative)
	s.router.Post("/chat", s.handleChat)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("server: request")
	})
}

// Start blocks serving HTTP until Shutdown is called or ListenAndServe
// itself fails.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("server: starting")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("server: shutting down")
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already written; nothing left to do but note it.
		_ = err
	}
}
