package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/TuringFantasy/simple-dedupe/config"
	"github.com/TuringFantasy/simple-dedupe/duplicates"
	"github.com/TuringFantasy/simple-dedupe/logging"
	"github.com/TuringFantasy/simple-dedupe/types"
)

// UserDirectory is the user lookup the handlers need
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]types.User, error)
	FindUser(ctx context.Context, id string) (*types.User, error)
}

// MatchIndex is the cached match table the handlers need
type MatchIndex interface {
	LoadOrBuild(ctx context.Context) (types.MatchTable, error)
	Peek(ctx context.Context) (types.MatchTable, error)
	State() string
}

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server

	users    UserDirectory
	index    MatchIndex
	resolver *duplicates.Resolver
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, users UserDirectory, index MatchIndex, resolver *duplicates.Resolver) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:   cfg,
		router:   r,
		users:    users,
		index:    index,
		resolver: resolver,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(CORS(cfg.Server.CORSOrigins))

	s.setupRoutes()

	// No write timeout: the first /duplicates call may run a full index build
	s.httpServer = &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logging.LogInfo("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.LogInfo("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
