// Package server provides HTTP server initialization and lifecycle management
// for the Memory Companion web service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/observability"
	"github.com/scrypster/companion/web/handlers"
)

// Rate limit applied to every request.
const (
	rateLimitPerSecond = 10.0
	rateLimitBurst     = 20
)

// Options are the parts the server is assembled from. Imports and Metrics
// are optional.
type Options struct {
	Config  *config.Config
	API     *handlers.APIHandlers
	Imports *handlers.ImportHandlers
	Hub     *handlers.WebSocketHub
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Server is a running HTTP server.
type Server struct {
	addr string
	done chan struct{}
}

// Addr returns the address being listened on, useful with port 0.
func (s *Server) Addr() string { return s.addr }

// Done is closed once the server has shut down.
func (s *Server) Done() <-chan struct{} { return s.done }

// NewRouter builds the HTTP handler with all middleware and routes.
func NewRouter(opts Options) http.Handler {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(handlers.RequestLogger(logger.Named("http")))
	if opts.Metrics != nil {
		router.Use(handlers.Metrics(opts.Metrics))
	}
	router.Use(handlers.SecurityHeaders)

	limiter := handlers.NewRateLimiter(rateLimitPerSecond, rateLimitBurst)
	router.Use(func(next http.Handler) http.Handler {
		return handlers.RateLimitMiddleware(next, limiter)
	})

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", handlers.Health)
	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	if opts.Hub != nil {
		// Origin validation guards the socket instead of the token.
		router.Method(http.MethodGet, "/ws", opts.Hub)
	}

	api := opts.API
	router.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return handlers.RequireAuth(next, cfg.Security)
		})

		r.Route("/persons", func(r chi.Router) {
			r.Get("/", api.ListPersons)
			r.Post("/", api.CreatePerson)
			r.Get("/{id}", api.GetPerson)
			r.Patch("/{id}", api.UpdatePerson)
			r.Delete("/{id}", api.DeletePerson)
		})

		r.Route("/memories", func(r chi.Router) {
			r.Get("/", api.ListMemories)
			r.Post("/", api.CreateMemory)
			r.Get("/{id}", api.GetMemory)
			r.Patch("/{id}", api.UpdateMemory)
			r.Delete("/{id}", api.DeleteMemory)
			r.Post("/{id}/analyze", api.ReanalyzeMemory)
		})

		r.Post("/analyze", api.Analyze)

		r.Route("/captures", func(r chi.Router) {
			r.Post("/", api.NewCapture)
			r.Get("/{id}", api.GetCapture)
			r.Delete("/{id}", api.DeleteCapture)
			r.Put("/{id}/person", api.SetCapturePerson)
			r.Put("/{id}/text", api.SetCaptureText)
			r.Post("/{id}/analyze", api.AnalyzeCapture)
			r.Put("/{id}/analysis", api.UpdateCaptureAnalysis)
			r.Post("/{id}/save", api.SaveCapture)
			r.Post("/{id}/discard", api.DiscardCapture)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", api.NewConversation)
			r.Get("/{id}", api.GetConversation)
			r.Delete("/{id}", api.DeleteConversation)
			r.Post("/{id}/messages", api.Ask)
			r.Delete("/{id}/messages", api.ClearConversation)
			r.Delete("/{id}/error", api.ClearConversationError)
		})

		r.Get("/search", api.Search)
		r.Get("/stats", api.GetStats)
		r.Get("/config/user", api.GetUserConfig)
		r.Post("/config/user", api.PostUserConfig)

		if opts.Imports != nil {
			r.Post("/import", opts.Imports.PostImport)
			r.Get("/import/{job_id}", opts.Imports.GetImportStatus)
		}
	})

	return router
}

// allowedOrigins returns the configured CORS origins, or the local UI
// origins on the server port.
func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.Server.AllowedOrigins) > 0 {
		return cfg.Server.AllowedOrigins
	}
	return []string{
		fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully and stops the WebSocket hub.
func Start(ctx context.Context, opts Options) (*Server, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           NewRouter(opts),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	if opts.Hub != nil {
		go opts.Hub.Run()
	}

	s := &Server{addr: listener.Addr().String(), done: make(chan struct{})}
	logger.Info("HTTP server listening", zap.String("addr", s.addr))

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()

		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		if opts.Hub != nil {
			opts.Hub.Stop()
		}
		logger.Info("HTTP server stopped")
	}()

	return s, nil
}
