// Package web serves the quiz session and the A-Z table over a JSON HTTP API.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/verte-zerg/azdrill/internal/quiz"
	"github.com/verte-zerg/azdrill/internal/stats"
)

const shutdownTimeout = 5 * time.Second

// Catalog lists the worksheets of the item store.
type Catalog interface {
	Sheet() string
	Sheets() ([]string, error)
}

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Items       quiz.ItemStore
	Catalog     Catalog
	Sink        quiz.ResultsSink
	Results     stats.ResultSource
	Options     quiz.Options
	Logger      *slog.Logger
	CORSOrigins []string
}

// Server holds a single quiz session shared by all clients.
type Server struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	session *quiz.Session
}

// NewServer constructs a server. A nil logger discards output.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{deps: deps, logger: logger}
}

// Handler returns the router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	if len(s.deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.deps.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/", s.startSession)
			r.Delete("/", s.endSession)
			r.Post("/stage", s.selectStage)
			r.Post("/advance", s.advance)
			r.Post("/answer", s.answer)
			r.Get("/review", s.review)
		})
		r.Get("/abc", s.listValues)
		r.Put("/abc/{key}", s.setValues)
		r.Delete("/abc/{key}", s.clearValues)
		r.Get("/results", s.listResults)
		r.Get("/sheets", s.listSheets)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
