package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router is a chi mux with request logging and a few registration helpers
type Router struct {
	mux    *chi.Mux
	logger *slog.Logger
}

func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{mux: chi.NewRouter(), logger: logger}
	r.mux.Use(middleware.RequestID)
	r.mux.Use(RequestLogger(logger))
	r.mux.Use(middleware.Recoverer)
	return r
}

// RequestLogger logs one line per request with its status and duration
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

			next.ServeHTTP(ww, req)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(req.Context(), level, "request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(req.Context()),
			)
		})
	}
}

// --- Register paths ---
func (r *Router) GET(path string, handler HandlerFunc)    { r.mux.Get(path, http.HandlerFunc(handler)) }
func (r *Router) POST(path string, handler HandlerFunc)   { r.mux.Post(path, http.HandlerFunc(handler)) }
func (r *Router) PUT(path string, handler HandlerFunc)    { r.mux.Put(path, http.HandlerFunc(handler)) }
func (r *Router) PATCH(path string, handler HandlerFunc)  { r.mux.Patch(path, http.HandlerFunc(handler)) }
func (r *Router) DELETE(path string, handler HandlerFunc) { r.mux.Delete(path, http.HandlerFunc(handler)) }

// Handle mounts an http.Handler for every method on pattern
func (r *Router) Handle(pattern string, h http.Handler) { r.mux.Handle(pattern, h) }

// Use appends middleware; it must be called before routes are registered
func (r *Router) Use(mw ...func(http.Handler) http.Handler) { r.mux.Use(mw...) }

// Route mounts a sub-router under pattern
func (r *Router) Route(pattern string, fn func(chi.Router)) { r.mux.Route(pattern, fn) }

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) { r.mux.ServeHTTP(w, req) }

// Start serves on srv.Addr until ctx is cancelled, then shuts down within
// shutdownTimeout
func (r *Router) Start(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	srv.Handler = r
	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server started", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	r.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}
