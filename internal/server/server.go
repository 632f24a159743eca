// Package server serves the published monitor artifacts over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/monitor-noticias/internal/hash/sha256"
	"github.com/JakeFAU/monitor-noticias/internal/metrics"
	"github.com/JakeFAU/monitor-noticias/internal/publish"
	"github.com/JakeFAU/monitor-noticias/internal/storage/local"
)

// DefaultPort is the port the web mode listens on.
const DefaultPort = 5000

const requestTimeout = 30 * time.Second

var validSlug = regexp.MustCompile(`^[a-z0-9_]+$`)

// ArtifactReader reads previously published artifacts.
type ArtifactReader interface {
	ReadObject(ctx context.Context, path string) ([]byte, error)
}

// Server wires HTTP handlers to the artifact store.
type Server struct {
	router chi.Router
	reader ArtifactReader
	files  publish.Config
	hasher *sha256.Hasher
	logger *zap.Logger
}

// New constructs a Server with middleware and routes.
func New(reader ArtifactReader, files publish.Config, logger *zap.Logger) *Server {
	if files.FeedFile == "" {
		files.FeedFile = publish.DefaultFeedFile
	}
	if files.HTMLFile == "" {
		files.HTMLFile = publish.DefaultHTMLFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{reader: reader, files: files, hasher: sha256.New(), logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/", s.index)
	r.Get("/noticias.json", s.feed)
	r.Get("/noticias_{slug}.json", s.sourceFeed)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, s.files.HTMLFile, "text/html; charset=utf-8")
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, s.files.FeedFile, "application/json; charset=utf-8")
}

func (s *Server) sourceFeed(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !validSlug.MatchString(slug) {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	s.serveArtifact(w, r, fmt.Sprintf("noticias_%s.json", slug), "application/json; charset=utf-8")
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, path, contentType string) {
	data, err := s.reader.ReadObject(r.Context(), path)
	if errors.Is(err, local.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artifact not published yet")
		return
	}
	if err != nil {
		s.logger.Error("Failed to read artifact", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}
	etag := s.hasher.ETag(data)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("Failed to write response", zap.String("path", path), zap.Error(err))
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready once the first feed has been published.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.reader.ReadObject(r.Context(), s.files.FeedFile); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first extraction"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// LocalIP returns the address other machines on the LAN can reach this host
// on. No packet is sent: dialing UDP only selects the outbound interface.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer func() { _ = conn.Close() }()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
