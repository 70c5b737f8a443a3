package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescope/internal/analysis"
	"github.com/JakeFAU/sitescope/internal/crawler"
	"github.com/JakeFAU/sitescope/internal/hash/sha256"
	"github.com/JakeFAU/sitescope/internal/id/uuid"
	"github.com/JakeFAU/sitescope/internal/logging"
	"github.com/JakeFAU/sitescope/internal/metrics"
	"github.com/JakeFAU/sitescope/internal/storage"
)

const (
	requestTimeout = 30 * time.Second
	readyTimeout   = 2 * time.Second
)

// AnalysisReader returns the newest analysis for every site.
type AnalysisReader interface {
	Latest(ctx context.Context) ([]analysis.Result, error)
}

// Server wires HTTP handlers to the document store.
type Server struct {
	router   chi.Router
	store    crawler.DocumentStore
	analyses AnalysisReader
	ids      *uuid.Generator
	hasher   *sha256.Hasher
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. analyses may be
// nil, in which case /v1/analyses answers 501.
func NewServer(store crawler.DocumentStore, analyses AnalysisReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		analyses: analyses,
		ids:      uuid.New(),
		hasher:   sha256.New(),
		logger:   logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sites", s.listSites)
		r.Get("/sites/{origin}", s.getSite)
		r.Get("/sites/{origin}/documents", s.getDocuments)
		r.Get("/analyses", s.listAnalyses)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if _, err := s.store.List(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("document store not ready", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type siteListResponse struct {
	Sites []string `json:"sites"`
	Count int      `json:"count"`
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	origins, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, r, "list sites", err)
		return
	}
	if origins == nil {
		origins = []string{}
	}
	writeJSON(w, http.StatusOK, siteListResponse{Sites: origins, Count: len(origins)})
}

type siteResponse struct {
	Origin string   `json:"origin"`
	URLs   []string `json:"urls"`
	Count  int      `json:"count"`
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	origin, docs, ok := s.loadSite(w, r)
	if !ok {
		return
	}
	urls := docs.Keys()
	writeJSON(w, http.StatusOK, siteResponse{Origin: origin, URLs: urls, Count: len(urls)})
}

func (s *Server) getDocuments(w http.ResponseWriter, r *http.Request) {
	_, docs, ok := s.loadSite(w, r)
	if !ok {
		return
	}
	body, err := storage.Encode(docs)
	if err != nil {
		s.internalError(w, r, "encode documents", err)
		return
	}
	digest, err := s.hasher.Hash(body)
	if err != nil {
		s.internalError(w, r, "hash documents", err)
		return
	}
	etag := `"` + digest + `"`
	w.Header().Set("ETag", etag)
	if s.notModified(r.Header.Get("If-None-Match"), body) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logging.FromContext(r.Context()).Warn("write documents failed", zap.Error(err))
	}
}

// notModified reports whether any entity tag in header matches body.
// Weak tags and bare hex digests are accepted.
func (s *Server) notModified(header string, body []byte) bool {
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}
		tag = strings.Trim(strings.TrimPrefix(tag, "W/"), `"`)
		if tag != "" && s.hasher.Verify(body, tag) {
			return true
		}
	}
	return false
}

func (s *Server) loadSite(w http.ResponseWriter, r *http.Request) (string, crawler.DocumentSet, bool) {
	origin := strings.ToLower(chi.URLParam(r, "origin"))
	if err := storage.ValidateOrigin(origin); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	docs, err := s.store.Get(r.Context(), origin)
	switch {
	case errors.Is(err, crawler.ErrSiteNotFound):
		writeError(w, http.StatusNotFound, "site not found")
		return "", nil, false
	case err != nil:
		s.internalError(w, r, "load site", err)
		return "", nil, false
	}
	return origin, docs, true
}

type analysisResponse struct {
	RunID         string    `json:"run_id"`
	Site          string    `json:"site"`
	Analysis      string    `json:"analysis"`
	Model         string    `json:"model"`
	InputTokens   int       `json:"input_tokens"`
	InputHash     string    `json:"input_hash"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.analyses == nil {
		writeError(w, http.StatusNotImplemented, "analysis store not configured")
		return
	}
	results, err := s.analyses.Latest(r.Context())
	if err != nil {
		s.internalError(w, r, "list analyses", err)
		return
	}
	out := make([]analysisResponse, 0, len(results))
	for _, res := range results {
		out = append(out, analysisResponse{
			RunID:         res.RunID,
			Site:          res.Site,
			Analysis:      res.Analysis,
			Model:         res.Model,
			InputTokens:   res.InputTokens,
			InputHash:     res.InputHash,
			DocumentCount: res.DocumentCount,
			CreatedAt:     res.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": out, "count": len(out)})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.FromContext(r.Context()).Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if !uuid.Valid(reqID) {
			reqID = s.ids.MustNewID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := logging.WithLogger(r.Context(), s.logger.With(zap.String("request_id", reqID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context()).Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.FromContext(r.Context()).Error("panic recovered", zap.Any("error", rec))
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

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
