// Package api exposes the HTTP interface for the discovery service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/config"
	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/metrics"
	"github.com/toolradar/toolradar/internal/pipeline"
	"github.com/toolradar/toolradar/internal/progress"
	"github.com/toolradar/toolradar/internal/radar"
)

const (
	defaultToolLimit = 50
	maxToolLimit     = 500
	defaultSinceDays = 30
	runBudget        = 15 * time.Minute
)

// RunTrigger starts a discovery run.
type RunTrigger interface {
	Run(ctx context.Context, opts pipeline.Options) (pipeline.RunReport, error)
}

// Server wires HTTP handlers to the runner and store.
type Server struct {
	router  chi.Router
	runner  RunTrigger
	store   radar.Store
	tracker *progress.Tracker
	cfg     config.Config
	logger  *zap.Logger
	running atomic.Bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner RunTrigger, store radar.Store, tracker *progress.Tracker, cfg config.Config, logger *zap.Logger) *Server {
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	s := &Server{
		runner:  runner,
		store:   store,
		tracker: tracker,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/runs", s.triggerRun)
		r.Get("/runs/latest", s.latestRun)
		r.Get("/runs/current", s.currentRun)
		r.Get("/tools", s.listTools)
		r.Get("/tools/category/{category}", s.listByCategory)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type runRequest struct {
	Sources        []string `json:"sources"`
	LimitPerSource int      `json:"limit_per_source"`
	Force          bool     `json:"force"`
}

// triggerRun starts a run in the background and returns its ID. Only
// one run may be in flight at a time.
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.LimitPerSource < 0 {
		writeError(s.logger, w, http.StatusBadRequest, "limit_per_source must be >= 0")
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		writeError(s.logger, w, http.StatusConflict, "a run is already in progress")
		return
	}

	runID := uuid.NewString()
	opts := pipeline.Options{
		RunID:          runID,
		Sources:        req.Sources,
		LimitPerSource: req.LimitPerSource,
		Force:          req.Force,
	}
	go func() {
		defer s.running.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), runBudget)
		defer cancel()
		if _, err := s.runner.Run(ctx, opts); err != nil {
			s.logger.Warn("triggered run failed",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}()

	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	log, err := s.store.LatestRunLog(r.Context())
	if err != nil {
		if errors.Is(err, radar.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "no runs recorded")
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load run log")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, runLogResponse(log))
}

func (s *Server) currentRun(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	tools, err := s.store.Latest(r.Context(), limit, offset)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load tools")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"tools": toolsResponse(tools)})
}

func (s *Server) listByCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := matchCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(s.logger, w, http.StatusBadRequest, "unknown category")
		return
	}
	limit, _, err := parseLimitOffset(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	days := defaultSinceDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 {
			writeError(s.logger, w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	tools, err := s.store.ByCategory(r.Context(), category, since, limit)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load tools")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"category": category,
		"tools":    toolsResponse(tools),
	})
}

// matchCategory resolves a path segment to a category, ignoring case.
func matchCategory(raw string) (radar.Category, bool) {
	for _, c := range radar.Categories() {
		if strings.EqualFold(raw, string(c)) {
			return c, true
		}
	}
	return "", false
}

func parseLimitOffset(r *http.Request) (int, int, error) {
	limit := defaultToolLimit
	offset := 0
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxToolLimit {
			return 0, 0, fmt.Errorf("limit must be between 1 and %d", maxToolLimit)
		}
		limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("offset must be >= 0")
		}
		offset = n
	}
	return limit, offset, nil
}

type toolPayload struct {
	ID          int64     `json:"id"`
	ToolName    string    `json:"tool_name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Votes       int       `json:"votes"`
	Link        string    `json:"link"`
	Trend       string    `json:"trend_signal"`
	PainPoint   string    `json:"pain_point"`
	Ideas       []string  `json:"micro_saas_ideas"`
	Date        time.Time `json:"date"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

func toolsResponse(tools []radar.StoredTool) []toolPayload {
	out := make([]toolPayload, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolPayload{
			ID:          t.ID,
			ToolName:    t.ToolName,
			Description: t.Description,
			Category:    string(t.Category),
			Votes:       t.Votes,
			Link:        t.Link,
			Trend:       string(t.Trend),
			PainPoint:   t.PainPoint,
			Ideas:       t.Ideas,
			Date:        t.Date,
			Source:      t.Source,
			CreatedAt:   t.CreatedAt,
		})
	}
	return out
}

type runLogPayload struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Collected  int       `json:"collected"`
	Analyzed   int       `json:"analyzed"`
	Saved      int       `json:"saved"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

func runLogResponse(log radar.RunLog) runLogPayload {
	return runLogPayload{
		ID:         log.ID,
		StartedAt:  log.StartedAt,
		FinishedAt: log.FinishedAt,
		Collected:  log.Collected,
		Analyzed:   log.Analyzed,
		Saved:      log.Saved,
		Duplicates: log.Duplicates,
		Failed:     log.Failed,
		Status:     string(log.Status),
		Error:      log.Error,
	}
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
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(s.logger, w, http.StatusInternalServerError, "internal server error")
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

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(zap.NewNop(), w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
