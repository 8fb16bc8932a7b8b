// Package api exposes the HTTP interface for the harvester service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/apply"
	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/config"
	"github.com/JakeFAU/jobboard-harvester/internal/metrics"
)

// Feed limits for GET /v1/jobs.
const (
	DefaultJobFeedLimit = 50
	MaxJobFeedLimit     = 500
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRunTimeout     = 30 * time.Minute
	readinessTimeout      = 3 * time.Second
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (board.RunSummary, error)
}

// Submitter applies a user to a job.
type Submitter interface {
	Submit(ctx context.Context, userID string, jobID int64) apply.Result
}

// Pinger is a downstream dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps groups what the handlers call into. Nil runners and submitter disable their routes.
type Deps struct {
	Discovery Runner
	Scrape    Runner
	Jobs      board.JobStore
	Apply     Submitter
	// Readiness maps a dependency name to its health check.
	Readiness map[string]Pinger
	Logger    *zap.Logger
}

// Options tunes the router.
type Options struct {
	Auth           config.AuthConfig
	RequestTimeout time.Duration
	RunTimeout     time.Duration
}

// Server wires HTTP handlers to the pipeline and stores.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	s := &Server{deps: deps, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.With(timeoutMiddleware(opts.RequestTimeout)).Group(func(r chi.Router) {
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			if opts.Auth.Enabled {
				r.Use(apiKeyMiddleware(opts.Auth.APIKey))
			}
			r.Use(timeoutMiddleware(opts.RunTimeout))
			r.Post("/discovery", s.runStage(deps.Discovery, "discovered"))
			r.Post("/scrape", s.runStage(deps.Scrape, "saved"))
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Use(timeoutMiddleware(opts.RequestTimeout))
			r.Get("/", s.listJobs)
			r.Post("/{job_id}/applications", s.submitApplication)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(s.deps.Readiness))
	for name := range s.deps.Readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := s.deps.Readiness[name].Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "checks": checks})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}

type runResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"run_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// runStage runs synchronously and reports the written count under countKey.
func (s *Server) runStage(runner Runner, countKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			writeError(w, http.StatusNotImplemented, "stage not configured")
			return
		}
		summary, err := runner.Run(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				status = http.StatusGatewayTimeout
			case errors.Is(err, board.ErrTransport):
				status = http.StatusBadGateway
			}
			writeJSON(w, status, map[string]any{
				"success": false,
				"run_id":  summary.RunID,
				"error":   err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"run_id":   summary.RunID,
			countKey:   summary.Written,
			"failures": summary.Failures,
		})
	}
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.deps.Jobs.ListJobs(r.Context(), limit)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list jobs")
		return
	}
	if jobs == nil {
		jobs = []board.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func parseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultJobFeedLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > MaxJobFeedLimit {
		limit = MaxJobFeedLimit
	}
	return limit, nil
}

type applicationResponse struct {
	Success bool `json:"success"`
	apply.Result
}

func (s *Server) submitApplication(w http.ResponseWriter, r *http.Request) {
	if s.deps.Apply == nil {
		writeError(w, http.StatusNotImplemented, "applications not configured")
		return
	}
	jobID, err := strconv.ParseInt(chi.URLParam(r, "job_id"), 10, 64)
	if err != nil || jobID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	res := s.deps.Apply.Submit(r.Context(), r.Header.Get("X-User-ID"), jobID)
	writeJSON(w, applicationStatus(res.Outcome), applicationResponse{Success: res.Recorded(), Result: res})
}

func applicationStatus(o apply.Outcome) int {
	switch o {
	case apply.OutcomeSubmitted:
		return http.StatusCreated
	case apply.OutcomePartial:
		return http.StatusAccepted
	case apply.OutcomeUnauthenticated:
		return http.StatusUnauthorized
	case apply.OutcomeNoProfile:
		return http.StatusForbidden
	case apply.OutcomeNoCredits:
		return http.StatusPaymentRequired
	case apply.OutcomeAlreadyApplied:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, runResponse{Success: false, Error: msg})
}
