// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/mcronin4/scrappers-cup/internal/app"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
	"github.com/mcronin4/scrappers-cup/internal/domain/types"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CreateCompetitor(ctx context.Context, in service.CompetitorInput) (model.Competitor, error)
	SetCompetitorActive(ctx context.Context, id string, active bool) (model.Competitor, error)

	RecordContest(ctx context.Context, in service.ContestInput) (model.ContestRecord, rebuild.Result, error)
	UpdateContest(ctx context.Context, id string, score model.Score) (model.ContestRecord, rebuild.Result, error)
	RecordManualAdjustment(ctx context.Context, in service.AdjustmentInput) (model.Event, rebuild.Result, error)
	DeleteEvent(ctx context.Context, id string) (rebuild.Result, error)

	GetActiveLeaderboard(ctx context.Context) ([]types.Entry, error)
	Roster(ctx context.Context) ([]types.Entry, error)
	Timeline(ctx context.Context) ([]model.Event, error)

	RebuildAll(ctx context.Context) (rebuild.Result, error)
	Normalize(ctx context.Context) (int, error)

	SeenAndRecord(ctx context.Context, key string) bool
	Unrecord(ctx context.Context, key string)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the ladder API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	competitorsHandler *CompetitorsHandler
	contestsHandler    *ContestsHandler
	adjustmentsHandler *AdjustmentsHandler
	eventsHandler      *EventsHandler
	maintenanceHandler *MaintenanceHandler

	auth *authenticator
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := handlerBase{
		deps:         deps,
		schemas:      mustCompileSchemas(),
		maxBodyBytes: cfg.maxBodyBytes,
		logger:       cfg.logger,
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: &LeaderboardHandler{handlerBase: h},
		competitorsHandler: &CompetitorsHandler{handlerBase: h},
		contestsHandler:    &ContestsHandler{handlerBase: h},
		adjustmentsHandler: &AdjustmentsHandler{handlerBase: h},
		eventsHandler:      &EventsHandler{handlerBase: h},
		maintenanceHandler: &MaintenanceHandler{handlerBase: h},
		auth:               newAuthenticator(cfg.jwtSecret, cfg.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	write := s.auth.middleware

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /roster", MetricsMiddleware(s.leaderboardHandler.HandleGetRoster, "roster"))
	mux.HandleFunc("GET /events", MetricsMiddleware(s.eventsHandler.HandleListEvents, "events"))

	mux.HandleFunc("POST /competitors", MetricsMiddleware(write(s.competitorsHandler.HandleCreate), "competitors"))
	mux.HandleFunc("PATCH /competitors/{id}", MetricsMiddleware(write(s.competitorsHandler.HandleUpdate), "competitor"))
	mux.HandleFunc("POST /contests", MetricsMiddleware(write(s.contestsHandler.HandleRecord), "contests"))
	mux.HandleFunc("PUT /contests/{id}", MetricsMiddleware(write(s.contestsHandler.HandleEdit), "contest"))
	mux.HandleFunc("POST /adjustments", MetricsMiddleware(write(s.adjustmentsHandler.HandleRecord), "adjustments"))
	mux.HandleFunc("DELETE /events/{id}", MetricsMiddleware(write(s.eventsHandler.HandleDelete), "event"))
	mux.HandleFunc("POST /rebuild", MetricsMiddleware(write(s.maintenanceHandler.HandleRebuild), "rebuild"))
	mux.HandleFunc("POST /normalize", MetricsMiddleware(write(s.maintenanceHandler.HandleNormalize), "normalize"))
}

// handlerBase is embedded by every business handler.
type handlerBase struct {
	deps         Dependencies
	schemas      schemaSet
	maxBodyBytes int64
	logger       logger.Logger
}

// decode validates the request body against schema and decodes it into dst,
// answering 400 on failure. It reports whether the handler may continue.
func (h handlerBase) decode(w http.ResponseWriter, r *http.Request, op, schema string, dst any) bool {
	if err := h.schemas.decode(w, r, schema, h.maxBodyBytes, dst); err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return false
	}
	return true
}

// fail logs err and writes the matching error response.
func (h handlerBase) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.Error(err),
		)
	} else {
		h.logger.Debug(r.Context(), "request rejected",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps an error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrInvalidRank):
		return http.StatusBadRequest, "invalid_rank"
	case errors.Is(err, model.ErrCompetitorNotFound):
		return http.StatusNotFound, "competitor_not_found"
	case errors.Is(err, model.ErrContestNotFound):
		return http.StatusNotFound, "contest_not_found"
	case errors.Is(err, model.ErrEventNotFound):
		return http.StatusNotFound, "event_not_found"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, model.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// statusClientClosedRequest is the de facto status for a request the client abandoned.
const statusClientClosedRequest = 499

// idempotencyKey returns the namespaced Idempotency-Key header, or "" when absent.
func idempotencyKey(r *http.Request, namespace string) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		return ""
	}
	return namespace + ":" + key
}
