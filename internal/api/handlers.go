// Package api provides the HTTP surface of the relay.
//
// The six overlay routes keep the bare JSON contract the overlay expects;
// errors and the additional routes use the APIResponse envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexbotov/smashrelay/internal/audit"
	"github.com/alexbotov/smashrelay/internal/auth"
	"github.com/alexbotov/smashrelay/internal/control"
	"github.com/alexbotov/smashrelay/internal/domain"
	"github.com/alexbotov/smashrelay/internal/limits"
	"github.com/alexbotov/smashrelay/internal/score"
	"github.com/alexbotov/smashrelay/internal/store"
	"github.com/alexbotov/smashrelay/pkg/smashpros"
)

// Version is reported by the server info endpoint
const Version = "1.0.0"

// UpstreamStatusHeader carries the smashpros.gg status on relayed responses
const UpstreamStatusHeader = "X-Upstream-Status"

// Handler contains all HTTP handlers
type Handler struct {
	upstream *smashpros.Client
	score    *score.Service
	control  *control.Service
	audit    *audit.Service
	auth     *auth.Service
	limits   *limits.Service
	hub      *Hub
	logger   *slog.Logger

	strictParams bool
	unsubscribe  func()
}

// Options tunes handler behavior
type Options struct {
	// StrictParams rejects relay requests that lack their identifier
	StrictParams bool
	// Limits bounds increment amounts; nil accepts every amount
	Limits *limits.Service
}

// New creates a new API handler
func New(upstream *smashpros.Client, scoreSvc *score.Service, controlSvc *control.Service, auditSvc *audit.Service, authSvc *auth.Service, logger *slog.Logger, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	if opts.Limits == nil {
		opts.Limits = limits.Unlimited()
	}

	h := &Handler{
		upstream:     upstream,
		score:        scoreSvc,
		control:      controlSvc,
		audit:        auditSvc,
		auth:         authSvc,
		limits:       opts.Limits,
		hub:          NewHub(logger),
		logger:       logger,
		strictParams: opts.StrictParams,
	}
	h.unsubscribe = scoreSvc.Subscribe(h.hub.BroadcastScore)
	return h
}

// Close stops score broadcasts and disconnects live feed clients
func (h *Handler) Close() {
	h.unsubscribe()
	h.hub.Close()
}

// Response helpers

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondRaw writes body unchanged as JSON
func respondRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	// Check X-Real-IP header
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	// Fall back to RemoteAddr
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// eventOptions tags audit events with request metadata
func eventOptions(r *http.Request) []audit.EventOption {
	return []audit.EventOption{
		audit.WithIP(getClientIP(r)),
		audit.WithRequestID(RequestIDFromContext(r.Context())),
	}
}

// === Health & Info ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, scoreStatus := "healthy", "ok"
	if _, err := h.score.Get(r.Context()); err != nil {
		// Still 200: the relay routes keep working without a score record
		status, scoreStatus = "degraded", err.Error()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"score_store":  scoreStatus,
		"upstream":     h.upstream.BaseURL(),
		"live_clients": h.hub.ClientCount(),
	})
}

// ServerInfo handles GET /
func (h *Handler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":          "smashrelay",
		"version":       Version,
		"description":   "smashpros.gg relay and local win/loss counter",
		"auth":          h.auth.Enabled(),
		"locked":        h.control.IsLocked(),
		"max_increment": h.limits.MaxIncrement(),
	})
}

// === Upstream relay ===

// PlayerData handles GET /PlayerData?player_tag=
func (h *Handler) PlayerData(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.identifier(w, r, "player_tag")
	if !ok {
		return
	}
	h.relay(w, r, func(ctx context.Context) (*smashpros.Response, error) {
		return h.upstream.PlayerData(ctx, tag)
	})
}

// PlayerWinsLosses handles GET /PlayerWinsLosses?player_id=
func (h *Handler) PlayerWinsLosses(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identifier(w, r, "player_id")
	if !ok {
		return
	}
	h.relay(w, r, func(ctx context.Context) (*smashpros.Response, error) {
		return h.upstream.PlayerWinsLosses(ctx, id)
	})
}

// identifier reads a relay query parameter. A missing value is passed
// through as empty unless strict mode is on.
func (h *Handler) identifier(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	value := r.URL.Query().Get(param)
	if value == "" && h.strictParams {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMETER", "Query parameter "+param+" is required")
		return "", false
	}
	return value, true
}

func (h *Handler) relay(w http.ResponseWriter, r *http.Request, call func(ctx context.Context) (*smashpros.Response, error)) {
	resp, err := call(r.Context())
	if err != nil {
		var apiErr *smashpros.Error
		if errors.As(err, &apiErr) {
			h.logger.WarnContext(r.Context(), "upstream call failed",
				"kind", apiErr.Kind, "url", apiErr.URL, "status", apiErr.StatusCode, "error", apiErr.Err,
				"request_id", RequestIDFromContext(r.Context()))
			switch apiErr.Kind {
			case smashpros.KindInvalidResponse:
				respondError(w, http.StatusBadGateway, "UPSTREAM_INVALID_RESPONSE", "Upstream returned a non-JSON response")
			default:
				respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Upstream is unavailable")
			}
			return
		}
		h.logger.ErrorContext(r.Context(), "relay failed", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	// Always 200, as the overlay expects; the upstream status goes in a header
	w.Header().Set(UpstreamStatusHeader, strconv.Itoa(resp.StatusCode))
	if !resp.OK() {
		h.logger.InfoContext(r.Context(), "upstream returned an error status",
			"status", resp.StatusCode, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
	}
	respondRaw(w, http.StatusOK, resp.Body)
}

// === Local score ===

// LocalWinsLosses handles GET /LocalWinsLosses
func (h *Handler) LocalWinsLosses(w http.ResponseWriter, r *http.Request) {
	current, err := h.score.Get(r.Context())
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(current)
}

// IncrementLocalWins handles GET /IncrementLocalWins?increment_by=
func (h *Handler) IncrementLocalWins(w http.ResponseWriter, r *http.Request) {
	h.increment(w, r, h.score.IncrementWins)
}

// IncrementLocalLosses handles GET /IncrementLocalLosses?increment_by=
func (h *Handler) IncrementLocalLosses(w http.ResponseWriter, r *http.Request) {
	h.increment(w, r, h.score.IncrementLosses)
}

type incrementFunc func(ctx context.Context, amount int64, opts ...audit.EventOption) (domain.LocalScore, error)

func (h *Handler) increment(w http.ResponseWriter, r *http.Request, inc incrementFunc) {
	if !h.writable(w) {
		return
	}

	amount, err := score.ParseIncrement(r.URL.Query().Get("increment_by"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INCREMENT", "increment_by must be an integer")
		return
	}
	if err := h.limits.CheckIncrement(amount); err != nil {
		respondError(w, http.StatusBadRequest, "INCREMENT_OUT_OF_RANGE", err.Error())
		return
	}

	if _, err := inc(r.Context(), amount, eventOptions(r)...); err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ResetLocalWinsLosses handles GET /ResetLocalWinsLosses
func (h *Handler) ResetLocalWinsLosses(w http.ResponseWriter, r *http.Request) {
	if !h.writable(w) {
		return
	}

	if _, err := h.score.Reset(r.Context(), eventOptions(r)...); err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// writable rejects the request while the score is locked
func (h *Handler) writable(w http.ResponseWriter) bool {
	if err := h.control.CheckWritable(); err != nil {
		respondError(w, http.StatusLocked, "SCORE_LOCKED", "Score changes are locked")
		return false
	}
	return true
}

func (h *Handler) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "score operation failed",
		"path", r.URL.Path, "error", err, "request_id", RequestIDFromContext(r.Context()))

	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusInternalServerError, "SCORE_NOT_FOUND", "Score record does not exist")
	case errors.Is(err, store.ErrCorrupt):
		respondError(w, http.StatusInternalServerError, "SCORE_CORRUPT", "Score record is not valid JSON")
	default:
		respondError(w, http.StatusInternalServerError, "SCORE_ERROR", "Failed to access score record")
	}
}

// GetScoreEvents handles GET /events?type=&limit=
func (h *Handler) GetScoreEvents(w http.ResponseWriter, r *http.Request) {
	filter := &audit.EventFilter{
		Type:  r.URL.Query().Get("type"),
		Field: domain.ScoreField(r.URL.Query().Get("field")),
		Limit: 50,
	}
	if filter.Field != "" && !filter.Field.Valid() {
		respondError(w, http.StatusBadRequest, "INVALID_FIELD", "field must be wins or losses")
		return
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			filter.Limit = n
		}
	}

	events, err := h.audit.GetEvents(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list score events", "error", err)
		respondError(w, http.StatusInternalServerError, "EVENTS_ERROR", "Failed to get score events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

// === Score lock ===

// LockStatus handles GET /control/status
func (h *Handler) LockStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.control.Status())
}

// LockScore handles /control/lock?reason=
func (h *Handler) LockScore(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Lock(r.Context(), r.URL.Query().Get("reason"), eventOptions(r)...); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to lock score", "error", err)
		respondError(w, http.StatusInternalServerError, "LOCK_FAILED", "Failed to lock score")
		return
	}
	respondJSON(w, http.StatusOK, h.control.Status())
}

// UnlockScore handles /control/unlock
func (h *Handler) UnlockScore(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Unlock(r.Context(), eventOptions(r)...); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to unlock score", "error", err)
		respondError(w, http.StatusInternalServerError, "UNLOCK_FAILED", "Failed to unlock score")
		return
	}
	respondJSON(w, http.StatusOK, h.control.Status())
}

// === Admin tokens ===

// IssueToken handles POST /auth/token
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	issued, err := h.auth.IssueToken(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAuthDisabled):
			respondError(w, http.StatusNotFound, "AUTH_DISABLED", "Admin auth is not configured")
		case errors.Is(err, auth.ErrInvalidPassword):
			h.logger.WarnContext(r.Context(), "admin login failed", "ip", getClientIP(r))
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid password")
		default:
			respondError(w, http.StatusInternalServerError, "TOKEN_FAILED", "Failed to issue token")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      issued.Token,
		"expires_at": issued.ExpiresAt.Format(time.RFC3339),
	})
}
