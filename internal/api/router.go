// Package api - Router setup
package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(MethodNotAllowedHandler)

	// Apply global middleware
	r.Use(RecoveryMiddleware(h.logger))
	r.Use(LoggingMiddleware(h.logger))
	r.Use(CORSMiddleware)

	// Public routes
	r.HandleFunc("/", h.ServerInfo).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/events", h.GetScoreEvents).Methods("GET")
	r.HandleFunc("/auth/token", h.IssueToken).Methods("POST", "OPTIONS")

	// Upstream relay
	r.HandleFunc("/PlayerData", h.PlayerData).Methods("GET")
	r.HandleFunc("/PlayerWinsLosses", h.PlayerWinsLosses).Methods("GET")

	// Local score
	r.HandleFunc("/LocalWinsLosses", h.LocalWinsLosses).Methods("GET")

	// Score lock
	r.HandleFunc("/control/status", h.LockStatus).Methods("GET")

	// Live score feed
	r.HandleFunc("/ws/scores", h.HandleScoreFeed).Methods("GET")

	// Mutating routes; OPTIONS lets CORSMiddleware answer preflights
	// for requests carrying an Authorization header
	admin := r.NewRoute().Subrouter()
	admin.Use(h.AdminMiddleware)
	admin.HandleFunc("/IncrementLocalWins", h.IncrementLocalWins).Methods("GET", "OPTIONS")
	admin.HandleFunc("/IncrementLocalLosses", h.IncrementLocalLosses).Methods("GET", "OPTIONS")
	admin.HandleFunc("/ResetLocalWinsLosses", h.ResetLocalWinsLosses).Methods("GET", "OPTIONS")
	admin.HandleFunc("/control/lock", h.LockScore).Methods("GET", "POST", "OPTIONS")
	admin.HandleFunc("/control/unlock", h.UnlockScore).Methods("GET", "POST", "OPTIONS")

	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowedHandler handles 405 errors
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}
