package handlers

import (
	"net/http"
	"runtime"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/interfaces"
)

// SessionStats reports render controller activity
type SessionStats interface {
	ActiveSessions() int64
	TotalSessions() int64
	Engine() string
}

// JobStatuses reports scheduled maintenance jobs
type JobStatuses interface {
	GetAllJobStatuses() map[string]*interfaces.JobStatus
}

type APIHandler struct {
	sessions SessionStats
	jobs     JobStatuses
	logger   arbor.ILogger
}

// NewAPIHandler creates the system endpoints. jobs may be nil.
func NewAPIHandler(sessions SessionStats, jobs JobStatuses, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		sessions: sessions,
		jobs:     jobs,
		logger:   logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, common.VersionInfo())
}

// HealthHandler returns service health and render activity
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	response := map[string]interface{}{
		"status":           "ok",
		"engine":           h.sessions.Engine(),
		"active_sessions":  h.sessions.ActiveSessions(),
		"total_sessions":   h.sessions.TotalSessions(),
		"goroutines":       runtime.NumGoroutine(),
		"background_tasks": common.GetGoroutineCount(),
	}
	if h.jobs != nil {
		response["jobs"] = h.jobs.GetAllJobStatuses()
	}

	WriteJSON(w, http.StatusOK, response)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
