package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/pagerender/internal/services/bridge"
	"github.com/ternarybob/pagerender/internal/services/render"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteCallError writes a failed channel call, choosing the status from its code
func WriteCallError(w http.ResponseWriter, err error) error {
	var callErr *bridge.Error
	if !errors.As(err, &callErr) {
		callErr = &bridge.Error{Code: bridge.CodeInternal, Message: err.Error()}
	}
	return WriteJSON(w, statusForCode(callErr.Code), map[string]string{
		"status": "error",
		"code":   callErr.Code,
		"error":  callErr.Message,
	})
}

func statusForCode(code string) int {
	switch code {
	case bridge.CodeNotImplemented:
		return http.StatusNotImplemented
	case bridge.CodeInvalidArgs:
		return http.StatusBadRequest
	case string(render.KindTimeout):
		return http.StatusGatewayTimeout
	case string(render.KindLoad):
		return http.StatusBadGateway
	case string(render.KindCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
