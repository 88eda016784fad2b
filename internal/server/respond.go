package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

// errorResponse is the error payload shape for every endpoint.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps an error from the orchestration layer onto an HTTP status
// and writes the error payload. Upstream failures keep the upstream body as
// details; provider rate limits and auth failures pass their status through.
func WriteError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	details := ""

	var upstream *shared.UpstreamError
	if errors.As(err, &upstream) {
		details = upstream.Body
	}

	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		status = http.StatusUnauthorized
		message = "Not authenticated"
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrRateLimited):
		status = http.StatusTooManyRequests
		message = "Rate limited by upstream service"
	case errors.Is(err, shared.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, shared.ErrNoResults):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrNoSuggestion):
		status = http.StatusInternalServerError
		message = "Failed to generate suggestions"
	case upstream != nil:
		status = http.StatusInternalServerError
		message = "Upstream request failed"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}

	WriteJSON(w, status, errorResponse{Error: message, Details: details})
}
