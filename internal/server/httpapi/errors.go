package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/todokeeper/internal/common"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// statusFor maps a service error onto an HTTP status and the sentinel it
// was classified by.
func statusFor(err error) (int, error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, common.ErrorNotFound
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, common.ErrorValidation
	case errors.Is(err, common.ErrorExportDisabled):
		return http.StatusServiceUnavailable, common.ErrorExportDisabled
	default:
		return http.StatusInternalServerError, common.ErrorInternal
	}
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)

	msg := strings.TrimPrefix(err.Error(), kind.Error()+": ")
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "Internal server error"
	}
	h.sendStatus(w, r, status, msg)
}

func (h *Handler) sendStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		StatusCode: status,
		Message:    msg,
		Error:      http.StatusText(status),
	}); err != nil {
		h.logger.Warn(r.Context(), "writing JSON error response", "error", err, "status", status)
	}
}

// writeJSON encodes value as JSON into w. Encoding failures mean the client
// went away, so they are only logged.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		h.logger.Warn(r.Context(), "writing JSON response", "error", err)
	}
}
