package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"procurement/internal/ai"
	"procurement/internal/core"

	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Stage     string            `json:"stage,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps core error kinds onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error(), RequestID: requestIDFromContext(r.Context())}

	var (
		ve  *core.ValidationError
		pwe *core.PartialWriteError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status, resp.Code, resp.Fields = http.StatusBadRequest, "VALIDATION_ERROR", ve.Fields
	case errors.Is(err, core.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, core.ErrInvalidTransition):
		status, resp.Code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, core.ErrConcurrencyConflict):
		status, resp.Code = http.StatusConflict, "CONCURRENCY_CONFLICT"
	case errors.Is(err, core.ErrUnauthorized):
		status, resp.Code = http.StatusForbidden, "FORBIDDEN"
	case errors.As(err, &pwe):
		resp.Code, resp.Stage = "PARTIAL_WRITE", pwe.Stage
	case errors.Is(err, core.ErrStorageUnavailable):
		status, resp.Code = http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"
	case errors.Is(err, ai.ErrAIUnavailable):
		status, resp.Code = http.StatusServiceUnavailable, "AI_UNAVAILABLE"
	default:
		resp.Code = "INTERNAL_ERROR"
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", resp.RequestID).
			Str("path", r.URL.Path).
			Str("code", resp.Code).
			Msg("request failed")
		if resp.Code == "INTERNAL_ERROR" {
			resp.Error = "internal server error"
		}
	}
	writeErrorResponse(w, status, resp)
}
