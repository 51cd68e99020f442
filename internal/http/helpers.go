package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"budget/internal/core"
	applog "budget/internal/log"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	case core.IsNotFound(err):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case core.IsConstraintViolation(err):
		return http.StatusConflict, applog.ErrorTypeConflict
	case core.IsInsufficientFunds(err):
		return http.StatusUnprocessableEntity, applog.ErrorTypeInsufficientFunds
	case core.IsConnectivity(err):
		return http.StatusServiceUnavailable, applog.ErrorTypeDatabase
	default:
		return http.StatusInternalServerError, applog.ErrorTypeInternal
	}
}

// writeError logs err and writes it as JSON. Internal errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := statusFor(err)
	logger := applog.FromContext(r.Context())

	body := errorResponse{Error: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "error", err, applog.FieldErrorType, errType)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	} else {
		logger.WarnContext(r.Context(), "Request rejected", "error", err, applog.FieldErrorType, errType)
	}
	writeJSON(w, status, body)
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError("id", errInvalidID)
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter.
func queryID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, core.NewValidationError(key, errInvalidID)
	}
	return &id, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, core.NewValidationError("limit", errInvalidLimit)
	}
	return n, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
