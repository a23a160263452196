package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string           `json:"error"`
	Fields []core.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		logRejected(r, err, log.ErrorTypeValidation)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: ve.Errors})
	case errors.Is(err, core.ErrValidation):
		logRejected(r, err, log.ErrorTypeValidation)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, core.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, core.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, core.ErrNotFound):
		logRejected(r, err, log.ErrorTypeNotFound)
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrConflict):
		logRejected(r, err, log.ErrorTypeConflict)
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().
				WithError(err).
				WithErrorType(log.ErrorTypeInternal).
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
				ToSlice()...)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func logRejected(r *http.Request, err error, errorType string) {
	log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
		log.NewFields().
			WithError(err).
			WithErrorType(errorType).
			ToSlice()...)
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return core.NewValidationError("body", "unexpected data after JSON object")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, core.NewValidationError(name, "must be a UUID")
	}
	return id, nil
}

// queryMonth reads ?month=YYYY-MM, defaulting to the current month.
func (s *Server) queryMonth(r *http.Request) (core.Month, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return core.MonthOf(core.DateOf(s.now())), nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return core.Month{}, core.NewValidationError("month", "must be YYYY-MM")
	}
	return m, nil
}
