package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/incentive-trips/backend/internal/domain"
)

// ErrorDetail is the machine-readable code plus a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
// Deletions is only set for deletion guard rejections.
//
// DebugStack is only set in debug mode. It is the handler goroutine's stack
// when the response was written, not where the error came from.
type ErrorResponse struct {
	Error      ErrorDetail             `json:"error"`
	Deletions  []domain.DetailDeletion `json:"deletions,omitempty"`
	DebugStack string                  `json:"debugStack,omitempty"`
}

func errorBody(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// validationBody returns an ErrorResponse for a domain validation failure.
// The message is extracted from the wrapped domain.ErrValidation error.
func validationBody(err error) ErrorResponse {
	return errorBody("validation_error", unwrapMessage(err))
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.TripService.Create: validation error: name is required" → "name is required"
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	prefix := domain.ErrValidation.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 && len(msg) > i+len(prefix) {
		return msg[i+len(prefix):]
	}
	return msg
}

// writeError maps a service error onto a status code and body. notFound is
// the message used for domain.ErrNotFound, since only the handler knows what
// was being looked up.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var guard *domain.DeletionGuardError
	switch {
	case errors.As(err, &guard):
		body := errorBody("deletion_guard", "update rejected: it would remove existing details; send the complete details list or delete explicitly")
		body.Deletions = guard.Deletions
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody(err))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not_found", notFound))
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict", "trip was modified concurrently; reload and retry"))
	default:
		s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body := errorBody("internal_error", "internal server error")
		if s.debug {
			body.Error.Message = err.Error()
			body.DebugStack = string(debug.Stack())
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

// writeDecodeError answers a body that could not be read or parsed.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request_too_large", "request body too large"))
		return
	}
	writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "invalid request body: "+err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into v. An empty body is an error.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("body is required")
		}
		return err
	}
	return nil
}
