// Package shared holds the response helpers every handler uses.
package shared

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "jagga/pkg/domain-errors"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
}

// WriteError maps a coded domain error onto an HTTP status and a stable
// error body. Uncoded errors surface as a generic 500; the reason string is
// withheld so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)

	body := errorBody{Error: string(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.Reason = de.Reason
		}
	}
	WriteJSON(w, status, body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeInvalidTransition, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeSubmissionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
