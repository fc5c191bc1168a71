package web

// errors.go maps errors to HTTP responses.
//
// Every error is:
//   - Logged with full technical details and the request id (server-side)
//   - Returned to the client as JSON with a user-friendly message, a
//     suggested action and an error code from core.MapError

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/obfuscator/internal/core"
	"github.com/JonMunkholm/obfuscator/internal/logging"
	"github.com/JonMunkholm/obfuscator/internal/service"
	"github.com/JonMunkholm/obfuscator/internal/storage"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusRule pairs an error kind with its HTTP status. Order matters:
// the first match wins.
type statusRule struct {
	target error
	status int
}

var statusRules = []statusRule{
	{service.ErrInvalidRequest, http.StatusBadRequest},
	{core.ErrNoFields, http.StatusBadRequest},
	{core.ErrUnknownField, http.StatusBadRequest},
	{storage.ErrInvalidLocation, http.StatusBadRequest},
	{storage.ErrUnsupportedScheme, http.StatusBadRequest},
	{storage.ErrNotFound, http.StatusNotFound},
	{storage.ErrAccessDenied, http.StatusForbidden},
	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
	{core.ErrEncoding, http.StatusUnprocessableEntity},
	{core.ErrUnrecognizedFormat, http.StatusUnprocessableEntity},
	{service.ErrTooManyJobs, http.StatusTooManyRequests},
	{storage.ErrConnection, http.StatusBadGateway},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// statusFor returns the HTTP status for err, 500 when nothing matches.
func statusFor(err error) int {
	for _, rule := range statusRules {
		if errors.Is(err, rule.target) {
			return rule.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user-facing JSON form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, r, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
