package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody mirrors web.ErrorResponse. It is duplicated here because web
// imports this package.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message, action string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   message,
		Message: message,
		Action:  action,
		Code:    code,
	})
}
