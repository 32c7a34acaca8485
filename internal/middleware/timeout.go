package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"techtrack/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds every request under it. The websocket stream must be mounted
// outside, since http.TimeoutHandler cannot be hijacked.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.ErrorResponse{Detail: "Request timed out", Code: "REQUEST_TIMEOUT"})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
