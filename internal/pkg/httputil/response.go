package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ceramiquejlepage/contact-api/internal/pkg/logger"
)

// Response is the envelope returned by every endpoint.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope with the given status. The message is
// user-facing; internal error detail belongs in logs, never here.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Response{Success: false, Message: message})
}

// FailWithDetails writes a failure envelope carrying structured details
// (e.g. the list of missing required fields).
func FailWithDetails(w http.ResponseWriter, status int, message string, details interface{}) {
	JSON(w, status, Response{Success: false, Message: message, Details: details})
}
