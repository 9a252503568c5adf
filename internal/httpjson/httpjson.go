// Package httpjson writes JSON HTTP responses.
package httpjson

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response messages shared across handlers.
const (
	MsgAuthRequired     = "Authentication required"
	MsgNotFound         = "Not found"
	MsgResourceNotFound = "Resource not found"
	MsgCreateFailed     = "Error creating resource"
	MsgInvalidBody      = "Invalid request body"
	MsgInvalidField     = "Invalid field name"
	MsgFileTooLarge     = "File too large"
	MsgInternal         = "Internal server error"
)

// messageResponse is the body of every error response.
type messageResponse struct {
	Message string `json:"message"`
}

// Write encodes v as the response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "status", status, "error", err)
	}
}

// Message writes {"message": msg} with the given status.
func Message(w http.ResponseWriter, status int, msg string) {
	Write(w, status, messageResponse{Message: msg})
}

// EmptyList writes 200 with an empty JSON array.
func EmptyList(w http.ResponseWriter) {
	Write(w, http.StatusOK, []struct{}{})
}
