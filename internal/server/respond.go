package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody is the wire error envelope shared by every endpoint.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Wire error codes. The front-end switches on these, so they are part of
// the API contract.
const (
	codeInvalidJSON       = "invalid_json"
	codeNoInput           = "no_input"
	codeInvalidVector     = "invalid_vector"
	codeDimensionMismatch = "dimension_mismatch"
	codeInvalidIntent     = "invalid_intent"
	codeMissingCorrection = "missing_correct_intent"
	codeInvalidSource     = "invalid_source"
	codeInvalidSnapshot   = "invalid_snapshot"
	codeRateLimited       = "rate_limited"
	codeInternal          = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}
