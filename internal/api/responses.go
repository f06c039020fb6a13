package api

import (
	"encoding/json"
	"net/http"

	"github.com/meetmate/meetmate-backend/internal/transcript"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteTranscriptError reports a transcript failure in the body only. The
// status stays 200; clients tell success from failure by the body shape.
func WriteTranscriptError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if k := transcript.KindOf(err); k != 0 {
		resp.Kind = k.String()
	}
	WriteJSON(w, http.StatusOK, resp)
}
