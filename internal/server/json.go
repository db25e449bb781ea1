package server

import (
	"encoding/json"
	"net/http"

	"github.com/ayangquest/questapi/internal/quest"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error  string             `json:"error"`
	Fields []quest.FieldError `json:"fields,omitempty"`
}

const maxJSONBody = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeFieldErrors(w http.ResponseWriter, status int, msg string, fields []quest.FieldError) {
	writeJSON(w, status, ErrorResponse{Error: msg, Fields: fields})
}
