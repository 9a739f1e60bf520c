package httpx

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON body of every error response. Content carries the
// content hint of a denied constraint when one was configured.
type APIError struct {
	Error   string `json:"error"`
	Content string `json:"content,omitempty"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, APIError{Error: msg})
}

// WriteDenied answers a failed authorization check. Denials are never cached.
func WriteDenied(w http.ResponseWriter, code int, content string) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, code, APIError{Error: http.StatusText(code), Content: content})
}
