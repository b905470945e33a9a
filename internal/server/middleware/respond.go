package middleware

import (
	"encoding/json"
	"net/http"
)

// reject writes a JSON {"error": msg} body with status.
func reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
