package handlers

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErrorDetail adds upstream detail alongside the error message.
func writeErrorDetail(w http.ResponseWriter, status int, message, detail string) {
	if detail == "" {
		writeError(w, status, message)
		return
	}
	writeJSON(w, status, map[string]string{"error": message, "detail": detail})
}
