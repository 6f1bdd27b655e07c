package web

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeLoadError renders a relay fetch failure as a retryable error; the
// frontend shows a "failed to load" state with a retry affordance
func writeLoadError(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadGateway, errResponse{Error: "failed to load", Retryable: true})
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errResponse{Error: "not found"})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errResponse{Error: msg})
}
