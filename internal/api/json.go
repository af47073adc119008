package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"schoolbus/internal/engine"
	"schoolbus/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// errorStatus maps service errors onto HTTP status and problem title.
func errorStatus(err error) (int, string) {
	switch {
	case engine.IsValidation(err):
		return http.StatusBadRequest, "Invalid request"
	case engine.IsDataAccess(err):
		return http.StatusBadGateway, "Route data unavailable"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "Conflict"
	case engine.IsStorage(err):
		return http.StatusServiceUnavailable, "Scenario store unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := errorStatus(err)
	if status >= 500 {
		s.Log.Error("request failed", zapRequest(r, err)...)
	}
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}
