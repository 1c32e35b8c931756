package handler

import (
	"encoding/json"
	"net/http"
)

type httpStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ServeHTTP answers GET /health with 200 when Ready passes and 503 with the failing check otherwise.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, code := httpStatus{Status: "ok"}, http.StatusOK
	if err := s.Ready(r.Context()); err != nil {
		body, code = httpStatus{Status: "unavailable", Error: err.Error()}, http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
