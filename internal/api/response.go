// internal/api/response.go
package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const maxRequestBodyBytes = 1 << 16

// envelope is the uniform JSON body of every /api response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
	Stats   any    `json:"stats,omitempty"`
}

type tokensResponse struct {
	Success   bool     `json:"success"`
	Data      any      `json:"data"`
	Total     int      `json:"total"`
	Source    string   `json:"source"`
	IsReal    bool     `json:"isReal"`
	Sources   []string `json:"sources"`
	Timestamp string   `json:"timestamp"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, envelope{Success: false, Error: msg})
}
