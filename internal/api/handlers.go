// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/monitor"
	"github.com/rovshanmuradov/pumpwatch/internal/poller"
)

const (
	defaultLimit   = 20
	maxLimit       = 100
	// limit+offset stays within aggregator.MaxFetchLimit
	maxOffset      = 400
	monitorSuffix  = "-monitor"
	defaultAction  = "status"
	sourceReal     = "real"
	sourceFallback = "fallback"
)

// parseLimit reads a bounded positive integer query parameter.
func parseLimit(r *http.Request, key string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func parseOffset(r *http.Request) int {
	v, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || v < 0 {
		return 0
	}
	return min(v, maxOffset)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, "limit", defaultLimit, maxLimit)
	offset := parseOffset(r)

	// берём с запасом, offset применяется после агрегации
	res, err := s.aggregator.FetchAggregatedTokens(r.Context(), limit+offset)
	if err != nil {
		s.logger.Warn("⚠️ Token aggregation failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to fetch tokens",
			Message: err.Error(),
		})
		return
	}

	page := paginate(res.Tokens, offset, limit)
	source := sourceFallback
	if res.IsReal {
		source = sourceReal
	}
	s.writeJSON(w, http.StatusOK, tokensResponse{
		Success:   true,
		Data:      page,
		Total:     len(res.Tokens),
		Source:    source,
		IsReal:    res.IsReal,
		Sources:   res.Sources,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func paginate(tokens []domain.TokenRecord, offset, limit int) []domain.TokenRecord {
	if offset >= len(tokens) {
		return []domain.TokenRecord{}
	}
	end := offset + limit
	if end > len(tokens) {
		end = len(tokens)
	}
	return tokens[offset:end]
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	mint := r.PathValue("mint")
	if _, err := solana.PublicKeyFromBase58(mint); err != nil && !strings.HasPrefix(mint, "fallback-") {
		s.writeError(w, http.StatusNotFound, "Token not found")
		return
	}

	if tok, ok := s.aggregator.Latest().Find(mint); ok {
		s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: tok})
		return
	}
	if s.registry != nil {
		if tok, ok := s.registry.FindToken(mint); ok {
			s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: tok})
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "Token not found")
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Analysis disabled")
		return
	}
	limit := parseLimit(r, "limit", 10, 50)

	res, err := s.aggregator.FetchAggregatedTokens(r.Context(), limit)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to fetch tokens",
			Message: err.Error(),
		})
		return
	}

	type analyzed struct {
		Token     domain.TokenRecord `json:"token"`
		Breakdown any                `json:"breakdown"`
		Error     string             `json:"error,omitempty"`
	}
	results := s.analyzer.AnalyzeBatch(r.Context(), res.Tokens)
	out := make([]analyzed, 0, len(results))
	for _, result := range results {
		item := analyzed{Token: result.Token, Breakdown: result.Breakdown}
		if result.Err != nil {
			item.Error = result.Err.Error()
		}
		out = append(out, item)
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Version:     s.info.Version,
		Environment: s.info.Environment,
		Timestamp:   s.now().UTC().Format(time.RFC3339),
	})
}

type monitorRequest struct {
	Action string `json:"action"`
}

// monitorAction reads the action from the query, then from a JSON body.
func monitorAction(r *http.Request) string {
	if action := r.URL.Query().Get("action"); action != "" {
		return action
	}
	if r.Method == http.MethodPost && r.Body != nil {
		var req monitorRequest
		body := io.LimitReader(r.Body, maxRequestBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err == nil && req.Action != "" {
			return req.Action
		}
	}
	return defaultAction
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	segment := r.PathValue("monitor")
	name, ok := strings.CutSuffix(segment, monitorSuffix)
	if !ok || s.registry == nil || !s.registry.Known(name) {
		s.writeError(w, http.StatusNotFound, "Monitor not found")
		return
	}

	action := monitorAction(r)
	switch action {
	case "start", "stop", "status", "tokens", "clear":
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid action")
		return
	}

	m, err := s.registry.Create(name)
	if err != nil {
		s.logger.Error("❌ Failed to create monitor", zap.String("monitor", name), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to create monitor",
			Message: err.Error(),
		})
		return
	}

	switch action {
	case "start":
		s.startMonitor(w, r, m)
	case "stop":
		if err := m.Stop(); err != nil {
			s.writeJSON(w, http.StatusInternalServerError, envelope{
				Success: false,
				Error:   "Failed to stop monitor",
				Message: err.Error(),
			})
			return
		}
		s.writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Monitor stopped", Stats: m.Status()})
	case "status":
		s.writeJSON(w, http.StatusOK, envelope{Success: true, Stats: m.Status()})
	case "tokens":
		s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: m.Tokens(), Stats: m.Status()})
	case "clear":
		m.Clear()
		s.writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Detected tokens cleared"})
	}
}

func (s *Server) startMonitor(w http.ResponseWriter, r *http.Request, m monitor.Monitor) {
	err := m.Start(r.Context())
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Monitor started", Stats: m.Status()})
	case errors.Is(err, poller.ErrAlreadyRunning):
		s.writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Monitor already running", Stats: m.Status()})
	default:
		s.logger.Error("❌ Failed to start monitor", zap.String("monitor", m.Name()), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   "Failed to start monitor",
			Message: err.Error(),
		})
	}
}
