package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kirillm/ads-engine/internal/domain"
	"github.com/kirillm/ads-engine/internal/orchestrator"
	"github.com/kirillm/ads-engine/pkg/utils"
)

// Runner интерфейс запуска прогонов
type Runner interface {
	RunOrchestration(ctx context.Context, userID int64, dryRun bool, trigger string) (*orchestrator.RunResult, error)
}

// RunReader интерфейс чтения журнала прогонов
type RunReader interface {
	RecentRuns(userID int64, limit int) ([]domain.OrchestratorRun, error)
	RunActions(runID string) ([]domain.Action, error)
}

type Server struct {
	logger     *utils.Logger
	runner     Runner
	runs       RunReader
	killSwitch *orchestrator.KillSwitch
	port       int
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type RunRequest struct {
	UserID int64 `json:"user_id"`
	DryRun bool  `json:"dry_run"`
}

// RunSummary итог прогона в ответе API
type RunSummary struct {
	CampaignsCreated int `json:"campaignsCreated"`
	WinnersPromoted  int `json:"winnersPromoted"`
	BudgetsScaled    int `json:"budgetsScaled"`
	AdSetsPaused     int `json:"adsetsPaused"`
	ErrorsCount      int `json:"errorsCount"`
}

func NewServer(logger *utils.Logger, runner Runner, runs RunReader, killSwitch *orchestrator.KillSwitch, port int) *Server {
	return &Server{
		logger:     logger,
		runner:     runner,
		runs:       runs,
		killSwitch: killSwitch,
		port:       port,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("Starting HTTP server on %s", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// Handler собирает маршруты сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/engine/pause", s.handleEnginePause)
	mux.HandleFunc("/engine/resume", s.handleEngineResume)

	return mux
}

// handleHealth - health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stopped, reason, _ := s.killSwitch.Status()
	engine := "running"
	if stopped {
		engine = "stopped"
	}

	health := map[string]interface{}{
		"status":      "healthy",
		"engine":      engine,
		"stop_reason": reason,
		"timestamp":   time.Now().Unix(),
	}

	s.sendSuccess(w, health)
}

// handleRun - trigger an orchestration run for a user
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID <= 0 {
		s.sendError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.runner.RunOrchestration(r.Context(), req.UserID, req.DryRun, domain.RunManual)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyRunning):
			s.sendError(w, "Run already in progress for this user", http.StatusConflict)
		case errors.Is(err, domain.ErrEngineStopped):
			s.sendError(w, "Engine is stopped", http.StatusServiceUnavailable)
		case errors.Is(err, domain.ErrNoCredential), errors.Is(err, domain.ErrCredentialExpired):
			s.sendError(w, fmt.Sprintf("Run failed: %v", err), http.StatusUnprocessableEntity)
		default:
			s.sendError(w, fmt.Sprintf("Run failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	s.sendSuccess(w, map[string]interface{}{
		"run_id":  result.Run.ID,
		"status":  result.Run.Status,
		"dry_run": req.DryRun,
		"summary": RunSummary{
			CampaignsCreated: result.Run.CampaignsCreated,
			WinnersPromoted:  result.Run.WinnersPromoted,
			BudgetsScaled:    result.Run.BudgetsScaled,
			AdSetsPaused:     result.Run.AdSetsPaused,
			ErrorsCount:      result.Run.ErrorsCount,
		},
		"actions": result.Actions,
	})
}

// handleRuns - read the run ledger for a user
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		s.sendError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}
	limit := getQueryParamInt(r, "limit", 20)

	runs, err := s.runs.RecentRuns(userID, limit)
	if err != nil {
		s.sendError(w, fmt.Sprintf("Failed to get runs: %v", err), http.StatusInternalServerError)
		return
	}

	// Полный журнал решений отдаем только для одного прогона
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		actions, err := s.runs.RunActions(runID)
		if err != nil {
			s.sendError(w, fmt.Sprintf("Failed to get run actions: %v", err), http.StatusInternalServerError)
			return
		}
		s.sendSuccess(w, map[string]interface{}{
			"runs":    runs,
			"actions": actions,
		})
		return
	}

	s.sendSuccess(w, map[string]interface{}{
		"runs": runs,
	})
}

// handleEnginePause - stop accepting new runs
func (s *Server) handleEnginePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// Тело опционально
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "paused via API"
	}

	s.killSwitch.Stop(req.Reason)
	s.logger.Warn("⛔ Engine paused: %s", req.Reason)

	s.sendSuccess(w, map[string]interface{}{
		"engine": "stopped",
		"reason": req.Reason,
	})
}

// handleEngineResume - resume accepting runs
func (s *Server) handleEngineResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.killSwitch.Resume()
	s.logger.Info("✅ Engine resumed")

	s.sendSuccess(w, map[string]interface{}{
		"engine": "running",
	})
}

// Helper methods
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{
		Success: true,
		Data:    data,
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
	})
}

// Helper function to parse int query parameter
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
