package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
	"github.com/desertthunder/evalwatch/internal/tasks"
)

const (
	executeStartedMessage = "Evaluation run execution started successfully"
	tokenExpiredMessage   = "Authentication token has expired. Please refresh your token and try again."
)

// ProgressHandler serves the progress REST API from a [ProgressStore].
type ProgressHandler struct {
	store  ProgressStore
	logger *log.Logger
}

// Register adds the progress routes to r.
func (h *ProgressHandler) Register(r Router) {
	r.Handle(http.MethodGet, "/api/progress/all", http.HandlerFunc(h.all))
	r.Handle(http.MethodGet, "/api/progress/statistics", http.HandlerFunc(h.statistics))
	r.Handle(http.MethodGet, "/api/progress/{runId}", http.HandlerFunc(h.get))
	r.Handle(http.MethodGet, "/api/progress/{runId}/exists", http.HandlerFunc(h.exists))
	r.Handle(http.MethodDelete, "/api/progress/{runId}", http.HandlerFunc(h.remove))
	r.Handle(http.MethodPut, "/api/progress/{runId}/message", http.HandlerFunc(h.updateMessage))
}

func (h *ProgressHandler) get(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	ev, ok := h.store.Get(runID)
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorBody{
			Error:   "Run not found",
			Message: "No progress tracked for run: " + runID,
			RunID:   runID,
		})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *ProgressHandler) all(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.All())
}

func (h *ProgressHandler) statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Statistics())
}

func (h *ProgressHandler) exists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"exists": h.store.Has(r.PathValue("runId"))})
}

func (h *ProgressHandler) remove(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	h.store.Remove(runID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Progress tracking removed for run: " + runID})
}

func (h *ProgressHandler) updateMessage(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message is required"})
		return
	}

	ev, err := h.store.UpdateMessage(runID, body.Message)
	if errors.Is(err, shared.ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, models.ErrorBody{Error: "Run not found", Message: err.Error(), RunID: runID})
		return
	} else if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorBody{Error: "Update failed", Message: err.Error(), RunID: runID})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// ExecuteHandler starts runs on an [Executor] and answers in the execute wire format.
type ExecuteHandler struct {
	executor Executor
	logger   *log.Logger
}

func (h *ExecuteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("runId"))
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorBody{
			Error:   "Invalid run",
			Message: "Run id is required",
		})
		return
	}

	err := h.executor.Start(runID)
	switch {
	case err == nil:
		h.logger.Info("run started", "run", runID)
		writeJSON(w, http.StatusOK, models.ExecuteResponse{
			Success: json.RawMessage("true"),
			Message: executeStartedMessage,
			RunID:   runID,
			Status:  string(models.StatusRunning),
		})
	case errors.Is(err, shared.ErrTokenExpired):
		h.logger.Warn("rejected run with expired token", "run", runID)
		writeJSON(w, http.StatusUnauthorized, models.ErrorBody{
			Error:        "Token Expired",
			Message:      tokenExpiredMessage,
			Type:         models.ErrorTypeTokenExpired,
			Instructions: models.DefaultTokenInstructions,
		})
	case errors.Is(err, tasks.ErrRunActive):
		writeJSON(w, http.StatusConflict, failureBody(runID, err))
	default:
		h.logger.Error("failed to start run", "run", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, failureBody(runID, err))
	}
}

func failureBody(runID string, err error) models.ErrorBody {
	success := false
	return models.ErrorBody{
		Success: &success,
		Error:   "Execution failed",
		Message: fmt.Sprintf("Failed to execute evaluation run: %v", err),
		RunID:   runID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}
