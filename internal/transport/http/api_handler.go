package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"g1-quiz-service/internal/app"
	"g1-quiz-service/internal/domain"
)

// APIHandler exposes the non-streaming progress operations: scoreboard and
// history reads plus the explicit reset actions.
type APIHandler struct {
	progress *app.Progress
	bank     []domain.Question
	logger   *zap.Logger
}

func NewAPIHandler(progress *app.Progress, bank []domain.Question, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{progress: progress, bank: bank, logger: logger}
}

// Register wires the handler's routes onto the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/scoreboard", h.getScoreboard)
	mux.HandleFunc("/scoreboard/reset", h.resetScoreboard)
	mux.HandleFunc("/history", h.getHistory)
	mux.HandleFunc("/history/clear", h.clearHistory)
	mux.HandleFunc("/questions/completed/clear", h.clearCompleted)
	mux.HandleFunc("/questions/notCompleted/reset", h.resetNotCompleted)
}

func (h *APIHandler) getScoreboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.progress.Scoreboard(r.Context()))
}

func (h *APIHandler) resetScoreboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.progress.ResetScoreboard(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.progress.TestHistory(r.Context()))
}

func (h *APIHandler) clearHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.progress.ClearTestHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) clearCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.progress.ClearCompleted(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) resetNotCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.progress.ResetNotCompleted(r.Context(), h.bank)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("write response", zap.Error(err))
	}
}
