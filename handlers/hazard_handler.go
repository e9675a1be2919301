package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/serisow/coalmind/execution"
	"github.com/serisow/coalmind/generation"
)

type HazardAnalyzer interface {
	Analyze(ctx context.Context, activity, inputInfo string) (generation.Result, error)
}

type HazardHandler struct {
	analyzer   HazardAnalyzer
	executions *execution.Store
	logger     *slog.Logger
}

func NewHazardHandler(analyzer HazardAnalyzer, executions *execution.Store, logger *slog.Logger) *HazardHandler {
	return &HazardHandler{analyzer: analyzer, executions: executions, logger: logger}
}

func (h *HazardHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActivityName string `json:"activity_name"`
		InputInfo    string `json:"input_info"`
		Async        bool   `json:"async"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ActivityName) == "" {
		writeJSONError(w, "activity_name is required", http.StatusBadRequest)
		return
	}

	if req.Async && h.executions != nil {
		id := h.executions.Submit(r.Context(), "hazard_analysis", req.ActivityName, func(ctx context.Context) (any, error) {
			res, err := h.analyzer.Analyze(ctx, req.ActivityName, req.InputInfo)
			if err != nil {
				return nil, err
			}
			payload := resultPayload(res, "result")
			if !res.OK() {
				return payload, errors.New(res.Message())
			}
			return payload, nil
		})
		writeJSON(w, http.StatusAccepted, map[string]string{
			"message":      "Hazard analysis started",
			"execution_id": id,
			"status":       string(execution.StatusStarted),
		})
		return
	}

	res, err := h.analyzer.Analyze(r.Context(), req.ActivityName, req.InputInfo)
	if err != nil {
		h.logger.Error("Hazard analysis failed", slog.String("error", err.Error()))
		writeRetrievalError(w, err)
		return
	}
	writeResult(w, res, "result")
}

func (h *HazardHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if h.executions == nil {
		writeJSONError(w, "Execution not found", http.StatusNotFound)
		return
	}
	exec, ok := h.executions.Get(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "Execution not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}
