package handlers

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/serisow/coalmind/chart"
	"github.com/serisow/coalmind/chatbot"
	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/vector_store"
)

type Asker interface {
	Ask(ctx context.Context, question string) (chatbot.Answer, error)
}

type ChartQuerier interface {
	Query(ctx context.Context, ds *chart.Dataset, question string) generation.Result
}

type ChatHandler struct {
	chatbot    Asker
	plotter    ChartQuerier
	datasetDir string
	logger     *slog.Logger
}

func NewChatHandler(bot Asker, plotter ChartQuerier, datasetDir string, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chatbot: bot, plotter: plotter, datasetDir: datasetDir, logger: logger}
}

// Chat answers from the knowledge base, or produces a chart config when the
// question asks for a visualization and a dataset is available.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}

	route := chatbot.Route(req.Query)
	if route == chatbot.RoutePlotter && h.plotter != nil {
		ds, err := h.dataset("")
		if err == nil {
			res := h.plotter.Query(r.Context(), ds, req.Query)
			body := resultPayload(res, "chart")
			body["route"] = route
			body["dataset"] = ds.Name
			writeJSON(w, StatusCode(res), body)
			return
		}
		h.logger.Warn("No dataset for visualization, answering as text", slog.String("error", err.Error()))
		route = chatbot.RouteHelper
	}

	answer, err := h.chatbot.Ask(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("Chatbot failed", slog.String("error", err.Error()))
		if errors.Is(err, chatbot.ErrEmptyQuestion) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, vector_store.ErrIndexNotLoaded) || errors.Is(err, vector_store.ErrIndexNotFound) {
			writeRetrievalError(w, err)
			return
		}
		writeJSONError(w, "language model unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"route":   route,
		"answer":  answer.Text,
		"sources": answer.Sources,
	})
}

func (h *ChatHandler) Chart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query   string `json:"query"`
		Dataset string `json:"dataset"`
	}
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}
	if h.plotter == nil {
		writeJSONError(w, "charting is not configured", http.StatusServiceUnavailable)
		return
	}

	ds, err := h.dataset(req.Dataset)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chart.ErrNoDataset) || errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		writeJSONError(w, err.Error(), status)
		return
	}

	res := h.plotter.Query(r.Context(), ds, req.Query)
	body := resultPayload(res, "chart")
	body["dataset"] = ds.Name
	writeJSON(w, StatusCode(res), body)
}

// dataset loads name from the dataset directory, or the newest one.
func (h *ChatHandler) dataset(name string) (*chart.Dataset, error) {
	if name == "" {
		return chart.LoadLatest(h.datasetDir)
	}
	return chart.LoadCSV(filepath.Join(h.datasetDir, filepath.Base(name)))
}
