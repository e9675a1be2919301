package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/serisow/coalmind/form_builder"
	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/services/rag_service"
)

const maxUploadSize = 10 << 20

type FormGenerator interface {
	GenerateForm(ctx context.Context, description string) (generation.Result, error)
	FormFromDocument(ctx context.Context, filename string, data []byte) (generation.Result, error)
}

type FormStore interface {
	Save(ctx context.Context, query, source string, form map[string]any) (form_builder.SavedForm, error)
	Get(ctx context.Context, id string) (form_builder.SavedForm, error)
	List(ctx context.Context, limit int) ([]form_builder.SavedForm, error)
}

type FormHandler struct {
	generator FormGenerator
	store     FormStore
	logger    *slog.Logger
}

// NewFormHandler accepts a nil store, in which case forms are never saved.
func NewFormHandler(generator FormGenerator, store FormStore, logger *slog.Logger) *FormHandler {
	return &FormHandler{generator: generator, store: store, logger: logger}
}

func (h *FormHandler) GenerateForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Save  bool   `json:"save"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}

	res, err := h.generator.GenerateForm(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("Form generation failed", slog.String("error", err.Error()))
		writeRetrievalError(w, err)
		return
	}
	h.respond(w, r, res, req.Query, "query", req.Save)
}

func (h *FormHandler) FromDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	res, err := h.generator.FormFromDocument(r.Context(), header.Filename, buf.Bytes())
	if err != nil {
		h.logger.Error("Document conversion failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		status := http.StatusUnprocessableEntity
		if errors.Is(err, rag_service.ErrUnsupportedFileType) {
			status = http.StatusBadRequest
		}
		writeJSONError(w, err.Error(), status)
		return
	}
	save, _ := strconv.ParseBool(r.FormValue("save"))
	h.respond(w, r, res, "", header.Filename, save)
}

func (h *FormHandler) respond(w http.ResponseWriter, r *http.Request, res generation.Result, query, source string, save bool) {
	body := resultPayload(res, "form")
	if res.OK() && save && h.store != nil {
		saved, err := h.store.Save(r.Context(), query, source, res.Value)
		if err != nil {
			h.logger.Error("Failed to save form", slog.String("error", err.Error()))
			body["save_error"] = err.Error()
		} else {
			body["id"] = saved.ID
		}
	}
	writeJSON(w, StatusCode(res), body)
}

func (h *FormHandler) ListForms(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSONError(w, "form storage is not configured", http.StatusServiceUnavailable)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	forms, err := h.store.List(r.Context(), limit)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if forms == nil {
		forms = []form_builder.SavedForm{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": forms, "count": len(forms)})
}

func (h *FormHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSONError(w, "form storage is not configured", http.StatusServiceUnavailable)
		return
	}
	form, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, form_builder.ErrFormNotFound) {
		writeJSONError(w, "form not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, form)
}
