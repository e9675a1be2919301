// Package form_builder generates structured coal mine operation forms from a
// description or an existing document, and keeps the ones worth saving.
package form_builder

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/prompt"
	"github.com/serisow/coalmind/query_validator"
	"github.com/serisow/coalmind/schema"
	"github.com/serisow/coalmind/services/rag_service"
	"github.com/serisow/coalmind/vector_store"
)

//go:embed example_form.json
var exampleForm string

const (
	DefaultTopK = 5
	// maxDocumentRunes keeps converted documents inside the model context.
	maxDocumentRunes = 60000
)

type QueryValidator interface {
	Validate(ctx context.Context, query string) query_validator.Verdict
}

type Generator struct {
	validator  QueryValidator
	retriever  vector_store.Retriever
	controller *generation.Controller
	extractor  *rag_service.DocumentExtractor
	topK       int
	logger     *slog.Logger
}

func NewGenerator(validator QueryValidator, retriever vector_store.Retriever, controller *generation.Controller, topK int, logger *slog.Logger) *Generator {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Generator{
		validator:  validator,
		retriever:  retriever,
		controller: controller,
		extractor:  rag_service.NewDocumentExtractor(logger),
		topK:       topK,
		logger:     logger,
	}
}

// GenerateForm returns a Rejected result for requests the validator turns
// down. The error is only set when context retrieval fails.
func (g *Generator) GenerateForm(ctx context.Context, description string) (generation.Result, error) {
	verdict := g.validator.Validate(ctx, description)
	if !verdict.Accepted {
		g.logger.Info("Form request rejected", slog.String("reason", verdict.Reason))
		return generation.Rejected(verdict.Reason), nil
	}

	retrieved, err := g.retriever.Query(ctx, description, g.topK)
	if err != nil {
		return generation.Result{}, fmt.Errorf("retrieving context: %w", err)
	}

	return g.controller.Generate(ctx, generation.Request{
		Name:     "form",
		Template: prompt.FormTemplate,
		Variables: map[string]string{
			"query":   description,
			"context": prompt.RenderContext(retrieved),
			"example": exampleForm,
		},
		Schema: schema.MustBuiltin("form"),
	}), nil
}

// FormFromDocument converts an uploaded document into a form. The error is
// set when no text can be extracted.
func (g *Generator) FormFromDocument(ctx context.Context, filename string, data []byte) (generation.Result, error) {
	text, _, err := g.extractor.Extract(filename, data)
	if err != nil {
		return generation.Result{}, err
	}
	if r := []rune(text); len(r) > maxDocumentRunes {
		g.logger.Warn("Document truncated",
			slog.String("filename", filename),
			slog.Int("runes", len(r)))
		text = string(r[:maxDocumentRunes])
	}

	return g.controller.Generate(ctx, generation.Request{
		Name:      "form_from_document",
		Template:  prompt.FormFromDocumentTemplate,
		Variables: map[string]string{"document": text},
		Schema:    schema.MustBuiltin("form_from_document"),
	}), nil
}
