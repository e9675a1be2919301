// Package generation runs the model call, parse, validate and single
// correction loop shared by every structured-output pipeline.
package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/coalmind/prompt"
	"github.com/serisow/coalmind/schema"
	"github.com/serisow/coalmind/services/llm_service"
)

// maxAttempts bounds model calls per request: the first try and one correction.
const maxAttempts = 2

type Request struct {
	Name      string
	Template  string
	Variables map[string]string
	Schema    schema.Descriptor
}

type Controller struct {
	llm    llm_service.LLMService
	logger *slog.Logger
}

func NewController(llm llm_service.LLMService, logger *slog.Logger) *Controller {
	return &Controller{llm: llm, logger: logger}
}

// Generate sends the assembled prompt, and if the answer cannot be parsed or
// does not match the schema, sends exactly one correction prompt quoting the
// problem. It never calls the model more than twice and always returns a
// terminal Result.
func (c *Controller) Generate(ctx context.Context, req Request) Result {
	logger := c.logger.With(slog.String("task", req.Name))
	instructions := schema.RenderFormatInstructions(req.Schema)

	fullPrompt, err := prompt.Assemble(req.Template, req.Variables, instructions)
	if err != nil {
		logger.Error("Prompt assembly failed", slog.String("error", err.Error()))
		return Failed(KindInvalidRequest, "", err, 0)
	}

	raw, err := c.llm.CallLLM(ctx, fullPrompt)
	if err != nil {
		logger.Error("Model call failed", slog.Int("attempt", 1), slog.String("error", err.Error()))
		return Failed(KindModelUnavailable, "", fmt.Errorf("%w: %w", ErrModelUnavailable, err), 1)
	}

	value, explanation, firstErr := parseAndValidate(raw, req.Schema)
	if firstErr == nil {
		logger.Info("Generation succeeded", slog.Int("attempts", 1))
		return Success(value, explanation, 1)
	}

	logger.Warn("Model output rejected, requesting correction",
		slog.Int("attempt", 1),
		slog.String("error", firstErr.Error()))

	correction, err := prompt.Assemble(prompt.CorrectionTemplate, map[string]string{
		"original_prompt": fullPrompt,
		"errors":          firstErr.Error(),
	}, instructions)
	if err != nil {
		return Failed(KindInvalidRequest, raw, err, 1)
	}
	if err := ctx.Err(); err != nil {
		return Failed(KindValidationFailed, raw, &GenerationFailedError{Attempts: 1, Last: err}, 1)
	}

	raw2, err := c.llm.CallLLM(ctx, correction)
	if err != nil {
		logger.Error("Correction call failed", slog.Int("attempt", maxAttempts), slog.String("error", err.Error()))
		return Failed(KindValidationFailed, raw, &GenerationFailedError{
			Attempts: maxAttempts,
			Last:     fmt.Errorf("%w: %w", ErrModelUnavailable, err),
		}, maxAttempts)
	}

	value, explanation, secondErr := parseAndValidate(raw2, req.Schema)
	if secondErr == nil {
		logger.Info("Generation succeeded after correction", slog.Int("attempts", maxAttempts))
		return Success(value, explanation, maxAttempts)
	}

	logger.Error("Generation failed after correction",
		slog.Int("attempts", maxAttempts),
		slog.String("error", secondErr.Error()))
	return Failed(KindValidationFailed, raw2, &GenerationFailedError{Attempts: maxAttempts, Last: secondErr}, maxAttempts)
}

// GenerateOnce makes a single model call with no correction attempt.
func (c *Controller) GenerateOnce(ctx context.Context, req Request) Result {
	instructions := schema.RenderFormatInstructions(req.Schema)
	fullPrompt, err := prompt.Assemble(req.Template, req.Variables, instructions)
	if err != nil {
		return Failed(KindInvalidRequest, "", err, 0)
	}

	raw, err := c.llm.CallLLM(ctx, fullPrompt)
	if err != nil {
		return Failed(KindModelUnavailable, "", fmt.Errorf("%w: %w", ErrModelUnavailable, err), 1)
	}

	value, explanation, perr := parseAndValidate(raw, req.Schema)
	if perr != nil {
		return Failed(KindValidationFailed, raw, perr, 1)
	}
	return Success(value, explanation, 1)
}

// parseAndValidate returns a *ParseError or *SchemaValidationError on failure.
func parseAndValidate(raw string, d schema.Descriptor) (map[string]any, string, error) {
	candidate, explanation, err := ExtractJSON(raw)
	if err != nil {
		return nil, "", err
	}
	outcome := schema.Validate(d, candidate)
	if !outcome.Valid {
		return nil, "", &SchemaValidationError{Errors: outcome.Errors}
	}
	return outcome.Value, explanation, nil
}
