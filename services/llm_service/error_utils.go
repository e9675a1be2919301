package llm_service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// QuotaError is returned when a provider rejects a call for rate or quota
// reasons. It is never retried.
type QuotaError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exceeded (HTTP %d): %s", e.Provider, e.StatusCode, e.Message)
}

// classifyError converts a provider SDK error into a *QuotaError when the
// status code signals quota exhaustion, and returns it unchanged otherwise.
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	status := statusCode(err)
	if status == http.StatusTooManyRequests {
		return &QuotaError{Provider: provider, StatusCode: status, Message: err.Error()}
	}
	return err
}

func statusCode(err error) int {
	var openAIErr *openai.Error
	if errors.As(err, &openAIErr) {
		return openAIErr.StatusCode
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}
	var genaiPtrErr *genai.APIError
	if errors.As(err, &genaiPtrErr) {
		return genaiPtrErr.Code
	}
	return 0
}
