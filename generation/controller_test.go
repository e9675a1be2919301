package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/serisow/coalmind/schema"
	"github.com/serisow/coalmind/services/llm_service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func formSchema() schema.Descriptor {
	return schema.Descriptor{
		Name: "form",
		Type: schema.TypeObject,
		Children: []schema.Descriptor{
			{Name: "form_name", Type: schema.TypeString, Required: true},
			{
				Name: "sections", Type: schema.TypeList, Required: true, MinItems: schema.IntPtr(4),
				Children: []schema.Descriptor{{Name: "section_name", Type: schema.TypeString, Required: true}},
			},
		},
	}
}

const (
	twoSections  = `<json>{"form_name": "Roof Check", "sections": [{"section_name": "A"}, {"section_name": "B"}]}</json>`
	fourSections = `<json>{"form_name": "Roof Check", "sections": [{"section_name": "A"}, {"section_name": "B"}, {"section_name": "C"}, {"section_name": "D"}]}</json>`
)

func request() Request {
	return Request{
		Name:      "test",
		Template:  "Design a form for {query}.\n{format_instructions}",
		Variables: map[string]string{"query": "roof bolting"},
		Schema:    formSchema(),
	}
}

func TestGenerateSuccessShortCircuits(t *testing.T) {
	mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses(fourSections)}
	c := NewController(mock, discardLogger())

	res := c.Generate(context.Background(), request())

	if res.Status != StatusSuccess {
		t.Fatalf("Status = %s, err %v", res.Status, res.Err)
	}
	if mock.Calls() != 1 {
		t.Errorf("model called %d times, want 1", mock.Calls())
	}
	if res.Value["form_name"] != "Roof Check" {
		t.Errorf("Value = %v", res.Value)
	}
}

func TestGenerateRetryBound(t *testing.T) {
	responses := []string{"not json at all", twoSections, `<json>{"form_name": 3}</json>`}
	for _, invalid := range responses {
		mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses(invalid)}
		c := NewController(mock, discardLogger())

		res := c.Generate(context.Background(), request())

		if mock.Calls() != 2 {
			t.Errorf("%q: model called %d times, want exactly 2", invalid, mock.Calls())
		}
		if res.Status != StatusFailed || res.Kind != KindValidationFailed {
			t.Errorf("%q: got %s/%s, want failed/validation_failed", invalid, res.Status, res.Kind)
		}
		var gf *GenerationFailedError
		if !errors.As(res.Err, &gf) || gf.Attempts != 2 {
			t.Errorf("%q: err = %v, want GenerationFailedError after 2 attempts", invalid, res.Err)
		}
	}
}

func TestGenerateCorrectionPromptCarriesValidationError(t *testing.T) {
	mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses(twoSections, fourSections)}
	c := NewController(mock, discardLogger())

	res := c.Generate(context.Background(), request())

	if res.Status != StatusSuccess || res.Attempts != 2 {
		t.Fatalf("got %s after %d attempts", res.Status, res.Attempts)
	}
	prompts := mock.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("got %d prompts", len(prompts))
	}
	correction := prompts[1]
	if !strings.Contains(correction, "sections: expected min_items=4, found 2") {
		t.Errorf("correction prompt lacks the validation error:\n%s", correction)
	}
	if !strings.HasPrefix(correction, prompts[0]) {
		t.Error("correction prompt should start with the original prompt")
	}
}

func TestGenerateParseErrorTriggersCorrection(t *testing.T) {
	mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses("<json>{broken</json>", fourSections)}
	c := NewController(mock, discardLogger())

	res := c.Generate(context.Background(), request())

	if !res.OK() || mock.Calls() != 2 {
		t.Fatalf("got %s after %d calls", res.Status, mock.Calls())
	}
	if !strings.Contains(mock.Prompts()[1], "could not parse a JSON object") {
		t.Error("correction prompt lacks the parse error")
	}
}

func TestGenerateTransportFailure(t *testing.T) {
	quota := &llm_service.QuotaError{Provider: "gemini", StatusCode: 429}

	t.Run("first call", func(t *testing.T) {
		mock := &llm_service.MockLLMService{CallLLMFunc: func(context.Context, string) (string, error) {
			return "", quota
		}}
		res := NewController(mock, discardLogger()).Generate(context.Background(), request())

		if res.Status != StatusFailed || res.Kind != KindModelUnavailable {
			t.Fatalf("got %s/%s", res.Status, res.Kind)
		}
		if mock.Calls() != 1 {
			t.Errorf("model called %d times, want 1", mock.Calls())
		}
		if !errors.Is(res.Err, ErrModelUnavailable) || !errors.As(res.Err, &quota) {
			t.Errorf("err = %v", res.Err)
		}
	})

	t.Run("correction call", func(t *testing.T) {
		calls := 0
		mock := &llm_service.MockLLMService{CallLLMFunc: func(context.Context, string) (string, error) {
			calls++
			if calls == 1 {
				return twoSections, nil
			}
			return "", errors.New("connection reset")
		}}
		res := NewController(mock, discardLogger()).Generate(context.Background(), request())

		if res.Status != StatusFailed || res.Kind != KindValidationFailed {
			t.Fatalf("got %s/%s", res.Status, res.Kind)
		}
		if !errors.Is(res.Err, ErrModelUnavailable) {
			t.Errorf("last error not preserved: %v", res.Err)
		}
		if mock.Calls() != 2 {
			t.Errorf("model called %d times, want 2", mock.Calls())
		}
	})
}

func TestGenerateMissingVariableNeverCallsModel(t *testing.T) {
	mock := &llm_service.MockLLMService{}
	req := request()
	req.Variables = nil

	res := NewController(mock, discardLogger()).Generate(context.Background(), req)

	if res.Status != StatusFailed || res.Kind != KindInvalidRequest {
		t.Fatalf("got %s/%s", res.Status, res.Kind)
	}
	if mock.Calls() != 0 {
		t.Errorf("model called %d times", mock.Calls())
	}
}

func TestGenerateOnce(t *testing.T) {
	mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses(twoSections)}
	res := NewController(mock, discardLogger()).GenerateOnce(context.Background(), request())

	if res.Status != StatusFailed || res.Kind != KindValidationFailed {
		t.Fatalf("got %s/%s", res.Status, res.Kind)
	}
	if mock.Calls() != 1 {
		t.Errorf("model called %d times, want 1", mock.Calls())
	}
	var sv *SchemaValidationError
	if !errors.As(res.Err, &sv) {
		t.Errorf("err = %T, want *SchemaValidationError", res.Err)
	}
}
