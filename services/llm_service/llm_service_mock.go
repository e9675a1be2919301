package llm_service

import (
	"context"
	"sync"
)

type MockLLMService struct {
	CallLLMFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockLLMService) CallLLM(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CallLLMFunc != nil {
		return m.CallLLMFunc(ctx, prompt)
	}
	return "mock response", nil
}

func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *MockLLMService) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// ScriptedResponses returns a CallLLMFunc answering with responses in order
// and repeating the last one once they run out.
func ScriptedResponses(responses ...string) func(context.Context, string) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		r := responses[i]
		if i < len(responses)-1 {
			i++
		}
		return r, nil
	}
}
