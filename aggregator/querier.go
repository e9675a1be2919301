package aggregator

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/serisow/coalmind/prompt"
	"github.com/serisow/coalmind/services/llm_service"
)

// MaxDocumentBytes caps how much of a remote document reaches the prompt.
const MaxDocumentBytes = 40000

type LLMJSONQuerier struct {
	llm llm_service.LLMService
}

func NewLLMJSONQuerier(llm llm_service.LLMService) *LLMJSONQuerier {
	return &LLMJSONQuerier{llm: llm}
}

func (q *LLMJSONQuerier) Ask(ctx context.Context, question string, document []byte) (string, error) {
	document = truncateUTF8(document, MaxDocumentBytes)
	p, err := prompt.Assemble(prompt.JSONQuestionTemplate, map[string]string{
		"question": question,
		"document": string(document),
	}, "")
	if err != nil {
		return "", err
	}
	answer, err := q.llm.CallLLM(ctx, p)
	if err != nil {
		return "", fmt.Errorf("json question: %w", err)
	}
	return answer, nil
}

// truncateUTF8 cuts b to at most n bytes without splitting a rune.
func truncateUTF8(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}
