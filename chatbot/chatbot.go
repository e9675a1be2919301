// Package chatbot answers free-text questions from the knowledge base and
// routes visualization requests to the chart plotter.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/serisow/coalmind/prompt"
	"github.com/serisow/coalmind/services/llm_service"
	"github.com/serisow/coalmind/vector_store"
)

const DefaultTopK = 4

const (
	RouteHelper  = "helper"
	RoutePlotter = "plotter"
)

var ErrEmptyQuestion = errors.New("question is empty")

var visualizationKeywords = []string{
	"show", "plot", "graph", "chart", "visualize", "represent", "diagram",
	"trend", "distribution", "comparison", "visual representation",
}

// Route picks the worker for a query by keyword, case-insensitively.
func Route(query string) string {
	q := strings.ToLower(query)
	for _, kw := range visualizationKeywords {
		if strings.Contains(q, kw) {
			return RoutePlotter
		}
	}
	return RouteHelper
}

type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

type Chatbot struct {
	llm       llm_service.LLMService
	retriever vector_store.Retriever
	topK      int
	logger    *slog.Logger
}

func New(llm llm_service.LLMService, retriever vector_store.Retriever, topK int, logger *slog.Logger) *Chatbot {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Chatbot{llm: llm, retriever: retriever, topK: topK, logger: logger}
}

func (c *Chatbot) Ask(ctx context.Context, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyQuestion
	}

	retrieved, err := c.retriever.Query(ctx, question, c.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	p, err := prompt.Assemble(prompt.ChatbotTemplate, map[string]string{
		"context":  prompt.RenderContext(retrieved),
		"question": question,
	}, "")
	if err != nil {
		return Answer{}, err
	}

	text, err := c.llm.CallLLM(ctx, p)
	if err != nil {
		c.logger.Error("Chatbot model call failed", slog.String("error", err.Error()))
		return Answer{}, err
	}

	c.logger.Debug("Chatbot answered",
		slog.Int("context_chunks", len(retrieved)),
		slog.Int("answer_length", len(text)))
	return Answer{Text: strings.TrimSpace(text), Sources: retrieved.Sources()}, nil
}
