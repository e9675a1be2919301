package query_validator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/prompt"
	"github.com/serisow/coalmind/schema"
)

// Policy decides the verdict when the validator itself cannot answer.
type Policy string

const (
	FailClosed Policy = "fail_closed"
	FailOpen   Policy = "fail_open"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailClosed:
		return FailClosed, nil
	case FailOpen:
		return FailOpen, nil
	}
	return "", fmt.Errorf("unknown validator policy %q", s)
}

type Verdict struct {
	Accepted bool
	Reason   string
	// Degraded is set when the verdict came from the policy rather than the model.
	Degraded bool
}

type Validator struct {
	controller *generation.Controller
	template   string
	schema     schema.Descriptor
	policy     Policy
	logger     *slog.Logger
}

func New(controller *generation.Controller, template string, policy Policy, logger *slog.Logger) *Validator {
	return &Validator{
		controller: controller,
		template:   template,
		schema:     schema.MustBuiltin("query_validation"),
		policy:     policy,
		logger:     logger,
	}
}

// NewFormValidator checks form generation requests.
func NewFormValidator(controller *generation.Controller, policy Policy, logger *slog.Logger) *Validator {
	return New(controller, prompt.FormQueryValidationTemplate, policy, logger)
}

// NewSMPValidator checks safety management plan requests.
func NewSMPValidator(controller *generation.Controller, policy Policy, logger *slog.Logger) *Validator {
	return New(controller, prompt.SMPQueryValidationTemplate, policy, logger)
}

// Validate makes at most one model call. A blank query is rejected without one.
func (v *Validator) Validate(ctx context.Context, query string) Verdict {
	if strings.TrimSpace(query) == "" {
		return Verdict{Accepted: false, Reason: "the request is empty"}
	}

	res := v.controller.GenerateOnce(ctx, generation.Request{
		Name:      "query_validation",
		Template:  v.template,
		Variables: map[string]string{"query": query},
		Schema:    v.schema,
	})
	if !res.OK() {
		return v.fallback(res)
	}

	valid, _ := res.Value["query_validity"].(bool)
	reason, _ := res.Value["reason"].(string)
	return Verdict{Accepted: valid, Reason: reason}
}

func (v *Validator) fallback(res generation.Result) Verdict {
	v.logger.Warn("Query validator unavailable, applying policy",
		slog.String("policy", string(v.policy)),
		slog.String("status", string(res.Status)),
		slog.String("kind", string(res.Kind)),
		slog.Any("error", res.Err))

	if v.policy == FailOpen {
		return Verdict{Accepted: true, Reason: "validator unavailable; request accepted by policy", Degraded: true}
	}
	return Verdict{Accepted: false, Reason: "the request could not be validated; please try again", Degraded: true}
}
