// Package hazard_analysis produces scored hazard analyses for coal mining
// activities from the knowledge base and live mine records.
package hazard_analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/prompt"
	"github.com/serisow/coalmind/query_validator"
	"github.com/serisow/coalmind/schema"
	"github.com/serisow/coalmind/vector_store"
)

const (
	DefaultTopK  = 3
	notAvailable = "not available"
)

type QueryValidator interface {
	Validate(ctx context.Context, query string) query_validator.Verdict
}

type DataCollector interface {
	Collect(ctx context.Context, activity string) map[string]string
}

// IoTSummary describes the latest sensor readings.
type IoTSummary func(ctx context.Context) (string, error)

type Analyzer struct {
	validator  QueryValidator
	retriever  vector_store.Retriever
	controller *generation.Controller
	topK       int
	logger     *slog.Logger

	collector DataCollector
	iot       IoTSummary
	notifier  Notifier
}

type Option func(*Analyzer)

func WithCollector(c DataCollector) Option {
	return func(a *Analyzer) { a.collector = c }
}

func WithIoTSummary(f IoTSummary) Option {
	return func(a *Analyzer) { a.iot = f }
}

func WithNotifier(n Notifier) Option {
	return func(a *Analyzer) { a.notifier = n }
}

func WithTopK(k int) Option {
	return func(a *Analyzer) {
		if k > 0 {
			a.topK = k
		}
	}
}

func NewAnalyzer(validator QueryValidator, retriever vector_store.Retriever, controller *generation.Controller, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		validator:  validator,
		retriever:  retriever,
		controller: controller,
		topK:       DefaultTopK,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns Rejected for activities the validator turns down. The
// error is only set when context retrieval fails.
func (a *Analyzer) Analyze(ctx context.Context, activity, inputInfo string) (generation.Result, error) {
	logger := a.logger.With(slog.String("activity", activity))

	verdict := a.validator.Validate(ctx, activity)
	if !verdict.Accepted {
		logger.Info("Hazard analysis request rejected", slog.String("reason", verdict.Reason))
		return generation.Rejected(verdict.Reason), nil
	}

	retrieved, err := a.retriever.Query(ctx, activity, a.topK)
	if err != nil {
		return generation.Result{}, fmt.Errorf("retrieving context: %w", err)
	}

	vars := map[string]string{
		"activity_name": activity,
		"input_info":    orDefault(inputInfo, "none"),
		"context":       prompt.RenderContext(retrieved),
		"iot_data":      a.iotData(ctx, logger),
		"shift_data":    notAvailable,
		"user_data":     notAvailable,
		"smp_data":      notAvailable,
		"scales":        FormatScales(),
	}
	if a.collector != nil {
		for domain, summary := range a.collector.Collect(ctx, activity) {
			switch domain {
			case "shift", "user", "smp":
				vars[domain+"_data"] = orDefault(summary, notAvailable)
			}
		}
	}

	res := a.controller.Generate(ctx, generation.Request{
		Name:      "hazard_analysis",
		Template:  prompt.HazardAnalysisTemplate,
		Variables: vars,
		Schema:    schema.MustBuiltin("hazard_analysis"),
	})
	if !res.OK() {
		return res, nil
	}

	high := Rescore(res.Value, logger)
	if len(high) > 0 && a.notifier != nil {
		if err := a.notifier.NotifyHighRisk(ctx, activity, high); err != nil {
			logger.Error("High risk notification failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

func (a *Analyzer) iotData(ctx context.Context, logger *slog.Logger) string {
	if a.iot == nil {
		return notAvailable
	}
	summary, err := a.iot(ctx)
	if err != nil {
		logger.Warn("IoT data unavailable", slog.String("error", err.Error()))
		return notAvailable
	}
	return orDefault(summary, notAvailable)
}

// Rescore overwrites every hazard's risk_score and risk_rating with values
// computed from its factors and returns the High rated hazards. The model's
// own arithmetic is not trusted. Factors that are not values on their scale
// are still scored as given and reported under the analysis "warnings" key.
func Rescore(analysis map[string]any, logger *slog.Logger) []HighRiskHazard {
	hazards, _ := analysis["hazards"].([]any)
	var (
		high     []HighRiskHazard
		warnings []any
	)
	for _, h := range hazards {
		hazard, ok := h.(map[string]any)
		if !ok {
			continue
		}
		p, _ := hazard["probability"].(float64)
		e, _ := hazard["exposure"].(float64)
		c, _ := hazard["consequences"].(float64)
		id, _ := hazard["hazard_id"].(string)

		for _, f := range []struct {
			scale Scale
			value float64
		}{{ProbabilityScale, p}, {ExposureScale, e}, {ConsequenceScale, c}} {
			if f.scale.Contains(f.value) {
				continue
			}
			logger.Warn("Hazard factor outside the rating scales",
				slog.String("hazard_id", id),
				slog.String("factor", f.scale.Name),
				slog.Float64("value", f.value))
			warnings = append(warnings, fmt.Sprintf("hazard %s: %s %s is not a value on the %s scale",
				id, strings.ToLower(f.scale.Name), strconv.FormatFloat(f.value, 'f', -1, 64), f.scale.Name))
		}

		score := RiskScore(p, e, c)
		rating := RiskRating(score)
		if claimed, _ := hazard["risk_score"].(float64); claimed != score {
			logger.Debug("Corrected model risk score",
				slog.String("hazard_id", id),
				slog.Float64("claimed", claimed),
				slog.Float64("computed", score))
		}
		hazard["risk_score"] = score
		hazard["risk_rating"] = string(rating)

		if rating == RatingHigh {
			aspect, _ := hazard["hazard_aspect"].(string)
			high = append(high, HighRiskHazard{ID: id, Aspect: aspect, RiskScore: score})
		}
	}
	if len(warnings) > 0 {
		analysis["warnings"] = warnings
	}
	return high
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
