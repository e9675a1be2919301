package chart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/prompt"
	"github.com/serisow/coalmind/schema"
)

type Plotter struct {
	controller *generation.Controller
	strategy   string
	logger     *slog.Logger
}

func NewPlotter(controller *generation.Controller, strategy string, logger *slog.Logger) *Plotter {
	if strategy == "" {
		strategy = DescribeHead
	}
	return &Plotter{controller: controller, strategy: strategy, logger: logger}
}

// Query asks for a chart configuration over ds. A configuration that names
// a column ds does not have comes back as RenderFailed.
func (p *Plotter) Query(ctx context.Context, ds *Dataset, question string) generation.Result {
	description, err := ds.Describe(p.strategy)
	if err != nil {
		return generation.Failed(generation.KindInvalidRequest, "", err, 0)
	}

	res := p.controller.Generate(ctx, generation.Request{
		Name:     "plot_config",
		Template: prompt.PlotTemplate,
		Variables: map[string]string{
			"dataset":  description,
			"question": question,
		},
		Schema: schema.MustBuiltin("plot_config"),
	})
	if !res.OK() {
		return res
	}

	for _, col := range referencedColumns(res.Value) {
		if !ds.HasColumn(col) {
			p.logger.Warn("Chart config references unknown column",
				slog.String("column", col),
				slog.String("dataset", ds.Name))
			err := fmt.Errorf("unknown column %q", col)
			rendered := generation.RenderFailed(fmt.Sprintf("column %q does not exist in %s", col, ds.Name), err)
			rendered.Value = res.Value
			rendered.Explanation = res.Explanation
			rendered.Attempts = res.Attempts
			return rendered
		}
	}
	return res
}

func referencedColumns(config map[string]any) []string {
	var cols []string
	for _, axis := range []string{"x", "y"} {
		if m, ok := config[axis].(map[string]any); ok {
			if c, ok := m["column"].(string); ok && c != "" {
				cols = append(cols, c)
			}
		}
	}
	if c, ok := config["color"].(string); ok && c != "" {
		cols = append(cols, c)
	}
	return cols
}
