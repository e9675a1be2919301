package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/serisow/coalmind/generation"
)

var (
	saveForm   bool
	hazardInfo string
)

var formCmd = &cobra.Command{
	Use:   "form <description>",
	Short: "Generate an inspection form",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		query := strings.Join(args, " ")
		res, err := a.forms.GenerateForm(ctx, query)
		if err != nil {
			return err
		}
		if err := printResult(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if saveForm && a.formRepo != nil {
			saved, err := a.formRepo.Save(ctx, query, "query", res.Value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved form %s\n", saved.ID)
		}
		return nil
	},
}

var hazardCmd = &cobra.Command{
	Use:   "hazard <activity>",
	Short: "Run a hazard analysis for a mining activity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.hazards.Analyze(ctx, strings.Join(args, " "), hazardInfo)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), res)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask a question about the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		answer, err := a.chatbot.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\nSources: %s\n", strings.Join(answer.Sources, ", "))
		}
		return nil
	},
}

func init() {
	formCmd.Flags().BoolVar(&saveForm, "save", false, "store the generated form")
	hazardCmd.Flags().StringVar(&hazardInfo, "info", "", "additional information about the activity")
}

// printResult writes the value of a successful result as indented JSON and
// turns every other status into an error.
func printResult(w io.Writer, res generation.Result) error {
	if !res.OK() {
		if res.Err != nil {
			return fmt.Errorf("%s: %w", res.Message(), res.Err)
		}
		return fmt.Errorf("%s", res.Message())
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Value); err != nil {
		return err
	}
	if res.Explanation != "" {
		fmt.Fprintf(w, "\n%s\n", res.Explanation)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
