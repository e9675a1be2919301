// Package cli is the coalmind command line: the API server plus one-shot
// commands for ingestion and generation.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/serisow/coalmind/config"
)

var (
	logLevel string
	provider string
)

var rootCmd = &cobra.Command{
	Use:   "coalmind",
	Short: "Safety document generation for underground coal mining",
	Long: `coalmind generates inspection forms and hazard analyses grounded in a
knowledge base of mining regulations and procedures, answers questions about
them, and turns sensor exports into chart configurations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "override LLM_PROVIDER")
	rootCmd.AddCommand(serveCmd, ingestCmd, watchCmd, formCmd, hazardCmd, chatCmd, inspectCmd)
}

// loadConfig applies command line overrides to the environment config.
func loadConfig() config.Config {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if provider != "" {
		cfg.LLMProvider = provider
	}
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
