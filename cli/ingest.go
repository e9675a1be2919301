package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/serisow/coalmind/pipeline_type"
	"github.com/serisow/coalmind/services/rag_service"
)

var (
	rebuild       bool
	watchDebounce string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Add documents or directories to the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		b, err := newBase(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer b.Close()

		n, err := b.processor.Ingest(ctx, rebuild, args...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks\n", n)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest documents as they appear in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		b, err := newBase(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer b.Close()

		debounce, err := parseDuration(watchDebounce)
		if err != nil {
			return err
		}
		w, err := rag_service.NewWatcher(b.processor, args[0], debounce, b.logger)
		if err != nil {
			return err
		}
		w.OnIngest = func(path string, resp *pipeline_type.RAGResponse, err error) {
			switch {
			case err != nil:
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			case resp.Status == "failed":
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, resp.Error)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", path, resp.Metadata.ChunkCount)
			}
		}

		b.logger.Info("Watching for documents", slog.String("dir", args[0]))
		return w.Run(ctx)
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&rebuild, "rebuild", false, "replace the index instead of adding to it")
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", rag_service.DefaultDebounce.String(), "quiet period before a changed file is ingested")
}
