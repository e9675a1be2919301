package cli

import (
	"github.com/spf13/cobra"

	"github.com/serisow/coalmind/handlers"
	"github.com/serisow/coalmind/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		cfg := loadConfig()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		a.executions.StartCleanup(executionTTL, executionCleanup)
		go a.maintainIndex(ctx, reindexInterval)

		var forms handlers.FormStore
		if a.formRepo != nil {
			forms = a.formRepo
		}
		var index handlers.IndexStatus
		if ix, ok := a.store.(handlers.IndexStatus); ok {
			index = ix
		}
		r := server.SetupRoutes(server.Handlers{
			Forms:     handlers.NewFormHandler(a.forms, forms, a.logger),
			Hazards:   handlers.NewHazardHandler(a.hazards, a.executions, a.logger),
			Chat:      handlers.NewChatHandler(a.chatbot, a.plotter, cfg.DatasetDir, a.logger),
			Documents: handlers.NewDocumentHandler(a.processor, a.store, a.logger),
			Health:    handlers.NewHealthHandler(index),
		})
		n := server.SetupNegroni(r)

		srvCfg := server.DefaultConfig()
		srvCfg.Domains = cfg.Domains
		srvCfg.CertCacheDir = cfg.CertCacheDir
		srvCfg.HTTPPort = cfg.HTTPPort
		srvCfg.HTTPSPort = cfg.HTTPSPort

		if cfg.IsProduction() {
			return server.ServeProduction(ctx, srvCfg, n, a.logger)
		}
		return server.ServeDevelopment(ctx, srvCfg, n, a.logger)
	},
}
