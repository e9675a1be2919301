package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serisow/coalmind/aggregator"
	"github.com/serisow/coalmind/chart"
	"github.com/serisow/coalmind/chatbot"
	"github.com/serisow/coalmind/config"
	"github.com/serisow/coalmind/db"
	"github.com/serisow/coalmind/execution"
	"github.com/serisow/coalmind/form_builder"
	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/hazard_analysis"
	"github.com/serisow/coalmind/logging"
	"github.com/serisow/coalmind/plugin_registry"
	"github.com/serisow/coalmind/query_validator"
	"github.com/serisow/coalmind/services/llm_service"
	"github.com/serisow/coalmind/services/rag_service"
	"github.com/serisow/coalmind/vector_store"
)

const (
	executionTTL     = time.Hour
	executionCleanup = 10 * time.Minute
	reindexInterval  = 6 * time.Hour
)

// base holds what every command needs: logging and the knowledge base.
type base struct {
	cfg        config.Config
	logger     *slog.Logger
	logHandler *logging.DailyFileHandler
	registry   *plugin_registry.PluginRegistry
	store      vector_store.Store
	processor  *rag_service.Processor
	pool       *pgxpool.Pool
}

func newBase(ctx context.Context, cfg config.Config) (*base, error) {
	logger, handler, err := logging.New(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	b := &base{cfg: cfg, logger: logger, logHandler: handler, registry: plugin_registry.Default()}

	if err := b.openStore(ctx); err != nil {
		b.Close()
		return nil, err
	}
	b.processor = rag_service.NewProcessor(b.store, cfg.IndexPath, rag_service.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap), logger)
	return b, nil
}

func (b *base) openStore(ctx context.Context) error {
	embedder, dim, err := b.registry.NewEmbedder(ctx, b.cfg.EmbeddingProvider, b.cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	switch b.cfg.VectorBackend {
	case "pgvector":
		pool, err := db.Connect(ctx, b.cfg.DatabaseURL, db.ConnectOptions{}, b.logger)
		if err != nil {
			return err
		}
		b.pool = pool
		store := vector_store.NewPgStore(pool, embedder, dim, b.cfg.ScoreThreshold, b.logger)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := vector_store.NewPgIndexManager(pool, b.logger).ReindexIfNeeded(ctx); err != nil {
			b.logger.Warn("Vector index maintenance failed", slog.String("error", err.Error()))
		}
		b.store = store
		return nil

	case "file", "":
		var opts []vector_store.Option
		if b.cfg.ScoreThreshold != nil {
			opts = append(opts, vector_store.WithScoreThreshold(*b.cfg.ScoreThreshold))
		}
		ix := vector_store.NewFileIndex(embedder, b.logger, opts...)
		err := ix.Load(b.cfg.IndexPath)
		if errors.Is(err, vector_store.ErrIndexNotFound) {
			b.logger.Warn("No knowledge base index found, starting empty", slog.String("path", b.cfg.IndexPath))
			err = ix.Build(ctx, nil)
		}
		if err != nil {
			return fmt.Errorf("failed to open index: %w", err)
		}
		b.store = ix
		return nil
	}
	return fmt.Errorf("unknown vector backend: %s", b.cfg.VectorBackend)
}

// maintainIndex resizes the pgvector index as the table grows, until ctx is
// done. It returns at once for the file backend.
func (b *base) maintainIndex(ctx context.Context, interval time.Duration) {
	if b.pool == nil {
		return
	}
	im := vector_store.NewPgIndexManager(b.pool, b.logger)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := im.ReindexIfNeeded(ctx); err != nil {
				b.logger.Error("Vector index maintenance failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (b *base) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.logHandler != nil {
		b.logHandler.Close()
	}
}

// app adds the model-backed pipelines on top of base.
type app struct {
	*base
	llm        llm_service.LLMService
	controller *generation.Controller
	forms      *form_builder.Generator
	formRepo   *form_builder.Repository
	hazards    *hazard_analysis.Analyzer
	chatbot    *chatbot.Chatbot
	plotter    *chart.Plotter
	executions *execution.Store
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	b, err := newBase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{base: b}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	llm, err := a.registry.NewLLMService(ctx, cfg.LLMProvider, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}
	a.llm = llm
	a.controller = generation.NewController(llm, logger)

	policy, err := query_validator.ParsePolicy(cfg.ValidatorPolicy)
	if err != nil {
		return err
	}

	a.forms = form_builder.NewGenerator(
		query_validator.NewFormValidator(a.controller, policy, logger),
		a.store, a.controller, cfg.FormTopK, logger)

	if cfg.FormDBPath != "" {
		repo, err := form_builder.OpenRepository(cfg.FormDBPath)
		if err != nil {
			return fmt.Errorf("failed to open form repository: %w", err)
		}
		a.formRepo = repo
	}

	hazardOpts := []hazard_analysis.Option{
		hazard_analysis.WithTopK(cfg.HazardTopK),
		hazard_analysis.WithIoTSummary(a.iotSummary),
	}
	if cfg.DataServiceURL != "" {
		var aggOpts []aggregator.Option
		if !cfg.AggregatorConcurrent {
			aggOpts = append(aggOpts, aggregator.WithSequential())
		}
		agg := aggregator.New(cfg.DataServiceURL, aggregator.NewLLMJSONQuerier(llm), logger, aggOpts...)
		hazardOpts = append(hazardOpts, hazard_analysis.WithCollector(agg))
	}
	if cfg.TwilioAccountSID != "" {
		notifier, err := hazard_analysis.NewSMSNotifier(hazard_analysis.TwilioCredentials{
			AccountSid: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
			ToNumbers:  cfg.TwilioToNumbers,
		}, logger)
		if err != nil {
			logger.Warn("SMS notifications disabled", slog.String("error", err.Error()))
		} else {
			hazardOpts = append(hazardOpts, hazard_analysis.WithNotifier(notifier))
		}
	}
	a.hazards = hazard_analysis.NewAnalyzer(
		query_validator.NewSMPValidator(a.controller, policy, logger),
		a.store, a.controller, logger, hazardOpts...)

	a.chatbot = chatbot.New(llm, a.store, cfg.ChatTopK, logger)
	a.plotter = chart.NewPlotter(a.controller, chart.DescribeHead, logger)
	a.executions = execution.NewStore(logger)
	return nil
}

// iotSummary describes the newest sensor export for hazard prompts.
func (a *app) iotSummary(context.Context) (string, error) {
	ds, err := chart.LoadLatest(a.cfg.DatasetDir)
	if err != nil {
		return "", err
	}
	return ds.Describe(chart.DescribeHead)
}

func (a *app) Close() {
	if a.executions != nil {
		a.executions.Stop()
		a.executions.Wait()
	}
	if a.formRepo != nil {
		a.formRepo.Close()
	}
	a.base.Close()
}
