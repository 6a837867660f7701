package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lighthuangfu/agent-study/internal/archive"
	"github.com/lighthuangfu/agent-study/internal/assistant"
	"github.com/lighthuangfu/agent-study/internal/config"
	"github.com/lighthuangfu/agent-study/internal/prompt"
	"github.com/lighthuangfu/agent-study/internal/telemetry"
	"github.com/lighthuangfu/agent-study/internal/tools"
	"github.com/lighthuangfu/agent-study/internal/vectordb"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/checkpoint"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// app is the wired application: the service plus everything that must be
// closed on exit.
type app struct {
	service *assistant.Service
	closers []func(context.Context) error
}

// newApp wires every component from cfg. A nil client builds the
// OpenAI-compatible client from cfg.LLM.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, client llm.Client) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, providers.Shutdown)

	store, err := openCheckpointStore(cfg.Checkpoint)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	arch, err := openArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	if arch != nil {
		a.closers = append(a.closers, arch.Close)
	}

	var (
		docIndexer  assistant.DocIndexer
		pageIndexer tools.PageIndexer
	)
	if cfg.Vector.Enabled {
		q := vectordb.NewQdrant(cfg.Vector.URL,
			vectordb.WithAPIKey(cfg.Vector.APIKey),
			vectordb.WithTimeout(cfg.Vector.Timeout),
			vectordb.WithLogger(logger))
		ix := vectordb.NewIndexer(q, newEmbedder(cfg, logger), cfg.Vector.Collection, logger)
		docIndexer, pageIndexer = ix, ix
	}

	fetcher := tools.NewFetcher(tools.WithLogger(logger))
	toolset := tools.NewSet(fetcher, tools.DefaultEndpoints(), pageIndexer)

	if client == nil {
		client = llm.NewOpenAIClient(cfg.LLM.APIKey,
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithModel(cfg.LLM.Model),
			llm.WithTemperature(cfg.LLM.Temperature),
			llm.WithMaxToolIterations(cfg.LLM.MaxToolIterations),
			llm.WithLogger(logger))
	}

	prompts, err := prompt.NewLibrary(cfg.Workflow.Prompts)
	if err != nil {
		return nil, err
	}

	deps := assistant.Deps{
		LLM:     client,
		Tools:   toolset.All(),
		Prompts: prompts,
		Config:  cfg.Workflow,
		Archive: arch,
		Indexer: docIndexer,
		Logger:  logger,
	}
	assist, err := assistant.New(deps)
	if err != nil {
		return nil, err
	}
	// Background archiving must finish before the archive closes.
	a.closers = append(a.closers, func(context.Context) error {
		assist.Wait()
		return nil
	})

	a.service = assistant.NewService(assist, store,
		assistant.WithServiceLogger(logger),
		assistant.WithTelemetry(providers.Enabled()))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newEmbedder picks the embedding backend for the vector index. The
// OpenAI-compatible endpoint borrows the llm section's base URL and key
// when the embedding section leaves them empty.
func newEmbedder(cfg config.Config, logger *slog.Logger) vectordb.Embedder {
	ec := cfg.Vector.Embedding
	apiKey := cmp.Or(ec.APIKey, cfg.LLM.APIKey)

	switch {
	case ec.Provider == "openai", ec.Provider == "auto" && apiKey != "":
		logger.Info("embedding with OpenAI-compatible endpoint", "model", ec.Model, "dimension", cfg.Vector.Dimension)
		return vectordb.NewOpenAIEmbedder(apiKey, ec.Model, cfg.Vector.Dimension,
			vectordb.WithEmbeddingBaseURL(cmp.Or(ec.BaseURL, cfg.LLM.BaseURL)),
			vectordb.WithBatchSize(ec.BatchSize))
	default:
		if ec.Provider != "hash" {
			logger.Warn("no embedding API key, falling back to hash embedding")
		}
		return vectordb.NewHashEmbedding(cfg.Vector.Dimension)
	}
}

func openCheckpointStore(cfg config.CheckpointConfig) (checkpoint.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return checkpoint.NewMemoryStore(), nil
	case "sqlite":
		store, err := checkpoint.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite checkpoints: %w", err)
		}
		return store, nil
	case "redis":
		return checkpoint.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			checkpoint.WithTTL(cfg.TTL),
			checkpoint.WithPrefix(cfg.Prefix)), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

// openArchive returns nil for the "none" backend.
func openArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.Archive, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "", "memory":
		return archive.NewMemoryArchive(), nil
	case "mongo":
		arch, err := archive.NewMongoArchive(ctx, cfg.MongoURI, cfg.Database, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("open mongo archive: %w", err)
		}
		return arch, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
