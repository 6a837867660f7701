package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lighthuangfu/agent-study/internal/archive"
	"github.com/lighthuangfu/agent-study/internal/config"
	"github.com/lighthuangfu/agent-study/internal/prompt"
	"github.com/lighthuangfu/agent-study/internal/vectordb"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// DocIndexer stores a generated document in the vector store.
type DocIndexer interface {
	IndexDocument(ctx context.Context, doc vectordb.Document) (int, error)
}

// Deps are the collaborators shared by every step.
type Deps struct {
	LLM     llm.Client
	Tools   []llm.Tool
	Prompts *prompt.Library
	Config  config.WorkflowConfig

	// Archive and Indexer are optional; nil skips persisting drafts.
	Archive archive.Archive
	Indexer DocIndexer

	Logger *slog.Logger
}

func (d *Deps) validate() error {
	var errs []error
	if d.LLM == nil {
		errs = append(errs, errors.New("assistant: LLM client is required"))
	}
	if d.Prompts == nil {
		lib, err := prompt.NewLibrary(nil)
		if err != nil {
			errs = append(errs, err)
		}
		d.Prompts = lib
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return errors.Join(errs...)
}

// background runs post-processing that must not hold up a step, such as
// archiving and indexing a finished draft.
type background struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *slog.Logger
}

func (b *background) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.logger.Error("background task failed", "task", name, "error", err)
		}
	}()
}

func (b *background) Wait() { b.wg.Wait() }
