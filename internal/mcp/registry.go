package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/model"
	"github.com/Dirstral/ragmcp/internal/retrieval"
	"github.com/Dirstral/ragmcp/internal/state"
)

// ToolRegistration is one callable retrieval tool. Invoke only ever reads
// the collection of ToolName.
type ToolRegistration struct {
	ToolName    string
	Title       string
	Description string
	Invoke      func(ctx context.Context, prompt string) (string, error)
}

// CollectionRetriever is a retriever over one opened collection.
type CollectionRetriever interface {
	model.Retriever
	Close() error
}

type OpenFunc func(ctx context.Context, path, collection string, embedder model.Embedder, logger logrus.FieldLogger) (CollectionRetriever, error)

type RegistryDeps struct {
	Embedder  model.Embedder
	Generator model.Generator
	Logger    logrus.FieldLogger

	// K defaults to the configured retrieval k.
	K int
	// Timeout bounds one tool invocation. Zero uses the config timeout.
	Timeout time.Duration

	// Open defaults to retrieval.OpenCollection.
	Open OpenFunc
}

// Registry is the immutable set of tools built at serve startup.
type Registry struct {
	tools   []ToolRegistration
	closers []func() error
}

// Tools returns a copy of the registrations in configuration order.
func (r *Registry) Tools() []ToolRegistration {
	out := make([]ToolRegistration, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *Registry) ToolNames() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.ToolName)
	}
	return names
}

// Close releases every opened collection.
func (r *Registry) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// BuildRegistry opens the collection of every configured index that has a
// persisted index and binds one tool to each. Indices without a marker are
// skipped.
func BuildRegistry(ctx context.Context, cfg *config.Config, deps RegistryDeps) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Embedder == nil || deps.Generator == nil {
		return nil, errors.New("embedder and generator are required")
	}
	logger := logging.OrDiscard(deps.Logger)
	open := deps.Open
	if open == nil {
		open = openCollection
	}
	k := deps.K
	if k <= 0 {
		k = cfg.RetrievalK
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = cfg.RequestTimeout
	}

	reg := &Registry{}
	for _, spec := range cfg.Indices {
		if !state.HasPersistedIndex(cfg, spec.ToolName) {
			logger.WithField("tool", spec.ToolName).Debug("No persisted index; tool not served")
			continue
		}
		retriever, err := open(ctx, state.MarkerPath(cfg, spec.ToolName), spec.ToolName, deps.Embedder, logger.WithField("tool", spec.ToolName))
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("open index for tool %q: %w", spec.ToolName, err)
		}
		reg.closers = append(reg.closers, retriever.Close)

		qa := retrieval.QA{
			Retriever: retriever,
			Generator: deps.Generator,
			K:         k,
			Timeout:   timeout,
		}
		reg.tools = append(reg.tools, newRegistration(spec, qa))
	}
	return reg, nil
}

// newRegistration binds a tool to its own QA value. Each call yields an
// independent closure, so later registrations cannot change earlier ones.
func newRegistration(spec config.IndexSpec, qa retrieval.QA) ToolRegistration {
	title := strings.TrimSpace(spec.Name)
	if title == "" {
		title = spec.ToolName
	}
	return ToolRegistration{
		ToolName:    spec.ToolName,
		Title:       title,
		Description: spec.Description,
		Invoke: func(ctx context.Context, prompt string) (string, error) {
			return qa.Answer(ctx, prompt)
		},
	}
}

func openCollection(ctx context.Context, path, collection string, embedder model.Embedder, logger logrus.FieldLogger) (CollectionRetriever, error) {
	return retrieval.OpenCollection(ctx, path, collection, embedder, logger)
}
