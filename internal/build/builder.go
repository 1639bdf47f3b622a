// Package build turns configured indices into persisted collections.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/chunking"
	"github.com/Dirstral/ragmcp/internal/cleanup"
	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/ingest"
	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/model"
	"github.com/Dirstral/ragmcp/internal/protocol"
	"github.com/Dirstral/ragmcp/internal/state"
	"github.com/Dirstral/ragmcp/internal/store"
)

// ErrToolNotFound is matched by errors naming a tool that is not configured.
var ErrToolNotFound = errors.New("tool not found in config")

type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("Tool %q not found in config.", e.Name)
}

func (e *ToolNotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

type DocumentLoader interface {
	LoadIndex(ctx context.Context, spec config.IndexSpec) ([]model.Document, []ingest.Warning, error)
}

type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []model.Chunk) ([]model.EmbeddedChunk, error)
}

type Options struct {
	// Clean runs the cleanup coordinator before building.
	Clean bool
}

// Stage is reported through Builder.Progress.
type Stage string

const (
	StageLoading   Stage = "loading"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StageWriting   Stage = "writing"
	StageDone      Stage = "done"
)

type Event struct {
	Tool  string
	Stage Stage
	Done  int
	Total int
}

type ToolReport struct {
	ToolName  string
	Documents int
	Chunks    int
	Warnings  []ingest.Warning
	Duration  time.Duration
}

type Report struct {
	Cleanup cleanup.Result
	Built   []ToolReport
}

type Builder struct {
	Config   *config.Config
	Loader   DocumentLoader
	Splitter chunking.Splitter
	Embedder ChunkEmbedder
	Cleanup  *cleanup.Coordinator
	Logger   logrus.FieldLogger

	// Progress, when set, receives stage changes. It may be called from
	// several goroutines during embedding.
	Progress func(Event)
}

// Build rebuilds the selected tools, or every configured tool when selected
// is empty. Unknown names fail before anything is written. Tools are built
// one after another and the first failure aborts the run; tools built
// before it keep their new collections.
func (b *Builder) Build(ctx context.Context, selected []string, opts Options) (Report, error) {
	var report Report
	if b.Config == nil || b.Loader == nil || b.Embedder == nil {
		return report, errors.New("build: config, loader, and embedder are required")
	}
	logger := logging.OrDiscard(b.Logger)

	targets, err := resolveTargets(b.Config, selected)
	if err != nil {
		return report, err
	}

	if opts.Clean {
		if b.Cleanup == nil {
			return report, errors.New("build: cleanup requested without a coordinator")
		}
		result, err := b.Cleanup.Run(ctx, b.Config)
		report.Cleanup = result
		if err != nil {
			return report, err
		}
	}

	if err := state.EnsureStorageRoot(b.Config); err != nil {
		return report, err
	}

	for _, spec := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		logger.Infof("Building index for tool %q. Please wait.", spec.ToolName)
		tr, err := b.buildOne(ctx, spec, logger.WithField("tool", spec.ToolName))
		if err != nil {
			return report, fmt.Errorf("build %q: %w", spec.ToolName, err)
		}
		report.Built = append(report.Built, tr)
		logger.Infof("Finished building index for tool %q.", spec.ToolName)
	}
	return report, nil
}

func (b *Builder) buildOne(ctx context.Context, spec config.IndexSpec, logger logrus.FieldLogger) (ToolReport, error) {
	started := time.Now()
	tr := ToolReport{ToolName: spec.ToolName}

	b.emit(Event{Tool: spec.ToolName, Stage: StageLoading})
	docs, warnings, err := b.Loader.LoadIndex(ctx, spec)
	if err != nil {
		return tr, err
	}
	tr.Documents = len(docs)
	tr.Warnings = warnings

	b.emit(Event{Tool: spec.ToolName, Stage: StageChunking, Total: len(docs)})
	splitter := b.Splitter
	if splitter.ChunkSize <= 0 {
		splitter = chunking.DefaultSplitter()
	}
	chunks := splitter.SplitDocuments(docs)
	tr.Chunks = len(chunks)
	if len(chunks) == 0 {
		logger.Warn("No documents matched; writing an empty collection")
	}

	b.emit(Event{Tool: spec.ToolName, Stage: StageEmbedding, Total: len(chunks)})
	embedded, err := b.Embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return tr, err
	}

	b.emit(Event{Tool: spec.ToolName, Stage: StageWriting, Total: len(embedded)})
	if err := b.writeCollection(ctx, spec.ToolName, embedded); err != nil {
		return tr, err
	}

	tr.Duration = time.Since(started)
	logger.WithFields(logrus.Fields{
		"documents": tr.Documents,
		"chunks":    tr.Chunks,
		"warnings":  len(tr.Warnings),
		"duration":  tr.Duration.Round(time.Millisecond).String(),
	}).Debug("tool built")
	b.emit(Event{Tool: spec.ToolName, Stage: StageDone, Done: tr.Chunks, Total: tr.Chunks})
	return tr, nil
}

// writeCollection writes the collection next to the marker and renames it
// into place, so a failed build leaves the previous index intact.
func (b *Builder) writeCollection(ctx context.Context, toolName string, chunks []model.EmbeddedChunk) (err error) {
	dir := state.IndexDirectory(b.Config, toolName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	marker := state.MarkerPath(b.Config, toolName)
	tmp := marker + protocol.BuildingSuffix
	removeDatabase(tmp)

	defer func() {
		if err != nil {
			removeDatabase(tmp)
		}
	}()

	st := store.NewSQLiteStore(tmp)
	if err := st.CreateCollection(ctx, toolName, b.Config.Model.Embedding); err != nil {
		_ = st.Close()
		return err
	}
	if err := st.AddChunks(ctx, toolName, chunks); err != nil {
		_ = st.Close()
		return err
	}
	if err := st.Close(); err != nil {
		return err
	}

	removeSidecars(marker)
	if err := os.Rename(tmp, marker); err != nil {
		return fmt.Errorf("install collection: %w", err)
	}
	return nil
}

func (b *Builder) emit(ev Event) {
	if b.Progress != nil {
		b.Progress(ev)
	}
}

func resolveTargets(cfg *config.Config, selected []string) ([]config.IndexSpec, error) {
	if len(selected) == 0 {
		out := make([]config.IndexSpec, len(cfg.Indices))
		copy(out, cfg.Indices)
		return out, nil
	}

	seen := make(map[string]struct{}, len(selected))
	out := make([]config.IndexSpec, 0, len(selected))
	for _, name := range selected {
		spec, ok := cfg.Index(name)
		if !ok {
			return nil, &ToolNotFoundError{Name: name}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, spec)
	}
	return out, nil
}

func removeDatabase(path string) {
	_ = os.Remove(path)
	removeSidecars(path)
}

func removeSidecars(path string) {
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
}
