package index

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/model"
	"github.com/Dirstral/ragmcp/internal/protocol"
)

const (
	defaultConcurrency   = 2
	defaultBatchAttempts = 3
)

// EmbeddingWorker turns chunks into embedded chunks, batch by batch.
type EmbeddingWorker struct {
	Embedder    model.Embedder
	BatchSize   int
	Concurrency int

	// Attempts bounds how many times a batch is sent when the embedder
	// fails with a transient error.
	Attempts int
	Backoff  time.Duration

	Logger logrus.FieldLogger

	// OnBatch is called after each batch with the number of chunks embedded
	// so far. Calls may come from several goroutines.
	OnBatch func(done, total int)
}

// EmbedChunks embeds every chunk and returns them in input order. Any batch
// failure fails the whole call.
func (w *EmbeddingWorker) EmbedChunks(ctx context.Context, chunks []model.Chunk) ([]model.EmbeddedChunk, error) {
	if w.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if len(chunks) == 0 {
		return []model.EmbeddedChunk{}, nil
	}

	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = protocol.DefaultEmbedBatchSize
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := logging.OrDiscard(w.Logger)

	out := make([]model.EmbeddedChunk, len(chunks))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(chunks); start += batchSize {
		start := start
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			batch := chunks[start:end]
			inputs := make([]string, len(batch))
			for idx, c := range batch {
				inputs[idx] = c.Text
			}

			vectors, err := w.embedBatch(gctx, inputs)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embed chunks %d-%d: embedding vector count mismatch: got %d, want %d", start, end-1, len(vectors), len(batch))
			}
			for idx := range batch {
				out[start+idx] = model.EmbeddedChunk{Chunk: batch[idx], Vector: vectors[idx]}
			}

			n := int(done.Add(int64(len(batch))))
			logger.WithFields(logrus.Fields{"done": n, "total": len(chunks)}).Debug("embedded batch")
			if w.OnBatch != nil {
				w.OnBatch(n, len(chunks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (w *EmbeddingWorker) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	attempts := w.Attempts
	if attempts <= 0 {
		attempts = defaultBatchAttempts
	}
	backoff := w.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	logger := logging.OrDiscard(w.Logger)

	var vectors [][]float32
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		v, err := w.Embedder.Embed(ctx, inputs)
		if err != nil {
			if isTransientEmbedError(err) && ctx.Err() == nil {
				logger.WithError(err).Warn("embedding batch failed, retrying")
				return retry.RetryableError(err)
			}
			return err
		}
		vectors = v
		return nil
	})
	return vectors, err
}

// isTransientEmbedError reports whether a failed batch is worth resending.
func isTransientEmbedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *model.ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "timeout")
}
