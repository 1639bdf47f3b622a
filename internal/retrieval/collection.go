package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/index"
	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/model"
	"github.com/Dirstral/ragmcp/internal/protocol"
	"github.com/Dirstral/ragmcp/internal/store"
)

// CollectionRetriever answers similarity queries against a single persisted
// collection. It never reads any other collection.
type CollectionRetriever struct {
	collection string
	store      *store.SQLiteStore
	index      *index.CosineIndex
	embedder   model.Embedder
	logger     logrus.FieldLogger

	closeOnce sync.Once
}

// OpenCollection opens the collection database at path read-only and loads
// its vectors into memory.
func OpenCollection(ctx context.Context, path, collection string, embedder model.Embedder, logger logrus.FieldLogger) (*CollectionRetriever, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	logger = logging.OrDiscard(logger).WithField("collection", collection)

	st, err := store.OpenReadOnly(ctx, path)
	if err != nil {
		return nil, err
	}

	info, err := st.Collection(ctx, collection)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	vectors, err := st.ChunkVectors(ctx, collection)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load vectors for %q: %w", collection, err)
	}

	idx := index.NewCosineIndex(logger)
	for _, v := range vectors {
		if err := idx.Add(v.ChunkID, v.Vector); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("load chunk %d: %w", v.ChunkID, err)
		}
	}
	logger.WithFields(logrus.Fields{
		"chunks":          idx.Len(),
		"embedding_model": info.EmbeddingModel,
	}).Debug("collection loaded")

	return &CollectionRetriever{
		collection: collection,
		store:      st,
		index:      idx,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

func (r *CollectionRetriever) Collection() string {
	return r.collection
}

// Retrieve embeds query and returns the k closest chunks, best first.
func (r *CollectionRetriever) Retrieve(ctx context.Context, query string, k int) ([]model.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	if k <= 0 {
		k = protocol.DefaultRetrievalK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []model.Hit{}, nil
	}

	labels, scores, err := r.index.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return []model.Hit{}, nil
	}

	chunks, err := r.store.ChunksByID(ctx, r.collection, labels)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	hits := make([]model.Hit, 0, len(labels))
	for i, label := range labels {
		c, ok := byID[label]
		if !ok {
			continue
		}
		hits = append(hits, model.Hit{
			ChunkID: label,
			Text:    c.Text,
			Source:  c.Metadata[model.MetaSource],
			Score:   scores[i],
		})
	}
	return hits, nil
}

func (r *CollectionRetriever) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.store.Close()
	})
	return err
}
