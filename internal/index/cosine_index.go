package index

import (
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/logging"
)

// CosineIndex is an exact in-memory nearest neighbour index over the vectors
// of one collection.
type CosineIndex struct {
	mu      sync.RWMutex
	vectors map[uint64][]float32

	logger logrus.FieldLogger

	// DimensionMismatch counts stored vectors skipped during a search
	// because their length differed from the query.
	DimensionMismatch atomic.Int64
}

func NewCosineIndex(logger logrus.FieldLogger) *CosineIndex {
	return &CosineIndex{
		vectors: make(map[uint64][]float32),
		logger:  logging.OrDiscard(logger),
	}
}

func (i *CosineIndex) Add(label uint64, vector []float32) error {
	if len(vector) == 0 {
		return errors.New("vector cannot be empty")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	copied := make([]float32, len(vector))
	copy(copied, vector)
	i.vectors[label] = copied
	return nil
}

func (i *CosineIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.vectors)
}

// Search returns up to k labels ordered by descending cosine similarity.
// Equal scores are ordered by label.
func (i *CosineIndex) Search(vector []float32, k int) ([]uint64, []float32, error) {
	if len(vector) == 0 {
		return nil, nil, errors.New("query vector cannot be empty")
	}
	if k <= 0 {
		return []uint64{}, []float32{}, nil
	}

	type scored struct {
		label uint64
		score float32
	}
	type candidate struct {
		label  uint64
		vector []float32
	}
	var (
		mismatched []uint64
		candidates []candidate
	)

	i.mu.RLock()
	for label, cand := range i.vectors {
		if len(cand) != len(vector) {
			mismatched = append(mismatched, label)
			i.DimensionMismatch.Add(1)
			continue
		}
		candidates = append(candidates, candidate{label, cand})
	}
	i.mu.RUnlock()

	for _, label := range mismatched {
		i.logger.WithFields(logrus.Fields{"label": label, "query_len": len(vector)}).Warn("dimension mismatch")
	}

	items := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, scored{label: c.label, score: cosineSimilarity(vector, c.vector)})
	}

	sort.Slice(items, func(a, b int) bool {
		if items[a].score == items[b].score {
			return items[a].label < items[b].label
		}
		return items[a].score > items[b].score
	})

	if len(items) > k {
		items = items[:k]
	}

	labels := make([]uint64, len(items))
	scores := make([]float32, len(items))
	for idx, item := range items {
		labels[idx] = item.label
		scores[idx] = item.score
	}
	return labels, scores, nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, magA, magB float32
	for idx := range a {
		dot += a[idx] * b[idx]
		magA += a[idx] * a[idx]
		magB += b[idx] * b[idx]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(magA*magB)))
}
