package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Dirstral/ragmcp/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st := NewSQLiteStore(filepath.Join(t.TempDir(), "collection.sqlite3"))
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return st
}

func embedded(text, source string, ordinal string, vec ...float32) model.EmbeddedChunk {
	return model.EmbeddedChunk{
		Chunk: model.Chunk{
			Text:     text,
			Metadata: map[string]string{model.MetaSource: source, model.MetaChunk: ordinal},
		},
		Vector: vec,
	}
}

func TestSQLiteStore_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if _, err := st.Collection(ctx, "docs"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before create, got %v", err)
	}
	if err := st.CreateCollection(ctx, "docs", "nomic-embed-text"); err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	err := st.AddChunks(ctx, "docs", []model.EmbeddedChunk{
		embedded("alpha", "/a.md", "0", 1, 0, 0),
		embedded("beta", "/a.md", "1", 0, 1, 0),
	})
	if err != nil {
		t.Fatalf("AddChunks failed: %v", err)
	}

	info, err := st.Collection(ctx, "docs")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	if info.EmbeddingModel != "nomic-embed-text" || info.Dimension != 3 || info.ChunkCount != 2 {
		t.Fatalf("unexpected collection info: %#v", info)
	}

	vectors, err := st.ChunkVectors(ctx, "docs")
	if err != nil {
		t.Fatalf("ChunkVectors failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if !reflect.DeepEqual(vectors[1].Vector, []float32{0, 1, 0}) {
		t.Fatalf("vector did not round-trip: %#v", vectors[1].Vector)
	}

	ids := []uint64{vectors[1].ChunkID, vectors[0].ChunkID}
	chunks, err := st.ChunksByID(ctx, "docs", ids)
	if err != nil {
		t.Fatalf("ChunksByID failed: %v", err)
	}
	if len(chunks) != 2 || chunks[0].Text != "beta" || chunks[1].Text != "alpha" {
		t.Fatalf("expected chunks in requested order, got %#v", chunks)
	}
	if chunks[0].Metadata[model.MetaSource] != "/a.md" || chunks[0].Ordinal() != 1 {
		t.Fatalf("metadata did not round-trip: %#v", chunks[0].Metadata)
	}
}

func TestSQLiteStore_CreateCollectionReplacesRows(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.CreateCollection(ctx, "docs", "m1"); err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	if err := st.AddChunks(ctx, "docs", []model.EmbeddedChunk{embedded("old", "/a", "0", 1, 2)}); err != nil {
		t.Fatalf("AddChunks failed: %v", err)
	}
	if err := st.CreateCollection(ctx, "docs", "m2"); err != nil {
		t.Fatalf("second CreateCollection failed: %v", err)
	}
	info, err := st.Collection(ctx, "docs")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	if info.ChunkCount != 0 || info.Dimension != 0 || info.EmbeddingModel != "m2" {
		t.Fatalf("expected empty rebuilt collection, got %#v", info)
	}
	// a fresh collection accepts a new dimension
	if err := st.AddChunks(ctx, "docs", []model.EmbeddedChunk{embedded("new", "/a", "0", 1, 2, 3)}); err != nil {
		t.Fatalf("AddChunks after rebuild failed: %v", err)
	}
}

func TestSQLiteStore_AddChunksRejectsBadVectors(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.AddChunks(ctx, "missing", []model.EmbeddedChunk{embedded("x", "/a", "0", 1)}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown collection, got %v", err)
	}
	if err := st.CreateCollection(ctx, "docs", "m"); err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	if err := st.AddChunks(ctx, "docs", []model.EmbeddedChunk{embedded("x", "/a", "0")}); err == nil {
		t.Fatalf("expected empty vector to be rejected")
	}
	err := st.AddChunks(ctx, "docs", []model.EmbeddedChunk{
		embedded("x", "/a", "0", 1, 2),
		embedded("y", "/a", "1", 1, 2, 3),
	})
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	info, err := st.Collection(ctx, "docs")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	if info.ChunkCount != 0 {
		t.Fatalf("rejected batch must not be written, got %d chunks", info.ChunkCount)
	}
}

func TestSQLiteStore_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for _, name := range []string{"a", "b"} {
		if err := st.CreateCollection(ctx, name, "m"); err != nil {
			t.Fatalf("CreateCollection(%s) failed: %v", name, err)
		}
	}
	if err := st.AddChunks(ctx, "a", []model.EmbeddedChunk{embedded("in a", "/a", "0", 1)}); err != nil {
		t.Fatalf("AddChunks failed: %v", err)
	}
	vectors, err := st.ChunkVectors(ctx, "b")
	if err != nil {
		t.Fatalf("ChunkVectors failed: %v", err)
	}
	if len(vectors) != 0 {
		t.Fatalf("collection b must be empty, got %#v", vectors)
	}
	aVectors, err := st.ChunkVectors(ctx, "a")
	if err != nil {
		t.Fatalf("ChunkVectors failed: %v", err)
	}
	chunks, err := st.ChunksByID(ctx, "b", []uint64{aVectors[0].ChunkID})
	if err != nil {
		t.Fatalf("ChunksByID failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("ChunksByID must not cross collections, got %#v", chunks)
	}
}

func TestOpenReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "collection.sqlite3")

	if _, err := OpenReadOnly(ctx, path); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing database, got %v", err)
	}

	rw := NewSQLiteStore(path)
	if err := rw.CreateCollection(ctx, "docs", "m"); err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	if err := rw.AddChunks(ctx, "docs", []model.EmbeddedChunk{embedded("x", "/a", "0", 1, 1)}); err != nil {
		t.Fatalf("AddChunks failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ro, err := OpenReadOnly(ctx, path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer func() { _ = ro.Close() }()

	info, err := ro.Collection(ctx, "docs")
	if err != nil || info.ChunkCount != 1 {
		t.Fatalf("unexpected info=%#v err=%v", info, err)
	}
	if err := ro.CreateCollection(ctx, "docs", "m"); err == nil {
		t.Fatalf("expected write on read-only store to fail")
	}
}

func TestDecodeVectorRejectsTruncatedBlob(t *testing.T) {
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated blob")
	}
	got, err := decodeVector(encodeVector([]float32{0.5, -2}))
	if err != nil {
		t.Fatalf("decodeVector failed: %v", err)
	}
	if !reflect.DeepEqual(got, []float32{0.5, -2}) {
		t.Fatalf("unexpected decode: %#v", got)
	}
}
