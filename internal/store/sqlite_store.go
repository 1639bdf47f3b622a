// Package store persists one tool's vector collection in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Dirstral/ragmcp/internal/model"
)

// CollectionInfo describes a stored collection.
type CollectionInfo struct {
	Name           string
	EmbeddingModel string
	Dimension      int
	ChunkCount     int
	CreatedUnix    int64
}

// StoredVector is a chunk's embedding keyed by its chunk id.
type StoredVector struct {
	ChunkID uint64
	Vector  []float32
}

type SQLiteStore struct {
	path     string
	readOnly bool

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore returns a writable store. The database file and schema are
// created by Init.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// OpenReadOnly opens an existing collection database for queries only.
func OpenReadOnly(ctx context.Context, path string) (*SQLiteStore, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrNotFound, path)
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("collection database is not a regular file: %s", path)
	}
	s := &SQLiteStore{path: path, readOnly: true}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	if s.readOnly {
		if _, err := db.ExecContext(ctx, `PRAGMA query_only=ON;`); err != nil {
			_ = db.Close()
			return err
		}
		s.db = db
		return nil
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}

	schema := `
CREATE TABLE IF NOT EXISTS collections (
  name TEXT PRIMARY KEY,
  embedding_model TEXT NOT NULL DEFAULT '',
  dimension INTEGER NOT NULL DEFAULT 0,
  created_unix INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
  chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
  chunk_uuid TEXT NOT NULL UNIQUE,
  collection TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  ordinal INTEGER NOT NULL DEFAULT 0,
  text TEXT NOT NULL,
  metadata TEXT NOT NULL DEFAULT '{}',
  embedding BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// CreateCollection removes every chunk of name and records the embedding
// model that the following AddChunks calls use.
func (s *SQLiteStore) CreateCollection(ctx context.Context, name, embeddingModel string) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("collection name is required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO collections(name, embedding_model, dimension, created_unix)
		 VALUES(?, ?, 0, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   embedding_model=excluded.embedding_model,
		   dimension=0,
		   created_unix=excluded.created_unix`,
		name,
		embeddingModel,
		time.Now().Unix(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// AddChunks appends embedded chunks to a collection. All vectors in a
// collection must share one dimension.
func (s *SQLiteStore) AddChunks(ctx context.Context, collection string, chunks []model.EmbeddedChunk) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	info, err := s.Collection(ctx, collection)
	if err != nil {
		return err
	}
	dim := info.Dimension
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
		if dim == 0 {
			dim = len(c.Vector)
		}
		if len(c.Vector) != dim {
			return fmt.Errorf("vector dimension mismatch in collection %q: got %d, want %d", collection, len(c.Vector), dim)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO chunks(chunk_uuid, collection, source, ordinal, text, metadata, embedding)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Chunk.Metadata)
		if err != nil {
			return err
		}
		ordinal := c.Chunk.Ordinal()
		if ordinal < 0 {
			ordinal = 0
		}
		if _, err := stmt.ExecContext(
			ctx,
			uuid.NewString(),
			collection,
			defaultIfEmpty(c.Chunk.Metadata[model.MetaSource], ""),
			ordinal,
			c.Chunk.Text,
			string(meta),
			encodeVector(c.Vector),
		); err != nil {
			return err
		}
	}

	if info.Dimension == 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE name = ?`, dim, collection); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Collection returns the collection's description, or model.ErrNotFound.
func (s *SQLiteStore) Collection(ctx context.Context, name string) (CollectionInfo, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return CollectionInfo{}, err
	}

	info := CollectionInfo{Name: name}
	row := db.QueryRowContext(
		ctx,
		`SELECT c.embedding_model, c.dimension, c.created_unix,
		        (SELECT COUNT(*) FROM chunks WHERE collection = c.name)
		 FROM collections c WHERE c.name = ?`,
		name,
	)
	if err := row.Scan(&info.EmbeddingModel, &info.Dimension, &info.CreatedUnix, &info.ChunkCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CollectionInfo{}, fmt.Errorf("%w: collection %q", model.ErrNotFound, name)
		}
		return CollectionInfo{}, err
	}
	return info, nil
}

// ChunkVectors returns every embedding of a collection ordered by chunk id.
func (s *SQLiteStore) ChunkVectors(ctx context.Context, collection string) ([]StoredVector, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT chunk_id, embedding FROM chunks WHERE collection = ? ORDER BY chunk_id`, collection)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]StoredVector, 0, 256)
	for rows.Next() {
		var (
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", id, err)
		}
		out = append(out, StoredVector{ChunkID: uint64(id), Vector: vec})
	}
	return out, rows.Err()
}

// ChunksByID loads chunks of collection in the order of ids. Ids outside the
// collection are skipped.
func (s *SQLiteStore) ChunksByID(ctx context.Context, collection string, ids []uint64) ([]model.Chunk, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Chunk{}, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		if id > math.MaxInt64 {
			return nil, fmt.Errorf("chunk id %d exceeds supported range", id)
		}
		placeholders = append(placeholders, "?")
		args = append(args, int64(id))
	}

	rows, err := db.QueryContext(
		ctx,
		`SELECT chunk_id, text, metadata FROM chunks
		 WHERE collection = ? AND chunk_id IN (`+strings.Join(placeholders, ",")+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[uint64]model.Chunk, len(ids))
	for rows.Next() {
		var (
			id   int64
			text string
			meta string
		)
		if err := rows.Scan(&id, &text, &meta); err != nil {
			return nil, err
		}
		metadata := map[string]string{}
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			return nil, fmt.Errorf("chunk %d metadata: %w", id, err)
		}
		byID[uint64(id)] = model.Chunk{ID: uint64(id), Text: text, Metadata: metadata}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) ensureDB(ctx context.Context) (*sql.DB, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("sqlite db not initialized")
	}
	return s.db, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.New("embedding blob length " + strconv.Itoa(len(b)) + " is not a multiple of 4")
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

func defaultIfEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
