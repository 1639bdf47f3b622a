package model

import (
	"fmt"
	"strconv"
)

// Metadata keys shared by loaders, the chunker and the collection store.
const (
	MetaSource   = "source"
	MetaLoader   = "loader"
	MetaMIME     = "mime"
	MetaModified = "modified"
	MetaCreated  = "created"
	MetaSheet    = "sheet"
	MetaTitle    = "title"
	MetaChunk    = "chunk"
)

// Document is the raw text of one loaded file (or one part of it, such as a
// spreadsheet sheet).
type Document struct {
	Text     string
	Metadata map[string]string
}

// Source returns the path the document was loaded from.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Chunk is a piece of a document sized for embedding.
type Chunk struct {
	ID       uint64
	Text     string
	Metadata map[string]string
}

// Ordinal returns the chunk's position inside its source document, or -1
// when the chunk carries no ordinal.
func (c Chunk) Ordinal() int {
	v, ok := c.Metadata[MetaChunk]
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// EmbeddedChunk pairs a chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float32
}

// Validate reports whether the pair can be written to a collection.
func (e EmbeddedChunk) Validate() error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("chunk %q: empty vector", truncate(e.Chunk.Text, 40))
	}
	return nil
}

// Hit is one retrieval result.
type Hit struct {
	ChunkID uint64
	Text    string
	Source  string
	Score   float32
}

// CloneMetadata returns a copy of m that callers may mutate.
func CloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
