// Package chunking splits loaded documents into overlapping chunks sized for
// embedding.
package chunking

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Dirstral/ragmcp/internal/model"
	"github.com/Dirstral/ragmcp/internal/protocol"
)

// DefaultSeparators prefers paragraph, then line, then word boundaries before
// cutting between characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter is a recursive character splitter. Sizes are measured in runes.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// DefaultSplitter returns the fixed chunking policy used for every index.
func DefaultSplitter() Splitter {
	return Splitter{
		ChunkSize:    protocol.DefaultChunkSize,
		ChunkOverlap: protocol.DefaultChunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// SplitDocuments chunks every document, copying its metadata and recording
// the chunk ordinal within the document.
func (s Splitter) SplitDocuments(docs []model.Document) []model.Chunk {
	chunks := make([]model.Chunk, 0, len(docs))
	for _, doc := range docs {
		for i, text := range s.SplitText(doc.Text) {
			meta := model.CloneMetadata(doc.Metadata)
			meta[model.MetaChunk] = strconv.Itoa(i)
			chunks = append(chunks, model.Chunk{Text: text, Metadata: meta})
		}
	}
	return chunks
}

// SplitText returns the chunks of text. Whitespace-only input yields none.
func (s Splitter) SplitText(text string) []string {
	s = s.normalized()
	return s.split(text, s.Separators)
}

func (s Splitter) normalized() Splitter {
	if s.ChunkSize <= 0 {
		s.ChunkSize = protocol.DefaultChunkSize
	}
	if s.ChunkOverlap < 0 {
		s.ChunkOverlap = 0
	}
	if s.ChunkOverlap >= s.ChunkSize {
		s.ChunkOverlap = s.ChunkSize - 1
	}
	if len(s.Separators) == 0 {
		s.Separators = DefaultSeparators
	}
	return s
}

func (s Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var remaining []string
	for i, candidate := range separators {
		if candidate == "" {
			separator = ""
			break
		}
		if strings.Contains(text, candidate) {
			separator = candidate
			remaining = separators[i+1:]
			break
		}
	}

	var (
		out  []string
		good []string
	)
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(remaining) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, s.split(piece, remaining)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge packs pieces into chunks of at most ChunkSize runes, starting each
// new chunk with up to ChunkOverlap runes of trailing pieces from the
// previous one.
func (s Splitter) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.ChunkSize && len(current) > 0 {
			if doc := joinTrimmed(current); doc != "" {
				out = append(out, doc)
			}
			for len(current) > 0 && (total > s.ChunkOverlap || total+n > s.ChunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := joinTrimmed(current); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeepSeparator splits text on sep, keeping sep at the start of each
// following piece so joining the pieces restores the text.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func joinTrimmed(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
