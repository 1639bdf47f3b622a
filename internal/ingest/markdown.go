package ingest

import (
	"context"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dirstral/ragmcp/internal/model"
)

// MarkdownLoader keeps markdown structure intact and lifts a YAML front
// matter title into the document metadata.
type MarkdownLoader struct{}

func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{}
}

func (l *MarkdownLoader) Load(ctx context.Context, path string) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	body, title := splitFrontMatter(normalizeUTF8(content))
	meta := fileMetadata(path, "text/markdown")
	if title != "" {
		meta[model.MetaTitle] = title
	}
	return []model.Document{{Text: body, Metadata: meta}}, nil
}

// splitFrontMatter strips a leading "---" delimited YAML block. Malformed
// front matter is left in the body.
func splitFrontMatter(text string) (body, title string) {
	if !strings.HasPrefix(text, "---\n") {
		return text, ""
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return text, ""
	}
	block := rest[:end]
	after := rest[end+len("\n---"):]
	if nl := strings.IndexByte(after, '\n'); nl >= 0 {
		if strings.TrimSpace(after[:nl]) != "" {
			return text, ""
		}
		after = after[nl+1:]
	} else if strings.TrimSpace(after) != "" {
		return text, ""
	} else {
		after = ""
	}

	var front map[string]any
	if err := yaml.Unmarshal([]byte(block), &front); err != nil {
		return text, ""
	}
	if t, ok := front["title"].(string); ok {
		title = strings.TrimSpace(t)
	}
	return after, title
}
