package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

type recordingLoader struct {
	variant LoaderVariant
	paths   []string
	fail    map[string]error
}

func (l *recordingLoader) Load(_ context.Context, path string) ([]model.Document, error) {
	l.paths = append(l.paths, path)
	if err, ok := l.fail[filepath.Base(path)]; ok {
		return nil, err
	}
	return []model.Document{{Text: "content of " + filepath.Base(path), Metadata: map[string]string{model.MetaSource: path}}}, nil
}

func recordingService() (*Service, *recordingLoader, *recordingLoader) {
	md := &recordingLoader{variant: VariantMarkdown}
	generic := &recordingLoader{variant: VariantGeneric}
	svc := NewService(nil)
	svc.Loaders = map[LoaderVariant]model.Loader{VariantMarkdown: md, VariantGeneric: generic}
	return svc, md, generic
}

func TestLoadIndex_SelectsLoaderPerPattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "intro.md", "# Intro")
	writeFile(t, root, "guides/setup.md", "# Setup")
	writeFile(t, root, "notes.txt", "plain")
	writeFile(t, root, "guides/faq.txt", "faq")
	writeFile(t, root, "node_modules/pkg/readme.md", "skip me")

	svc, md, generic := recordingService()
	spec := config.IndexSpec{ToolName: "wiki", Paths: []string{root}, GlobPatterns: []string{"**/*.md", "**/*.txt"}}

	docs, warnings, err := svc.LoadIndex(context.Background(), spec)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(md.paths) != 2 || len(generic.paths) != 2 {
		t.Fatalf("expected 2 markdown and 2 generic loads, got %v / %v", md.paths, generic.paths)
	}
	for _, p := range md.paths {
		if !strings.HasSuffix(p, ".md") {
			t.Fatalf("markdown loader got %s", p)
		}
	}
	for _, p := range generic.paths {
		if !strings.HasSuffix(p, ".txt") {
			t.Fatalf("generic loader got %s", p)
		}
	}
	if len(docs) != 4 {
		t.Fatalf("expected 4 documents, got %d", len(docs))
	}
	// Patterns are processed in order, files in lexical order.
	wantOrder := []string{"setup.md", "intro.md", "faq.txt", "notes.txt"}
	for i, want := range wantOrder {
		if filepath.Base(docs[i].Source()) != want {
			t.Fatalf("doc %d: expected %s, got %s", i, want, docs[i].Source())
		}
	}
	if docs[0].Metadata[model.MetaLoader] != string(VariantMarkdown) || docs[3].Metadata[model.MetaLoader] != string(VariantGeneric) {
		t.Fatalf("loader metadata not recorded: %v %v", docs[0].Metadata, docs[3].Metadata)
	}
}

func TestLoadIndex_SkipsAndCollectsFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "c.txt", "c")

	svc, _, generic := recordingService()
	generic.fail = map[string]error{"b.txt": errors.New("unreadable")}
	missing := filepath.Join(root, "does-not-exist")
	spec := config.IndexSpec{ToolName: "t", Paths: []string{missing, root}, GlobPatterns: []string{"*.txt"}}

	docs, warnings, err := svc.LoadIndex(context.Background(), spec)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents after skip, got %d", len(docs))
	}
	if len(warnings) != 2 {
		t.Fatalf("expected warnings for missing root and failed file, got %v", warnings)
	}
	if warnings[0].Path != missing || !strings.HasSuffix(warnings[1].Path, "b.txt") {
		t.Fatalf("unexpected warnings %v", warnings)
	}
}

func TestLoadIndex_SizeLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", strings.Repeat("x", 100))
	svc, _, generic := recordingService()
	svc.MaxFileSizeBytes = 10

	docs, warnings, err := svc.LoadIndex(context.Background(), config.IndexSpec{Paths: []string{root}, GlobPatterns: []string{"*.txt"}})
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if len(docs) != 0 || len(warnings) != 1 || len(generic.paths) != 0 {
		t.Fatalf("expected oversized file to be skipped, docs=%d warnings=%v", len(docs), warnings)
	}
}

func TestLoadIndex_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	svc, _, _ := recordingService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := svc.LoadIndex(ctx, config.IndexSpec{Paths: []string{root}, GlobPatterns: []string{"*.txt"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadIndex_RealLoaders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "doc.md", "---\ntitle: Welcome\n---\n# Hello\r\nWorld\n")
	writeFile(t, root, "page.html", "<html><body><h1>Title</h1><p>Body text</p></body></html>")
	writeFile(t, root, "data.json", `{"k": "v"}`)
	writeFile(t, root, "image.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
	writeFile(t, root, "empty.txt", "")

	svc := NewService(nil)
	spec := config.IndexSpec{ToolName: "mixed", Paths: []string{root}, GlobPatterns: []string{"**/*.md", "**/*"}}
	docs, warnings, err := svc.LoadIndex(context.Background(), spec)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}

	bySource := map[string][]model.Document{}
	for _, d := range docs {
		bySource[filepath.Base(d.Source())] = append(bySource[filepath.Base(d.Source())], d)
	}

	md := bySource["doc.md"]
	if len(md) != 2 {
		t.Fatalf("doc.md matches both patterns and should load twice, got %d", len(md))
	}
	if md[0].Metadata[model.MetaTitle] != "Welcome" || strings.Contains(md[0].Text, "title:") {
		t.Fatalf("front matter not handled: %q %v", md[0].Text, md[0].Metadata)
	}
	if strings.Contains(md[0].Text, "\r") {
		t.Fatal("line endings not normalized")
	}
	if html := bySource["page.html"]; len(html) != 1 || !strings.Contains(html[0].Text, "# Title") || !strings.Contains(html[0].Text, "Body text") {
		t.Fatalf("unexpected html conversion: %+v", html)
	}
	if js := bySource["data.json"]; len(js) != 1 || !strings.Contains(js[0].Text, `"k"`) {
		t.Fatalf("expected json loaded as text, got %+v", js)
	}
	if _, ok := bySource["empty.txt"]; ok {
		t.Fatal("empty documents should be dropped")
	}
	if len(warnings) != 1 || !strings.HasSuffix(warnings[0].Path, "image.png") || !errors.Is(warnings[0].Err, model.ErrUnsupportedContent) {
		t.Fatalf("expected one unsupported-content warning for image.png, got %v", warnings)
	}
}

func TestSplitFrontMatter(t *testing.T) {
	body, title := splitFrontMatter("---\ntitle: T\ntags: [a]\n---\nbody\n")
	if body != "body\n" || title != "T" {
		t.Fatalf("unexpected split: %q %q", body, title)
	}
	text := "---\nnot closed\nbody"
	if body, title := splitFrontMatter(text); body != text || title != "" {
		t.Fatalf("unterminated front matter must be kept: %q %q", body, title)
	}
	text = "no front matter"
	if body, _ := splitFrontMatter(text); body != text {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestMarkdownTable(t *testing.T) {
	got := markdownTable([][]string{{"a", "b"}, {"1"}, {"x|y", "2"}})
	want := "| a | b |\n| --- | --- |\n| 1 |  |\n| x\\|y | 2 |\n"
	if got != want {
		t.Fatalf("unexpected table:\n%q\nwant\n%q", got, want)
	}
}
