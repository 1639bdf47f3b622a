// Package ingest loads the documents of an index from its configured paths
// and glob patterns.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/model"
)

// LoaderVariant names a document loader strategy.
type LoaderVariant string

const (
	VariantMarkdown LoaderVariant = "markdown"
	VariantGeneric  LoaderVariant = "generic"
)

// SuffixRule selects Variant for glob patterns ending in Suffix.
type SuffixRule struct {
	Suffix  string
	Variant LoaderVariant
}

// DefaultRules maps patterns ending in "md" to the markdown loader. Every
// other pattern falls back to the generic loader.
func DefaultRules() []SuffixRule {
	return []SuffixRule{{Suffix: "md", Variant: VariantMarkdown}}
}

// SelectVariant returns the variant of the first rule whose suffix ends
// pattern, or VariantGeneric.
func SelectVariant(rules []SuffixRule, pattern string) LoaderVariant {
	for _, rule := range rules {
		if strings.HasSuffix(pattern, rule.Suffix) {
			return rule.Variant
		}
	}
	return VariantGeneric
}

// Warning records a file (or index path) that was skipped during loading.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// Service loads all documents of an index. Files that fail to load are
// skipped and reported as warnings; only context cancellation and invalid
// patterns abort a load.
type Service struct {
	Rules            []SuffixRule
	Loaders          map[LoaderVariant]model.Loader
	MaxFileSizeBytes int64
	Logger           logrus.FieldLogger
}

func NewService(logger logrus.FieldLogger) *Service {
	return &Service{
		Rules: DefaultRules(),
		Loaders: map[LoaderVariant]model.Loader{
			VariantMarkdown: NewMarkdownLoader(),
			VariantGeneric:  NewGenericLoader(),
		},
		MaxFileSizeBytes: defaultMaxFileSizeBytes,
		Logger:           logging.OrDiscard(logger),
	}
}

// WithRule returns a copy of s whose rule table checks rule first.
func (s *Service) WithRule(rule SuffixRule) *Service {
	cp := *s
	cp.Rules = append([]SuffixRule{rule}, s.Rules...)
	return &cp
}

// LoadIndex walks every path of spec, in order, under every glob pattern,
// in order, and loads the matching files.
func (s *Service) LoadIndex(ctx context.Context, spec config.IndexSpec) ([]model.Document, []Warning, error) {
	logger := logging.OrDiscard(s.Logger).WithField("tool", spec.ToolName)
	maxSize := s.MaxFileSizeBytes
	if maxSize <= 0 {
		maxSize = defaultMaxFileSizeBytes
	}

	var (
		docs     []model.Document
		warnings []Warning
	)
	warn := func(path string, err error) {
		logger.WithError(err).WithField("path", path).Warn("Skipping file")
		warnings = append(warnings, Warning{Path: path, Err: err})
	}

	for _, root := range spec.Paths {
		logger.Infof("Indexing path: %s", root)
		for _, pattern := range spec.GlobPatterns {
			logger.Infof("Globbing: %s", pattern)

			matcher, err := CompileMatcher(pattern)
			if err != nil {
				return nil, nil, err
			}
			variant := SelectVariant(s.Rules, pattern)
			loader, ok := s.Loaders[variant]
			if !ok {
				return nil, nil, fmt.Errorf("no loader registered for variant %q", variant)
			}

			files, err := discoverFiles(ctx, root, matcher.Match, warn)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, nil, ctxErr
				}
				warn(root, err)
				continue
			}

			for _, file := range files {
				if err := ctx.Err(); err != nil {
					return nil, nil, err
				}
				if file.SizeBytes == 0 {
					continue
				}
				if file.SizeBytes > maxSize {
					warn(file.AbsPath, fmt.Errorf("file size %d exceeds limit %d", file.SizeBytes, maxSize))
					continue
				}
				loaded, err := loader.Load(ctx, file.AbsPath)
				if err != nil {
					warn(file.AbsPath, err)
					continue
				}
				for _, doc := range loaded {
					if strings.TrimSpace(doc.Text) == "" {
						continue
					}
					if doc.Metadata == nil {
						doc.Metadata = map[string]string{model.MetaSource: file.AbsPath}
					}
					doc.Metadata[model.MetaLoader] = string(variant)
					docs = append(docs, doc)
				}
			}
			logger.WithField("files", len(files)).Debug("Pattern loaded")
		}
	}
	return docs, warnings, nil
}
