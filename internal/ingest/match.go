package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher reports whether a slash-separated relative path matches a
// configured glob pattern. Matching is recursive: "*.md" and "**/*.md" both
// match markdown files at any depth, including the walk root.
type Matcher struct {
	pattern string
	globs   []glob.Glob
}

// CompileMatcher compiles pattern with '/' as the only separator, so "*"
// stays within one path segment and "**" spans segments.
func CompileMatcher(pattern string) (*Matcher, error) {
	normalized := strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(pattern)), "./")
	base := normalized
	for strings.HasPrefix(base, "**/") {
		base = strings.TrimPrefix(base, "**/")
	}
	if base == "" {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}

	m := &Matcher{pattern: pattern}
	for _, p := range []string{base, "**/" + base} {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, g := range m.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

func (m *Matcher) String() string {
	return m.pattern
}
