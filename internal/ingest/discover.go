package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultMaxFileSizeBytes int64 = 20 * 1024 * 1024

var defaultExcludedDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
	"__pycache__":  {},
	".venv":        {},
}

// DiscoveredFile holds metadata collected while walking an index path.
type DiscoveredFile struct {
	AbsPath   string
	RelPath   string
	SizeBytes int64
}

// discoverFiles walks rootDir in lexical order and returns the regular files
// whose slash-separated relative path satisfies match. Symlinks are not
// followed. Entries that cannot be read are passed to onSkip and the walk
// continues.
func discoverFiles(ctx context.Context, rootDir string, match func(relPath string) bool, onSkip func(path string, err error)) ([]DiscoveredFile, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	rootInfo, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	files := make([]DiscoveredFile, 0, 64)
	walker := discoverWalker{match: match, onSkip: onSkip, files: &files}
	if err := walker.walkDir(ctx, absRoot, ""); err != nil {
		return nil, err
	}
	return files, nil
}

func shouldSkipDirectory(name string) bool {
	_, ok := defaultExcludedDirs[strings.TrimSpace(name)]
	return ok
}

type discoverWalker struct {
	match  func(relPath string) bool
	onSkip func(path string, err error)
	files  *[]DiscoveredFile
}

func (w *discoverWalker) skip(path string, err error) {
	if w.onSkip != nil {
		w.onSkip(path, err)
	}
}

func (w *discoverWalker) walkDir(ctx context.Context, absDir, relDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		w.skip(absDir, err)
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		relPath := name
		if relDir != "" {
			relPath = relDir + "/" + name
		}
		fullPath := filepath.Join(absDir, name)

		info, err := os.Lstat(fullPath)
		if err != nil {
			w.skip(fullPath, err)
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if info.IsDir() {
			if shouldSkipDirectory(name) {
				continue
			}
			if err := w.walkDir(ctx, fullPath, relPath); err != nil {
				return err
			}
			continue
		}
		if !info.Mode().IsRegular() || !w.match(relPath) {
			continue
		}
		*w.files = append(*w.files, DiscoveredFile{
			AbsPath:   fullPath,
			RelPath:   relPath,
			SizeBytes: info.Size(),
		})
	}
	return nil
}
