// Package state answers questions about the persisted indices under the
// configured storage root. Apart from EnsureStorageRoot it never writes.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/protocol"
)

// IndexDirectory returns storageRoot/toolName.
func IndexDirectory(cfg *config.Config, toolName string) string {
	return filepath.Join(cfg.StoragePath, toolName)
}

// MarkerPath returns the collection database whose presence means the tool
// has a built index.
func MarkerPath(cfg *config.Config, toolName string) string {
	return filepath.Join(IndexDirectory(cfg, toolName), protocol.MarkerFileName)
}

// HasPersistedIndex reports whether the marker file exists for toolName.
func HasPersistedIndex(cfg *config.Config, toolName string) bool {
	info, err := os.Stat(MarkerPath(cfg, toolName))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// ListStoredToolNames returns the names of all top-level directories under
// the storage root. A missing storage root yields an empty set.
func ListStoredToolNames(cfg *config.Config) (map[string]struct{}, error) {
	entries, err := os.ReadDir(cfg.StoragePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("read storage root %s: %w", cfg.StoragePath, err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names[entry.Name()] = struct{}{}
		}
	}
	return names, nil
}

// EnsureStorageRoot creates the storage root if needed.
func EnsureStorageRoot(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create storage root %s: %w", cfg.StoragePath, err)
	}
	return nil
}
