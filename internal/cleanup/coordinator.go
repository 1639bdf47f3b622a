// Package cleanup removes index directories whose tool is no longer
// configured, after confirmation.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/state"
)

// ErrDeletionFailed is returned when a confirmed removal fails.
var ErrDeletionFailed = errors.New("orphaned index removal failed")

// Candidate is an orphaned index directory.
type Candidate struct {
	Name string
	Path string
}

type Result struct {
	Removed []string
	Kept    []string
}

type Coordinator struct {
	Policy ConfirmPolicy
	Logger logrus.FieldLogger

	// RemoveAll defaults to os.RemoveAll.
	RemoveAll func(path string) error
}

func NewCoordinator(policy ConfirmPolicy, logger logrus.FieldLogger) *Coordinator {
	return &Coordinator{Policy: policy, Logger: logging.OrDiscard(logger)}
}

// Orphans returns every directory under the storage root that does not
// belong to a configured tool, sorted by name.
func (c *Coordinator) Orphans(cfg *config.Config) ([]Candidate, error) {
	stored, err := state.ListStoredToolNames(cfg)
	if err != nil {
		return nil, err
	}
	configured := cfg.ToolNameSet()

	orphans := make([]Candidate, 0)
	for name := range stored {
		if _, ok := configured[name]; ok {
			continue
		}
		orphans = append(orphans, Candidate{Name: name, Path: filepath.Join(cfg.StoragePath, name)})
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Name < orphans[j].Name })
	return orphans, nil
}

// Run confirms and removes each orphan in name order. It stops at the first
// failed removal or confirmation error.
func (c *Coordinator) Run(ctx context.Context, cfg *config.Config) (Result, error) {
	var result Result
	if c.Policy == nil {
		return result, errors.New("cleanup: confirmation policy is required")
	}
	logger := logging.OrDiscard(c.Logger)
	remove := c.RemoveAll
	if remove == nil {
		remove = os.RemoveAll
	}

	orphans, err := c.Orphans(cfg)
	if err != nil {
		return result, err
	}
	for _, orphan := range orphans {
		ok, err := c.Policy.Confirm(ctx, orphan)
		if err != nil {
			return result, err
		}
		if !ok {
			logger.WithField("tool", orphan.Name).Info("Keeping orphaned index")
			result.Kept = append(result.Kept, orphan.Name)
			continue
		}
		logger.Infof("Removing %s...", orphan.Path)
		if err := remove(orphan.Path); err != nil {
			return result, fmt.Errorf("%w: %s: %w", ErrDeletionFailed, orphan.Path, err)
		}
		result.Removed = append(result.Removed, orphan.Name)
	}
	return result, nil
}
