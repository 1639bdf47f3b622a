// Package provision installs the Ollama runtime and pulls the configured
// models.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/config"
	"github.com/Dirstral/ragmcp/internal/logging"
)

const (
	defaultReadyAttempts = 20
	defaultReadyInterval = 500 * time.Millisecond
)

// ErrUnsupportedPlatform is returned when brew installation is requested
// outside macOS.
var ErrUnsupportedPlatform = errors.New("brew installation is only supported on macOS")

type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with their output attached to Stdout and Stderr.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

type ModelPuller interface {
	Heartbeat(ctx context.Context) error
	Pull(ctx context.Context, name string, progress func(status string)) error
}

type ProcessSupervisor interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type Options struct {
	SkipBrew bool
}

type Installer struct {
	Runner     CommandRunner
	Supervisor ProcessSupervisor
	Client     ModelPuller
	Logger     logrus.FieldLogger

	// Out receives one line per pull status change. Nil discards them.
	Out io.Writer

	// GOOS defaults to runtime.GOOS.
	GOOS          string
	ReadyAttempts uint64
	ReadyInterval time.Duration
}

// Install installs ollama with brew, then pulls the embedding and LLM
// models. When no Ollama server answers, one is started for the duration of
// the pulls and stopped afterwards.
func (i *Installer) Install(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if i.Client == nil || i.Supervisor == nil {
		return errors.New("install: client and supervisor are required")
	}
	logger := logging.OrDiscard(i.Logger)

	if !opts.SkipBrew {
		goos := i.GOOS
		if goos == "" {
			goos = runtime.GOOS
		}
		if goos != "darwin" {
			return fmt.Errorf("%w (running on %s); install ollama manually and pass --skip-brew", ErrUnsupportedPlatform, goos)
		}
		runner := i.Runner
		if runner == nil {
			runner = ExecRunner{}
		}
		logger.Info("Installing ollama with brew")
		if err := runner.Run(ctx, "brew", "install", "ollama"); err != nil {
			return fmt.Errorf("failed to install ollama: %w", err)
		}
	}

	models := uniqueModels(cfg.Model.Embedding, cfg.Model.LLM)
	if err := i.Client.Heartbeat(ctx); err == nil {
		logger.Debug("Ollama already running")
		return i.pullAll(ctx, models, logger)
	}

	return i.Supervisor.Run(ctx, func(ctx context.Context) error {
		if err := i.waitReady(ctx); err != nil {
			return err
		}
		return i.pullAll(ctx, models, logger)
	})
}

func (i *Installer) waitReady(ctx context.Context) error {
	attempts := i.ReadyAttempts
	if attempts == 0 {
		attempts = defaultReadyAttempts
	}
	interval := i.ReadyInterval
	if interval <= 0 {
		interval = defaultReadyInterval
	}
	b := retry.WithMaxRetries(attempts-1, retry.NewConstant(interval))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := i.Client.Heartbeat(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ollama did not become ready: %w", err)
	}
	return nil
}

func (i *Installer) pullAll(ctx context.Context, models []string, logger logrus.FieldLogger) error {
	out := i.Out
	if out == nil {
		out = io.Discard
	}
	for _, name := range models {
		logger.WithField("model", name).Info("Pulling model")
		err := i.Client.Pull(ctx, name, func(status string) {
			_, _ = fmt.Fprintf(out, "%s: %s\n", name, status)
		})
		if err != nil {
			return fmt.Errorf("failed to install Ollama model %s: %w", name, err)
		}
	}
	return nil
}

func uniqueModels(names ...string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
