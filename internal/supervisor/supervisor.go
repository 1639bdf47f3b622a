// Package supervisor owns the lifetime of the external generation server
// process (ollama serve) for the duration of a serve or install session.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/logging"
)

const DefaultGracePeriod = 5 * time.Second

// ErrAlreadyStarted is returned by Start on a supervisor that is running.
var ErrAlreadyStarted = errors.New("generation process already started")

type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Options struct {
	// Command defaults to "ollama serve".
	Command     []string
	GracePeriod time.Duration
	Launcher    ProcessLauncher
	Logger      logrus.FieldLogger
}

type Supervisor struct {
	command  []string
	grace    time.Duration
	launcher ProcessLauncher
	logger   logrus.FieldLogger

	mu      sync.Mutex
	state   State
	proc    Process
	exited  chan struct{}
	waitErr error
}

func New(opts Options) *Supervisor {
	command := opts.Command
	if len(command) == 0 {
		command = []string{"ollama", "serve"}
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = ExecLauncher{}
	}
	return &Supervisor{
		command:  append([]string(nil), command...),
		grace:    grace,
		launcher: launcher,
		logger:   logging.OrDiscard(opts.Logger),
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Exited is closed when the running process exits for any reason. It is nil
// before the first Start.
func (s *Supervisor) Exited() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// ExitErr returns the error reported by the last process once it exited.
func (s *Supervisor) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitErr
}

// Start launches the process. There is no readiness probe: the supervisor is
// running as soon as the launch succeeds.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	proc, err := s.launcher.Launch(s.command)
	if err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("start %s: %w", strings.Join(s.command, " "), err)
	}

	exited := make(chan struct{})
	s.mu.Lock()
	s.proc = proc
	s.exited = exited
	s.waitErr = nil
	s.state = StateRunning
	s.mu.Unlock()

	go func() {
		err := proc.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()
		close(exited)
	}()

	s.logger.WithField("pid", proc.Pid()).Infof("Started %s", strings.Join(s.command, " "))
	return nil
}

// Stop terminates the process, waiting up to the grace period before
// killing it. Stopping a supervisor that is not running does nothing.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	proc := s.proc
	exited := s.exited
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.proc = nil
		s.mu.Unlock()
	}()

	logger := s.logger.WithField("pid", proc.Pid())
	if err := proc.Terminate(); err != nil {
		logger.WithError(err).Warn("Failed to signal generation process")
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case <-exited:
		logger.Info("Generation process terminated gracefully")
		return nil
	case <-timer.C:
	}

	logger.Warnf("Generation process did not exit within %s; killing it", s.grace)
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("kill generation process: %w", err)
	}
	<-exited
	logger.Warn("Generation process killed")
	return nil
}

// Run starts the process, calls fn, and stops the process on every return
// path, including panics in fn.
func (s *Supervisor) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := s.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
	}()
	return fn(ctx)
}
