package supervisor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeProcess struct {
	mu sync.Mutex

	ignoreTerminate bool
	terminated      int
	killed          int
	exit            chan struct{}
	exitOnce        sync.Once
}

func newFakeProcess(ignoreTerminate bool) *fakeProcess {
	return &fakeProcess{ignoreTerminate: ignoreTerminate, exit: make(chan struct{})}
}

func (p *fakeProcess) Pid() int { return 4242 }

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminated++
	p.mu.Unlock()
	if !p.ignoreTerminate {
		p.finish()
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed++
	p.mu.Unlock()
	p.finish()
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProcess) finish() {
	p.exitOnce.Do(func() { close(p.exit) })
}

func (p *fakeProcess) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated, p.killed
}

type fakeLauncher struct {
	proc     *fakeProcess
	err      error
	launches int
	command  []string
}

func (l *fakeLauncher) Launch(command []string) (Process, error) {
	l.launches++
	l.command = command
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

func bufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger, &buf
}

func TestSupervisor_GracefulStop(t *testing.T) {
	proc := newFakeProcess(false)
	launcher := &fakeLauncher{proc: proc}
	logger, logs := bufferLogger()
	s := New(Options{Launcher: launcher, Logger: logger})
	if s.grace != DefaultGracePeriod || DefaultGracePeriod != 5*time.Second {
		t.Fatalf("expected default grace period of 5s, got %s", s.grace)
	}

	if s.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", s.State())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.State() != StateRunning {
		t.Fatalf("expected running, got %s", s.State())
	}
	if strings.Join(launcher.command, " ") != "ollama serve" {
		t.Fatalf("unexpected default command %v", launcher.command)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	terminated, killed := proc.counts()
	if terminated != 1 || killed != 0 {
		t.Fatalf("expected terminate only, got terminate=%d kill=%d", terminated, killed)
	}
	if !strings.Contains(logs.String(), "terminated gracefully") {
		t.Fatalf("expected graceful log, got %q", logs.String())
	}
	if s.State() != StateStopped {
		t.Fatalf("expected stopped after Stop, got %s", s.State())
	}
}

func TestSupervisor_ForcedStopAfterGrace(t *testing.T) {
	proc := newFakeProcess(true)
	logger, logs := bufferLogger()
	s := New(Options{Launcher: &fakeLauncher{proc: proc}, GracePeriod: 20 * time.Millisecond, Logger: logger})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	started := time.Now()
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if time.Since(started) < 20*time.Millisecond {
		t.Fatalf("kill must wait for the grace period")
	}
	terminated, killed := proc.counts()
	if terminated != 1 || killed != 1 {
		t.Fatalf("expected terminate then kill, got terminate=%d kill=%d", terminated, killed)
	}
	out := logs.String()
	if !strings.Contains(out, "did not exit within") || !strings.Contains(out, "killed") {
		t.Fatalf("expected forced termination logs, got %q", out)
	}
	if strings.Contains(out, "gracefully") {
		t.Fatalf("forced path must not log graceful termination: %q", out)
	}
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	s := New(Options{Launcher: &fakeLauncher{proc: newFakeProcess(false)}})
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop before Start must be a no-op, got %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop must be a no-op, got %v", err)
	}
}

func TestSupervisor_StartTwiceFails(t *testing.T) {
	s := New(Options{Launcher: &fakeLauncher{proc: newFakeProcess(false)}})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = s.Stop() }()
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSupervisor_LaunchFailure(t *testing.T) {
	launchErr := errors.New("executable file not found")
	s := New(Options{Launcher: &fakeLauncher{err: launchErr}})
	if err := s.Start(context.Background()); !errors.Is(err, launchErr) {
		t.Fatalf("expected launch error, got %v", err)
	}
	if s.State() != StateStopped {
		t.Fatalf("failed start must leave the supervisor stopped, got %s", s.State())
	}
}

func TestSupervisor_RunStopsOnEveryPath(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		proc := newFakeProcess(false)
		s := New(Options{Launcher: &fakeLauncher{proc: proc}})
		var sawRunning bool
		err := s.Run(context.Background(), func(context.Context) error {
			sawRunning = s.State() == StateRunning
			return nil
		})
		if err != nil || !sawRunning {
			t.Fatalf("unexpected run result err=%v running=%v", err, sawRunning)
		}
		if terminated, _ := proc.counts(); terminated != 1 {
			t.Fatalf("expected stop after success")
		}
	})

	t.Run("error", func(t *testing.T) {
		proc := newFakeProcess(false)
		s := New(Options{Launcher: &fakeLauncher{proc: proc}})
		boom := errors.New("registry failed")
		if err := s.Run(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected fn error, got %v", err)
		}
		if terminated, _ := proc.counts(); terminated != 1 {
			t.Fatalf("expected stop after error")
		}
	})

	t.Run("panic", func(t *testing.T) {
		proc := newFakeProcess(false)
		s := New(Options{Launcher: &fakeLauncher{proc: proc}})
		func() {
			defer func() { _ = recover() }()
			_ = s.Run(context.Background(), func(context.Context) error { panic("boom") })
		}()
		if terminated, _ := proc.counts(); terminated != 1 {
			t.Fatalf("expected stop after panic")
		}
	})

	t.Run("start failure skips fn", func(t *testing.T) {
		s := New(Options{Launcher: &fakeLauncher{err: errors.New("nope")}})
		called := false
		if err := s.Run(context.Background(), func(context.Context) error { called = true; return nil }); err == nil {
			t.Fatalf("expected start error")
		}
		if called {
			t.Fatalf("fn must not run when start fails")
		}
	})
}

func TestSupervisor_ExitedClosesOnUnexpectedExit(t *testing.T) {
	proc := newFakeProcess(false)
	s := New(Options{Launcher: &fakeLauncher{proc: proc}})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	proc.finish()
	select {
	case <-s.Exited():
	case <-time.After(time.Second):
		t.Fatalf("Exited was not closed")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop after exit failed: %v", err)
	}
}
