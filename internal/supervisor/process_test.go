package supervisor

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireUnixCommand(t *testing.T, name string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX signals")
	}
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestExecLauncher_StopEndsChildGracefully(t *testing.T) {
	requireUnixCommand(t, "sleep")
	logger, logs := bufferLogger()
	s := New(Options{Command: []string{"sleep", "30"}, Logger: logger})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	started := time.Now()
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed >= DefaultGracePeriod {
		t.Fatalf("SIGTERM should end sleep well within the grace period, took %s", elapsed)
	}
	select {
	case <-s.Exited():
	default:
		t.Fatal("child still running after Stop")
	}
	out := logs.String()
	if !strings.Contains(out, "terminated gracefully") || strings.Contains(out, "killing") {
		t.Fatalf("expected graceful path only, got %q", out)
	}
}

func TestExecProcess_SignalsAfterExitAreNoops(t *testing.T) {
	requireUnixCommand(t, "true")
	proc, err := ExecLauncher{}.Launch([]string{"true"})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if err := proc.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if err := proc.Terminate(); err != nil {
		t.Fatalf("Terminate after exit = %v, want nil", err)
	}
	if err := proc.Kill(); err != nil {
		t.Fatalf("Kill after exit = %v, want nil", err)
	}
}

func TestExecLauncher_EmptyCommand(t *testing.T) {
	if _, err := (ExecLauncher{}).Launch(nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}
