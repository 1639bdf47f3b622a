package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"syscall"
)

// Process is a launched child the supervisor can signal and wait for.
type Process interface {
	Pid() int
	// Terminate asks the process to exit.
	Terminate() error
	Kill() error
	// Wait blocks until the process exits. It is called exactly once.
	Wait() error
}

type ProcessLauncher interface {
	Launch(command []string) (Process, error)
}

// ExecLauncher starts commands with os/exec. Standard input, output and
// error are all attached to the null device.
type ExecLauncher struct{}

func (ExecLauncher) Launch(command []string) (Process, error) {
	if len(command) == 0 {
		return nil, errors.New("command is required")
	}
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Terminate() error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	err := p.cmd.Process.Signal(syscall.SIGTERM)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}
