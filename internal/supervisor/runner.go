package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/denyshon/tg-load/internal/core"
)

// Process is one started worker. Done is closed when the process has
// been reaped; ExitCode is only meaningful after that.
type Process interface {
	Done() <-chan struct{}
	ExitCode() int
	Alive() bool
	Kill() error
}

// Runner starts worker processes. The indirection exists so tests can
// substitute scripted processes for real ones.
type Runner interface {
	Start(ctx context.Context, spec core.JobSpec) (Process, error)
}

// ExecRunner re-execs the current binary with the fetch subcommand, so
// one deployable artifact serves as both the bot backend and the worker.
type ExecRunner struct{}

func (ExecRunner) Start(ctx context.Context, spec core.JobSpec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("supervisor: locate binary: %w", err)
	}

	cmd := exec.Command(exe, "fetch",
		"--kind", string(spec.Kind),
		"--id", spec.ID,
		"--dir", spec.Dir,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: start worker: %w", err)
	}

	p := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exitCode int
}

// reap waits for the child exactly once; every other accessor keys off
// the done channel, so the process table entry is always collected.
func (p *execProcess) reap() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
