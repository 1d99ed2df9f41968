package spawner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/seatsforbots/sdk/config"
)

// stopGrace is how long Stop waits after an interrupt before killing.
const stopGrace = time.Second

// Process is one managed subprocess: a spawned bot or a server.
type Process struct {
	ID      string
	Command string
	Args    []string
	Env     map[string]string

	cmd       *exec.Cmd
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
	startTime time.Time
	endTime   time.Time
	mu        sync.RWMutex
	done      chan struct{}
	exitErr   error
}

// NewProcess creates a process manager. The process starts with Start and is
// killed when ctx is cancelled.
func NewProcess(ctx context.Context, id, command string, args []string, env map[string]string, logger *log.Logger) *Process {
	procCtx, cancel := context.WithCancel(ctx)

	return &Process{
		ID:      id,
		Command: command,
		Args:    args,
		Env:     env,
		ctx:     procCtx,
		cancel:  cancel,
		logger:  logger.With("process", id),
		done:    make(chan struct{}),
	}
}

// Start launches the process and begins streaming its output into the log.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started")
	}

	p.cmd = exec.CommandContext(p.ctx, p.Command, p.Args...)

	p.cmd.Env = os.Environ()
	for k, v := range p.Env {
		p.cmd.Env = config.SetEnv(p.cmd.Env, k, v)
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	p.startTime = time.Now()
	p.logger.Info("process started", "command", p.Command, "args", p.Args)

	go p.readOutput("stdout", stdout)
	go p.readOutput("stderr", stderr)
	go p.monitor()

	return nil
}

// Stop interrupts the process and kills it if it has not exited after the
// grace period. Stopping a finished process is a no-op.
func (p *Process) Stop() error {
	p.mu.RLock()
	cmd := p.cmd
	p.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to stop process: %w", err)
		}
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(stopGrace):
	}

	p.logger.Debug("force killing process")
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process: %w", err)
	}
	<-p.done
	return nil
}

// Wait blocks until the process exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// IsAlive reports whether the process is still running.
func (p *Process) IsAlive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// monitor waits for the process to exit and records the outcome. done is
// closed only after the exit error is recorded.
func (p *Process) monitor() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.endTime = time.Now()
	p.exitErr = err
	p.mu.Unlock()
	close(p.done)

	duration := time.Since(p.startTime)
	switch {
	case err == nil:
		p.logger.Info("process exited", "duration", duration)
	case terminatedBySignal(err):
		p.logger.Info("process terminated by signal", "duration", duration)
	default:
		p.logger.Error("process exited with error", "error", err, "duration", duration)
	}
}

func terminatedBySignal(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	switch exitErr.String() {
	case "signal: killed", "signal: terminated", "signal: interrupt":
		return true
	}
	return false
}

// readOutput streams one pipe into the log, stderr at info and stdout at
// debug. Bot processes log to stderr, so their output stays visible.
func (p *Process) readOutput(stream string, pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if stream == "stderr" {
			p.logger.Info(line)
		} else {
			p.logger.Debug(line, "stream", stream)
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-p.done:
			// Pipe closed by process exit.
		default:
			p.logger.Error("error reading process output", "stream", stream, "error", err)
		}
	}
}
