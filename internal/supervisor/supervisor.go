// Package supervisor launches the worker process and observes it to a terminal state.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/infra"
)

// DefaultDrainGrace is how long output is still read after the worker exits
// while a descendant keeps a stream open.
const DefaultDrainGrace = 5 * time.Second

// Config holds supervisor tuning.
type Config struct {
	DrainGrace time.Duration
}

// DefaultConfig returns default supervisor configuration.
func DefaultConfig() Config {
	return Config{DrainGrace: DefaultDrainGrace}
}

// Supervisor implements domain.WorkerLauncher.
// It holds no per-launch state; every Launch is independent.
type Supervisor struct {
	app    *infra.AppContext
	fs     domain.FileSystemManager
	config Config
	logger *zap.Logger
}

// NewSupervisor creates a supervisor resolving the worker through app.
func NewSupervisor(app *infra.AppContext, fs domain.FileSystemManager, config Config, logger *zap.Logger) *Supervisor {
	if config.DrainGrace <= 0 {
		config.DrainGrace = DefaultDrainGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{app: app, fs: fs, config: config, logger: logger}
}

// WorkerName returns the worker executable name.
func (s *Supervisor) WorkerName() string {
	return s.app.WorkerName
}

// Launch runs the worker once with args and blocks until it has exited and
// both output streams are drained. Cancelling ctx kills the worker.
func (s *Supervisor) Launch(ctx context.Context, args []string) domain.ExecutionResult {
	path := s.app.WorkerPath()
	started := time.Now()
	result := domain.ExecutionResult{
		LaunchID:     uuid.NewString(),
		ResolvedPath: path,
		StartedAt:    started.UTC(),
	}
	log := s.logger.With(zap.String("launch_id", result.LaunchID), zap.String("path", path))
	log.Info("worker resolved", zap.String("mode", string(s.app.Mode)), zap.Int("args", len(args)))

	if !s.fs.Exists(path) {
		result.Outcome = domain.OutcomeNotFound
		result.FailureReason = fmt.Sprintf("worker executable not found at %s", path)
		log.Warn("worker not found")
		return finish(result, started)
	}

	if err := ctx.Err(); err != nil {
		result.Outcome = domain.OutcomeCancelled
		result.FailureReason = fmt.Sprintf("launch cancelled before spawn: %v", err)
		return finish(result, started)
	}

	run, err := s.start(path, args)
	if err != nil {
		result.Outcome = domain.OutcomeSpawnFailed
		result.FailureReason = fmt.Sprintf("failed to start worker at %s: %v", path, err)
		log.Error("worker spawn failed", zap.Error(err))
		return finish(result, started)
	}
	log.Info("worker spawned", zap.Int("pid", run.cmd.Process.Pid))

	waitErr, cancelled, truncated := s.observe(ctx, run, log)

	result.Stdout = run.stdout.String()
	result.Stderr = run.stderr.String()
	result.OutputTruncated = truncated
	result.Outcome = domain.OutcomeExited
	if cancelled {
		result.Outcome = domain.OutcomeCancelled
	}

	code, reason := interpretExit(waitErr)
	result.ExitCode = &code
	result.FailureReason = reason
	if cancelled {
		result.FailureReason = "worker killed: launch cancelled"
	}
	result.Succeeded = !cancelled && code == 0

	result = finish(result, started)
	log.Info("worker exited",
		zap.Int("exit_code", code),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("stdout_bytes", len(result.Stdout)),
		zap.Int("stderr_bytes", len(result.Stderr)),
		zap.Bool("output_truncated", truncated),
		zap.Int64("duration_ms", result.DurationMs))
	return result
}

// spawned is one running worker with the parent's ends of its output pipes.
type spawned struct {
	cmd     *exec.Cmd
	stdoutR *os.File
	stderrR *os.File
	stdout  bytes.Buffer
	stderr  bytes.Buffer
}

// start spawns the worker with stdin on the null device and each output
// stream on its own pipe.
func (s *Supervisor) start(path string, args []string) (*spawned, error) {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	cmd := exec.Command(path, args...)
	cmd.Stdin = nil
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	startErr := cmd.Start()

	// The child holds its own copies of the write ends.
	stdoutW.Close()
	stderrW.Close()

	if startErr != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, startErr
	}
	return &spawned{cmd: cmd, stdoutR: stdoutR, stderrR: stderrR}, nil
}

// observe drains both streams and waits for exit concurrently. It returns only
// after all three tasks have finished.
func (s *Supervisor) observe(ctx context.Context, r *spawned, log *zap.Logger) (waitErr error, cancelled, truncated bool) {
	defer r.stdoutR.Close()
	defer r.stderrR.Close()

	var drains sync.WaitGroup
	drains.Add(2)

	g := new(errgroup.Group)
	g.Go(func() error {
		defer drains.Done()
		return drain(r.stdoutR, &r.stdout)
	})
	g.Go(func() error {
		defer drains.Done()
		return drain(r.stderrR, &r.stderr)
	})
	g.Go(func() error {
		cancelled, waitErr = waitForExit(ctx, r.cmd)

		drained := make(chan struct{})
		go func() {
			drains.Wait()
			close(drained)
		}()

		timer := time.NewTimer(s.config.DrainGrace)
		defer timer.Stop()
		select {
		case <-drained:
		case <-timer.C:
			// A descendant still holds a stream open.
			log.Warn("output still open after worker exit, closing streams",
				zap.Duration("grace", s.config.DrainGrace))
			truncated = true
			r.stdoutR.Close()
			r.stderrR.Close()
			<-drained
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Warn("failed to read worker output", zap.Error(err))
		truncated = true
	}
	return waitErr, cancelled, truncated
}

// waitForExit waits for the process, killing it if ctx is cancelled first.
func waitForExit(ctx context.Context, cmd *exec.Cmd) (bool, error) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return false, err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return true, <-done
	}
}

// drain reads r to completion. Closing r from another goroutine ends the read cleanly.
func drain(r io.Reader, buf *bytes.Buffer) error {
	_, err := io.Copy(buf, r)
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// interpretExit maps the wait error to an exit code and failure reason.
// Termination by signal reports -1.
func interpretExit(waitErr error) (int, string) {
	if waitErr == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code == -1 {
			return -1, fmt.Sprintf("worker terminated: %s", exitErr.ProcessState.String())
		}
		return code, fmt.Sprintf("worker exited with code %d", code)
	}
	return -1, fmt.Sprintf("failed to wait for worker: %v", waitErr)
}

func finish(r domain.ExecutionResult, started time.Time) domain.ExecutionResult {
	r.DurationMs = time.Since(started).Milliseconds()
	return r
}

// Ensure Supervisor implements domain.WorkerLauncher.
var _ domain.WorkerLauncher = (*Supervisor)(nil)
