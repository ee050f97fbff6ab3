package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProcessBuilder runs the build and the service as local processes.
type ProcessBuilder struct {
	opts   Options
	logger *zap.Logger
}

// NewProcessBuilder validates opts and returns a local process driver.
func NewProcessBuilder(opts Options, logger *zap.Logger) (*ProcessBuilder, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessBuilder{opts: opts, logger: logger.With(zap.String("component", "process_builder"))}, nil
}

// Build runs the build command in Dir. A non-zero exit is a failed Result
// holding the tail of the combined output.
func (b *ProcessBuilder) Build(ctx context.Context) (Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, b.opts.Command[0], b.opts.Command[1:]...)
	cmd.Dir = b.opts.Dir
	cmd.WaitDelay = time.Second

	out := &bytes.Buffer{}
	lw := &limitedWriter{w: out, limit: maxOutputSize}
	cmd.Stdout = lw
	cmd.Stderr = lw

	err := cmd.Run()
	if err == nil {
		b.logger.Info("build succeeded", zap.String("event_type", "build_succeeded"))
		return Result{Success: true, Diagnostic: tail(out.String(), maxDiagnostic)}, nil
	}

	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		return Result{
			Success:    false,
			Diagnostic: fmt.Sprintf("build timed out after %s\n%s", b.opts.Timeout, tail(out.String(), maxDiagnostic)),
		}, nil
	case errors.As(err, &exitErr):
		b.logger.Info("build failed",
			zap.String("event_type", "build_failed"),
			zap.Int("exit_code", exitErr.ExitCode()))
		return Result{Success: false, Diagnostic: tail(out.String(), maxDiagnostic)}, nil
	default:
		return Result{}, fmt.Errorf("failed to run build command %v: %w", b.opts.Command, err)
	}
}

// Start launches the run command and waits StartupWait before handing back
// the handle. A process that exits during the wait is reported as ErrExited
// with its output.
func (b *ProcessBuilder) Start(ctx context.Context) (Handle, error) {
	cmd := exec.Command(b.opts.RunCommand[0], b.opts.RunCommand[1:]...)
	cmd.Dir = b.opts.Dir
	setProcessGroup(cmd)

	out := &syncBuffer{}
	lw := &limitedWriter{w: out, limit: maxOutputSize}
	cmd.Stdout = lw
	cmd.Stderr = lw

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start service %v: %w", b.opts.RunCommand, err)
	}

	h := &processHandle{cmd: cmd, url: baseURL(b.opts.Port), done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	b.logger.Info("service started",
		zap.String("event_type", "service_started"),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("base_url", h.url))

	if err := waitStartup(ctx, b.opts.StartupWait, h.done); err != nil {
		_ = h.Stop(context.Background())
		if errors.Is(err, ErrExited) {
			return nil, fmt.Errorf("%w: %v\n%s", ErrExited, h.waitErr, tail(out.String(), maxDiagnostic))
		}
		return nil, err
	}
	return h, nil
}

type processHandle struct {
	cmd     *exec.Cmd
	url     string
	done    chan struct{}
	waitErr error
	once    sync.Once
}

func (h *processHandle) BaseURL() string { return h.url }

// Stop kills the service's process group and waits for it to exit.
func (h *processHandle) Stop(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}
		if kerr := killProcessGroup(h.cmd); kerr != nil {
			err = fmt.Errorf("failed to kill service: %w", kerr)
			return
		}
		select {
		case <-h.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
