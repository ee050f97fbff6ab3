// Package build compiles and runs generated backend source. Two drivers are
// provided: a local process driver and a Docker driver.
package build

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultTimeout bounds one build when none is configured.
	DefaultTimeout = 10 * time.Minute

	// DefaultStartupWait is how long a started service is given before probing.
	DefaultStartupWait = 5 * time.Second

	// maxOutputSize caps captured build output (10MB).
	maxOutputSize = 10 * 1024 * 1024

	// maxDiagnostic caps the diagnostic handed back to the LLM.
	maxDiagnostic = 8000
)

// ErrExited is wrapped when a started service exits before it is probed.
var ErrExited = errors.New("service exited during startup")

// Result is the outcome of one compile step.
type Result struct {
	Success    bool
	Diagnostic string
}

// Builder compiles the persisted source and starts the compiled service.
// An error from Build means the build could not be attempted at all; a
// compile failure is reported through Result.
type Builder interface {
	Build(ctx context.Context) (Result, error)
	Start(ctx context.Context) (Handle, error)
}

// Handle is a running service.
type Handle interface {
	BaseURL() string
	Stop(ctx context.Context) error
}

// Options are shared by both drivers.
type Options struct {
	// Dir is the project directory the build runs in.
	Dir string
	// Command compiles the project.
	Command []string
	// RunCommand starts the compiled service.
	RunCommand []string
	// Port the service listens on.
	Port        int
	StartupWait time.Duration
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.StartupWait < 0 {
		o.StartupWait = 0
	}
	return o
}

func (o Options) validate() error {
	if len(o.Command) == 0 {
		return fmt.Errorf("build command is empty")
	}
	if len(o.RunCommand) == 0 {
		return fmt.Errorf("run command is empty")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid service port %d", o.Port)
	}
	return nil
}

func baseURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// waitStartup sleeps for d unless exited closes or ctx is cancelled first.
func waitStartup(ctx context.Context, d time.Duration, exited <-chan struct{}) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-exited:
		return ErrExited
	case <-ctx.Done():
		return ctx.Err()
	}
}
