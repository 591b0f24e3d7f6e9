package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/bwoodyear/level-replay-provision/internal/ctxlog"
)

// stderrTailLines bounds how much child stderr is kept for error messages.
// Conda and pip print long progress logs; only the last lines say why
// they failed.
const stderrTailLines = 20

// Statuses reported when the binary cannot be started at all, matching
// what a POSIX shell returns.
const (
	notExecutableStatus = 126
	notFoundStatus      = 127
)

// Command describes one child process invocation.
type Command struct {
	// Name is the binary to run, looked up on PATH when not absolute.
	Name string

	// Args are passed verbatim.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env replaces the child environment when non-nil.
	Env []string
}

// String returns the command line as a user would type it.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ExitError reports a child process that failed to start or exited non-zero.
type ExitError struct {
	// Command is the command line that failed.
	Command string

	// Code is the child's exit status, 126/127 when the binary could not be
	// executed or found, or -1 when the child was killed by a signal.
	Code int

	// Stderr is the tail of the child's standard error.
	Stderr string

	// Err is the underlying os/exec error.
	Err error
}

// Error satisfies the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	return msg
}

// Unwrap returns the underlying os/exec error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitStatus returns the child's exit status.
func (e *ExitError) ExitStatus() int {
	return e.Code
}

// NotFound reports whether the binary could not be located.
func (e *ExitError) NotFound() bool {
	return e.Code == notFoundStatus && (errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist))
}

// Runner executes commands, streaming their output.
type Runner struct {
	// Stdout receives the child's standard output. Nil discards it.
	Stdout io.Writer

	// Stderr receives the child's standard error. Nil discards it; the
	// tail is still captured for ExitError.
	Stderr io.Writer
}

// NewRunner returns a Runner that streams to the process's own stdout and stderr.
func NewRunner() *Runner {
	return &Runner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes cmd and blocks until it exits. Cancelling ctx kills the child.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	return r.run(ctx, cmd, r.Stdout)
}

// Output executes cmd and returns its standard output instead of streaming it.
func (r *Runner) Output(ctx context.Context, cmd Command) (string, error) {
	var stdout strings.Builder
	err := r.run(ctx, cmd, &stdout)
	if err != nil {
		return "", err
	}
	return stdout.String(), nil
}

func (r *Runner) run(ctx context.Context, cmd Command, stdout io.Writer) error {
	ctxlog.FromContext(ctx).Debug("exec", "cmd", cmd.String(), "dir", cmd.Dir)

	// #nosec G204: commands are built from fixed configuration, not user input
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env

	tail := &tailBuffer{max: stderrTailLines}
	c.Stdout = discardIfNil(stdout)
	c.Stderr = io.MultiWriter(discardIfNil(r.Stderr), tail)

	err := c.Run()
	if err == nil {
		return nil
	}

	var code int
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		// -1 when the child was killed, e.g. by context cancellation.
		code = exitErr.ExitCode()
	case ctx.Err() != nil:
		code = -1
		err = ctx.Err()
	case errors.Is(err, fs.ErrPermission):
		code = notExecutableStatus
	default:
		code = notFoundStatus
	}

	return &ExitError{
		Command: cmd.String(),
		Code:    code,
		Stderr:  tail.String(),
		Err:     err,
	}
}

func discardIfNil(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
