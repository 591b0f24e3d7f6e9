package model

import (
	"errors"
	"fmt"
)

// ExitCode defines the process exit codes of the provision CLI.
//
// A failing child process (conda, git, pip) takes precedence: its own exit
// status is propagated unchanged. These codes are used only when a step
// fails without producing one, e.g. a permission error while removing a
// directory or an environment missing from `conda env list`.
type ExitCode int

const (
	// ExitSuccess indicates every step completed.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitEnvUpdateFailed indicates the environment update step failed.
	ExitEnvUpdateFailed ExitCode = 2

	// ExitActivationFailed indicates the environment could not be activated,
	// typically because it does not exist after the update.
	ExitActivationFailed ExitCode = 3

	// ExitFilesystemError indicates an existing repository directory could
	// not be removed.
	ExitFilesystemError ExitCode = 4

	// ExitGitError indicates a clone failed.
	ExitGitError ExitCode = 5

	// ExitInstallFailed indicates an editable install failed.
	ExitInstallFailed ExitCode = 6

	// ExitCommandNotFound indicates a required tool binary is not on PATH.
	// The value follows the shell convention for "command not found".
	ExitCommandNotFound ExitCode = 127

	// ExitInterrupted indicates the run was cancelled by SIGINT (128 + 2).
	ExitInterrupted ExitCode = 130
)

// CodeForStep returns the category exit code of a step kind.
func CodeForStep(kind StepKind) ExitCode {
	switch kind {
	case StepEnvUpdate:
		return ExitEnvUpdateFailed
	case StepEnvActivate:
		return ExitActivationFailed
	case StepRemoveDir:
		return ExitFilesystemError
	case StepClone:
		return ExitGitError
	case StepInstall:
		return ExitInstallFailed
	default:
		return ExitGeneralError
	}
}

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// exitStatuser is implemented by errors that carry a child process exit
// status (see shell.ExitError).
type exitStatuser interface {
	ExitStatus() int
}

// WrapCommandError wraps err like WrapCLIError, but when err carries a
// positive child exit status that status becomes the exit code instead of
// code.
func WrapCommandError(code ExitCode, message string, err error) *CLIError {
	var es exitStatuser
	if errors.As(err, &es) && es.ExitStatus() > 0 {
		code = ExitCode(es.ExitStatus())
	}
	return WrapCLIError(code, message, err)
}

// ExitCodeOf returns the exit code for err: ExitSuccess for nil, the code
// of the outermost CLIError in the chain, or ExitGeneralError otherwise.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return ExitGeneralError
}
