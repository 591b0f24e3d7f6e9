// Package model defines the domain types and value objects for the
// provision CLI.
//
// This package contains pure data structures with no external dependencies.
// The configuration is fixed at build time (see DefaultConfig); nothing here
// is persisted, and every value is reconstructed on each run.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
