// Package cli implements the cobra-based command line of provision.
//
// The root command is the whole tool: invoked without arguments it runs
// the provisioning sequence. This file defines the root command, its
// global flags, and the translation of errors into exit codes.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bwoodyear/level-replay-provision/internal/model"
)

// Global flag variables, bound to persistent flags on the root command.
var (
	// jsonOutput switches the summary and error output to JSON.
	jsonOutput bool

	// verbose enables debug logging on stderr.
	verbose bool

	// dryRun prints the plan instead of executing it.
	dryRun bool
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision the level-replay conda environment and its editable dependencies",
		Long: `provision sets up the level-replay development environment:

  1. conda env update --name level-replay --file level-replay/environment.yml
  2. activate level-replay
  3. for baselines and procgen, in order:
       remove any existing local copy, git clone it fresh,
       and pip install -e it into level-replay

The run stops at the first failing step and exits with that step's exit
status. Nothing is rolled back. Existing baselines/ and procgen/
directories are deleted without confirmation.

Environment overrides (also read from ./.env):
  PROVISION_CONDA    conda executable (default: $CONDA_EXE, then conda)
  PROVISION_GIT      git executable (default: git)
  PROVISION_WORKDIR  directory to provision in (default: current directory)`,

		Args: cobra.NoArgs,

		// Errors are printed by Execute so the format follows --json.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotEnv(".env")
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the provisioning plan without executing it")

	return rootCmd
}

// Execute runs the root command and exits the process with the resulting
// code. SIGINT cancels the run, killing the child process of the current step.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, rootCmd, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs rootCmd and returns the exit code, printing any error to stderr.
func execute(ctx context.Context, rootCmd *cobra.Command, stderr io.Writer) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return int(model.ExitSuccess)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(stderr, cliErr.Code, cliErr.Message, cliErr.Err)
		return int(cliErr.Code)
	}

	// Flag parsing and argument errors come from cobra as plain errors.
	printError(stderr, model.ExitGeneralError, err.Error(), nil)
	return int(model.ExitGeneralError)
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, code model.ExitCode, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"message": message,
			"code":    int(code),
		}
		if underlying != nil {
			errObj["detail"] = underlying.Error()
		}
		data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "%s %s: %v\n", styles.fail.Render("Error:"), message, underlying)
	} else {
		fmt.Fprintf(w, "%s %s\n", styles.fail.Render("Error:"), message)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
