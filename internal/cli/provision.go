package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/bwoodyear/level-replay-provision/internal/conda"
	"github.com/bwoodyear/level-replay-provision/internal/ctxlog"
	"github.com/bwoodyear/level-replay-provision/internal/fsutil"
	"github.com/bwoodyear/level-replay-provision/internal/gitrepo"
	"github.com/bwoodyear/level-replay-provision/internal/model"
	"github.com/bwoodyear/level-replay-provision/internal/pip"
	"github.com/bwoodyear/level-replay-provision/internal/provision"
	"github.com/bwoodyear/level-replay-provision/internal/shell"
)

// EnvWorkDir names the environment variable that overrides the directory
// provisioning runs in.
const EnvWorkDir = "PROVISION_WORKDIR"

// configFor builds the run configuration for a work directory. Tests
// replace it to point the repositories at local remotes.
var configFor = model.DefaultConfig

// loadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone, and a missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return model.WrapCLIError(model.ExitGeneralError, "failed to load "+path, err)
}

// resolveWorkDir returns the absolute directory to provision in.
func resolveWorkDir() (string, error) {
	dir := os.Getenv(EnvWorkDir)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
		}
		return cwd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "failed to resolve "+EnvWorkDir, err)
	}
	return abs, nil
}

// runProvision is the orchestration entry point of the root command.
func runProvision(ctx context.Context, stdout, stderr io.Writer) error {
	workDir, err := resolveWorkDir()
	if err != nil {
		return err
	}

	cfg := configFor(workDir)
	if err := cfg.Validate(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid provisioning configuration", err)
	}

	if dryRun {
		return printPlan(stdout, cfg)
	}

	// Tool output streams through. Under --json, stdout is reserved for
	// the summary, so child stdout goes to stderr as well.
	runner := &shell.Runner{Stdout: stdout, Stderr: stderr}
	if jsonOutput {
		runner.Stdout = stderr
	}

	p := provision.New(cfg, provision.Collaborators{
		Env: conda.NewManager("", runner),
		Git: gitrepo.NewManager("", runner),
		Pip: pip.NewInstaller(runner),
		FS:  fsutil.NewRemover(),
	})

	logger := ctxlog.New(stderr, verbose)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("provisioning", "run", p.RunID(), "workdir", workDir, "env", cfg.EnvName, "repos", len(cfg.Repos))

	if !jsonOutput {
		p.WithObserver(newProgress(stdout, cfg))
	}

	res, err := p.Run(ctx)
	if jsonOutput {
		printResultJSON(stdout, res, err)
	} else if err == nil {
		printResultText(stdout, res)
	}
	return err
}
