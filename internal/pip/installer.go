// Package pip installs Python packages into an activated conda environment.
//
// pip is always run as `<env python> -m pip`, never as a bare `pip`, so the
// package lands in the activated environment even when another pip comes
// first on PATH.
package pip

import (
	"context"
	"fmt"
	"os"

	"github.com/bwoodyear/level-replay-provision/internal/conda"
	"github.com/bwoodyear/level-replay-provision/internal/model"
	"github.com/bwoodyear/level-replay-provision/internal/shell"
)

// Installer runs pip install commands.
type Installer struct {
	runner *shell.Runner
}

// NewInstaller creates an Installer that runs through runner.
func NewInstaller(runner *shell.Runner) *Installer {
	if runner == nil {
		runner = shell.NewRunner()
	}
	return &Installer{runner: runner}
}

// InstallEditable runs `python -m pip install -e <dir>` with the
// environment's interpreter, registering dir as a development install: the
// environment links to the source tree instead of copying it.
func (i *Installer) InstallEditable(ctx context.Context, act *conda.Activation, dir string) error {
	if act == nil {
		return model.NewCLIError(model.ExitInstallFailed, fmt.Sprintf("cannot install %s: no active environment", dir))
	}

	cmd := shell.Command{
		Name: act.Python(),
		Args: []string{"-m", "pip", "install", "-e", dir},
		Env:  act.Environ(os.Environ()),
	}
	if err := i.runner.Run(ctx, cmd); err != nil {
		return model.WrapCommandError(model.ExitInstallFailed,
			fmt.Sprintf("failed to install %s into environment %q", dir, act.Name), err)
	}
	return nil
}
