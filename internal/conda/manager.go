package conda

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/bwoodyear/level-replay-provision/internal/model"
	"github.com/bwoodyear/level-replay-provision/internal/shell"
)

// EnvBinary names the environment variable that overrides the conda binary.
// When unset, CONDA_EXE (exported by `conda init` shells) is consulted.
const EnvBinary = "PROVISION_CONDA"

// Manager runs conda commands.
type Manager struct {
	bin    string
	runner *shell.Runner
}

// NewManager creates a Manager that runs bin through runner. An empty bin
// falls back to $PROVISION_CONDA, then $CONDA_EXE, then "conda" on PATH.
func NewManager(bin string, runner *shell.Runner) *Manager {
	for _, candidate := range []string{bin, os.Getenv(EnvBinary), os.Getenv("CONDA_EXE")} {
		if candidate != "" {
			bin = candidate
			break
		}
	}
	if bin == "" {
		bin = "conda"
	}
	if runner == nil {
		runner = shell.NewRunner()
	}
	return &Manager{bin: bin, runner: runner}
}

// Binary returns the conda executable this Manager runs.
func (m *Manager) Binary() string {
	return m.bin
}

// Update runs `conda env update --name <name> --file <specFile>`.
//
// conda creates the environment when it does not exist and updates it in
// place when it does, so repeated runs are safe.
func (m *Manager) Update(ctx context.Context, name, specFile string) error {
	cmd := shell.Command{
		Name: m.bin,
		Args: []string{"env", "update", "--name", name, "--file", specFile},
	}
	if err := m.runner.Run(ctx, cmd); err != nil {
		return model.WrapCommandError(model.ExitEnvUpdateFailed,
			fmt.Sprintf("failed to update environment %q from %s", name, specFile), err)
	}
	return nil
}

// info is the subset of `conda info --json` used to locate environments.
type info struct {
	RootPrefix string   `json:"root_prefix"`
	Envs       []string `json:"envs"`
}

// Activate locates the environment called name, applies its activation to
// the current process, and returns it.
//
// Returns a CLIError with ExitActivationFailed when conda does not list an
// environment of that name.
func (m *Manager) Activate(ctx context.Context, name string) (*Activation, error) {
	prefix, err := m.Prefix(ctx, name)
	if err != nil {
		return nil, err
	}

	act := &Activation{Name: name, Prefix: prefix}
	if err := act.Apply(); err != nil {
		return nil, model.WrapCLIError(model.ExitActivationFailed,
			fmt.Sprintf("failed to activate environment %q", name), err)
	}
	return act, nil
}

// Prefix returns the installation prefix of the environment called name.
func (m *Manager) Prefix(ctx context.Context, name string) (string, error) {
	out, err := m.runner.Output(ctx, shell.Command{
		Name: m.bin,
		Args: []string{"info", "--json"},
	})
	if err != nil {
		return "", model.WrapCommandError(model.ExitActivationFailed, "failed to list conda environments", err)
	}

	inf, err := parseInfo([]byte(out))
	if err != nil {
		return "", model.WrapCLIError(model.ExitActivationFailed, "failed to parse conda info output", err)
	}

	prefix, ok := inf.find(name)
	if !ok {
		return "", model.NewCLIError(model.ExitActivationFailed,
			fmt.Sprintf("environment %q does not exist", name))
	}
	return prefix, nil
}

// parseInfo decodes `conda info --json` output. jsonc.ToJSON tolerates
// stray comments and trailing commas, which some conda plugins emit.
func parseInfo(data []byte) (*info, error) {
	var inf info
	if err := json.Unmarshal(jsonc.ToJSON(data), &inf); err != nil {
		return nil, err
	}
	return &inf, nil
}

// find resolves an environment name the way `conda activate` does:
// "base" (or "root") is the root prefix, any other name is an entry of
// envs whose directory name matches.
func (inf *info) find(name string) (string, bool) {
	if name == "base" || name == "root" {
		return inf.RootPrefix, inf.RootPrefix != ""
	}
	for _, prefix := range inf.Envs {
		if filepath.Clean(prefix) == filepath.Clean(inf.RootPrefix) {
			continue
		}
		if filepath.Base(prefix) == name {
			return prefix, true
		}
	}
	return "", false
}
