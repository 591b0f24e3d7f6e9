package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwoodyear/level-replay-provision/internal/model"
	"github.com/bwoodyear/level-replay-provision/internal/shell"
)

// EnvBinary names the environment variable that overrides the git binary.
const EnvBinary = "PROVISION_GIT"

// Manager provides Git operations by invoking the git CLI.
type Manager struct {
	// bin is the git executable, "git" unless overridden.
	bin string

	runner *shell.Runner
}

// NewManager creates a Manager that runs bin through runner. An empty bin
// falls back to $PROVISION_GIT, then to "git" on PATH.
func NewManager(bin string, runner *shell.Runner) *Manager {
	if bin == "" {
		bin = os.Getenv(EnvBinary)
	}
	if bin == "" {
		bin = "git"
	}
	if runner == nil {
		runner = shell.NewRunner()
	}
	return &Manager{bin: bin, runner: runner}
}

// Binary returns the git executable this Manager runs.
func (m *Manager) Binary() string {
	return m.bin
}

// Clone runs `git clone <url> <dir>`. A relative dir is resolved against
// the process working directory.
//
// The target must not exist or must be empty; the provisioner removes it
// beforehand. Clone itself never deletes anything.
func (m *Manager) Clone(ctx context.Context, url, dir string) error {
	parent, base := filepath.Split(filepath.Clean(dir))
	cmd := shell.Command{
		Name: m.bin,
		Args: []string{"clone", url, base},
		Dir:  parent,
	}
	if err := m.runner.Run(ctx, cmd); err != nil {
		return model.WrapCommandError(model.ExitGitError, fmt.Sprintf("failed to clone %s into %s", url, dir), err)
	}
	return nil
}

// IsRepository checks whether path is the root of a Git working tree,
// i.e. contains a .git directory or a .git file with a "gitdir:" pointer.
func (m *Manager) IsRepository(path string) bool {
	gitPath := filepath.Join(path, ".git")

	info, err := os.Lstat(gitPath)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return true
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

// RemoteURL returns the URL of the "origin" remote of the repository at path.
func (m *Manager) RemoteURL(ctx context.Context, path string) (string, error) {
	out, err := m.output(ctx, path, "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Head returns the commit SHA checked out in the repository at path.
func (m *Manager) Head(ctx context.Context, path string) (string, error) {
	out, err := m.output(ctx, path, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// output executes a git command in repoPath and returns its stdout.
//
// The repoPath parameter is passed to git via the -C flag, which causes git
// to change to that directory before doing anything else.
func (m *Manager) output(ctx context.Context, repoPath string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)
	out, err := m.runner.Output(ctx, shell.Command{Name: m.bin, Args: fullArgs})
	if err != nil {
		return "", model.WrapCommandError(model.ExitGitError, fmt.Sprintf("git %s failed", strings.Join(args, " ")), err)
	}
	return out, nil
}
