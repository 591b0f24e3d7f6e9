package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bwoodyear/level-replay-provision/internal/conda"
	"github.com/bwoodyear/level-replay-provision/internal/model"
	"github.com/bwoodyear/level-replay-provision/internal/testutil"
)

// runCLI executes the root command with args and returns the exit code
// with captured stdout and stderr.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	code := execute(context.Background(), cmd, &stderr)
	return code, stdout.String(), stderr.String()
}

// workspace prepares a work directory with an environment file, a fake
// conda, and local remotes standing in for the GitHub repositories.
func workspace(t *testing.T, opts testutil.FakeCondaOptions, missingRemote string) (string, *testutil.FakeConda) {
	t.Helper()
	testutil.RequirePOSIX(t)
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	testutil.IsolateActivation(t)

	work := t.TempDir()
	spec := filepath.Join(work, model.DefaultSpecFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(spec), 0755))
	require.NoError(t, os.WriteFile(spec, []byte("name: level-replay\n"), 0644))

	remotes := t.TempDir()
	for _, r := range model.DefaultRepos {
		if r.Dir == missingRemote {
			continue
		}
		dir := filepath.Join(remotes, r.Dir)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.py"), []byte("from setuptools import setup\nsetup()\n"), 0644))
		for _, args := range [][]string{
			{"init"},
			{"config", "user.email", "test@example.com"},
			{"config", "user.name", "Test User"},
			{"add", "."},
			{"commit", "-m", "initial"},
		} {
			out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
			require.NoError(t, err, "git %v: %s", args, out)
		}
	}

	orig := configFor
	configFor = func(workDir string) model.Config {
		cfg := orig(workDir)
		for i := range cfg.Repos {
			cfg.Repos[i].URL = filepath.Join(remotes, cfg.Repos[i].Dir)
		}
		return cfg
	}
	t.Cleanup(func() { configFor = orig })

	fake := testutil.NewFakeConda(t, opts)
	t.Setenv(conda.EnvBinary, fake.Bin)
	t.Setenv(EnvWorkDir, work)
	return work, fake
}

func TestRoot_Success(t *testing.T) {
	work, fake := workspace(t, testutil.FakeCondaOptions{}, "")

	code, stdout, stderr := runCLI(t)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "[1/8] Updating conda environment \"level-replay\"")
	assert.Contains(t, stdout, "[8/8] Installing procgen/ in editable mode")
	assert.Contains(t, stdout, `Provisioned environment "level-replay"`)
	assert.DirExists(t, filepath.Join(work, "baselines", ".git"))
	assert.DirExists(t, filepath.Join(work, "procgen", ".git"))
	assert.Len(t, fake.Editable(t, "level-replay"), 2)
}

// TestRoot_CloneFailureExitCode verifies the process exit code is the
// failing git clone's own status.
func TestRoot_CloneFailureExitCode(t *testing.T) {
	work, _ := workspace(t, testutil.FakeCondaOptions{}, "procgen")

	code, stdout, stderr := runCLI(t)

	assert.Equal(t, 128, code)
	assert.Contains(t, stdout, "✗ clone failed")
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "failed to clone")
	assert.DirExists(t, filepath.Join(work, "baselines"))
	assert.NoDirExists(t, filepath.Join(work, "procgen"))
}

func TestRoot_JSON(t *testing.T) {
	_, fake := workspace(t, testutil.FakeCondaOptions{InstallStatus: 2}, "")

	code, stdout, stderr := runCLI(t, "--json")
	assert.Equal(t, 2, code)

	var result struct {
		RunID    string `json:"runId"`
		Status   string `json:"status"`
		ExitCode int    `json:"exitCode"`
		Prefix   string `json:"prefix"`
		Steps    []struct {
			Kind  string `json:"kind"`
			Error string `json:"error"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result), stdout)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, 2, result.ExitCode)
	assert.Equal(t, fake.Prefix("level-replay"), result.Prefix)
	require.Len(t, result.Steps, 5)
	assert.Equal(t, "install", result.Steps[4].Kind)
	assert.NotEmpty(t, result.Steps[4].Error)

	var errOut struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(lastJSONObject(stderr), &errOut), stderr)
	assert.Equal(t, 2, errOut.Error.Code)
}

// lastJSONObject returns the trailing JSON object of mixed tool/log output.
func lastJSONObject(s string) []byte {
	idx := bytes.LastIndex([]byte(s), []byte("{\n  \"error\""))
	if idx < 0 {
		return []byte(s)
	}
	return []byte(s[idx:])
}

// TestRoot_DryRun verifies the plan is printed and nothing is executed.
func TestRoot_DryRun(t *testing.T) {
	work := t.TempDir()
	t.Setenv(EnvWorkDir, work)
	t.Setenv(conda.EnvBinary, filepath.Join(work, "no-conda-here"))

	code, stdout, stderr := runCLI(t, "--dry-run")
	require.Equal(t, 0, code, stderr)

	var doc planDoc
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &doc), stdout)

	assert.Equal(t, "level-replay", doc.EnvName)
	assert.Equal(t, filepath.Join(work, "level-replay", "environment.yml"), doc.SpecFile)
	require.Len(t, doc.Steps, 8)
	assert.Equal(t, model.StepEnvUpdate, doc.Steps[0].Kind)
	assert.Equal(t, model.StepInstall, doc.Steps[7].Kind)
	assert.Equal(t, "git@github.com:bwoodyear/procgen.git", doc.Steps[6].Repo.URL)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRoot_DryRunJSON(t *testing.T) {
	t.Setenv(EnvWorkDir, t.TempDir())

	code, stdout, _ := runCLI(t, "--dry-run", "--json")
	require.Equal(t, 0, code)

	var doc planDoc
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Len(t, doc.Steps, 8)
}

func TestRoot_RejectsArgs(t *testing.T) {
	code, _, stderr := runCLI(t, "extra")
	assert.Equal(t, int(model.ExitGeneralError), code)
	assert.Contains(t, stderr, "unknown command")
}

// TestRoot_CondaMissing covers an unavailable environment tool: the
// shell's "command not found" status and no repository steps.
func TestRoot_CondaMissing(t *testing.T) {
	testutil.RequirePOSIX(t)
	testutil.IsolateActivation(t)
	work := t.TempDir()
	t.Setenv(EnvWorkDir, work)
	t.Setenv(conda.EnvBinary, filepath.Join(work, "no-conda-here"))

	code, stdout, _ := runCLI(t)
	assert.Equal(t, int(model.ExitCommandNotFound), code)
	assert.NotContains(t, stdout, "[3/8]")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PROVISION_GIT=/opt/git/bin/git\nPROVISION_WORKDIR=/already/set\n"), 0644))

	t.Setenv("PROVISION_GIT", "")
	os.Unsetenv("PROVISION_GIT")
	t.Setenv(EnvWorkDir, "/from/env")

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "/opt/git/bin/git", os.Getenv("PROVISION_GIT"))
	assert.Equal(t, "/from/env", os.Getenv(EnvWorkDir), "real environment wins over .env")

	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestResolveWorkDir(t *testing.T) {
	t.Setenv(EnvWorkDir, "")
	cwd, err := os.Getwd()
	require.NoError(t, err)

	dir, err := resolveWorkDir()
	require.NoError(t, err)
	assert.Equal(t, cwd, dir)

	t.Setenv(EnvWorkDir, "relative/work")
	dir, err = resolveWorkDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "relative", "work"), dir)
}
