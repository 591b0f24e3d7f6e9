package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStepKind_IsValid checks that only defined step kinds pass validation.
func TestStepKind_IsValid(t *testing.T) {
	for _, k := range []StepKind{StepEnvUpdate, StepEnvActivate, StepRemoveDir, StepClone, StepInstall} {
		assert.True(t, k.IsValid(), k.String())
	}
	assert.False(t, StepKind("rollback").IsValid())
	assert.False(t, StepKind("").IsValid())
}

func TestStepKind_IsRepoStep(t *testing.T) {
	assert.False(t, StepEnvUpdate.IsRepoStep())
	assert.False(t, StepEnvActivate.IsRepoStep())
	assert.True(t, StepRemoveDir.IsRepoStep())
	assert.True(t, StepClone.IsRepoStep())
	assert.True(t, StepInstall.IsRepoStep())
}

// TestParseStepKind verifies string-to-kind conversion, including case
// normalization and error cases.
func TestParseStepKind(t *testing.T) {
	tests := []struct {
		input    string
		expected StepKind
		hasError bool
	}{
		{"env-update", StepEnvUpdate, false},
		{"CLONE", StepClone, false},
		{"Install", StepInstall, false},
		{"retry", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseStepKind(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestPlan_Order verifies the environment steps come first and each
// repository contributes remove, clone, install in list order.
func TestPlan_Order(t *testing.T) {
	cfg := DefaultConfig("/work")
	steps := Plan(cfg)

	require.Len(t, steps, 8)

	var got []string
	for _, s := range steps {
		got = append(got, s.String())
	}
	assert.Equal(t, []string{
		"env-update",
		"env-activate",
		"remove-dir baselines",
		"clone git@github.com:bwoodyear/baselines.git → baselines",
		"install baselines",
		"remove-dir procgen",
		"clone git@github.com:bwoodyear/procgen.git → procgen",
		"install procgen",
	}, got)
}

func TestPlan_NoRepos(t *testing.T) {
	cfg := DefaultConfig("/work")
	cfg.Repos = nil

	steps := Plan(cfg)
	require.Len(t, steps, 2)
	assert.Equal(t, StepEnvUpdate, steps[0].Kind)
	assert.Equal(t, StepEnvActivate, steps[1].Kind)
	assert.Nil(t, steps[1].Repo)
}

// TestDefaultConfig_Isolated ensures callers cannot mutate DefaultRepos
// through a returned Config.
func TestDefaultConfig_Isolated(t *testing.T) {
	cfg := DefaultConfig("/work")
	cfg.Repos[0].Dir = "changed"

	assert.Equal(t, "baselines", DefaultRepos[0].Dir)
	assert.Equal(t, "level-replay", cfg.EnvName)
	assert.Equal(t, "level-replay/environment.yml", cfg.SpecFile)
}

func TestValidateEnvName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"level-replay", true},
		{"py3.10_env", true},
		{"a", true},
		{"", false},
		{"-leading", false},
		{"has space", false},
		{"with/slash", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEnvName(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// TestValidateRepoDir covers the paths the pre-clone removal must never
// be allowed to touch.
func TestValidateRepoDir(t *testing.T) {
	tests := []struct {
		dir   string
		valid bool
	}{
		{"baselines", true},
		{"procgen", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../outside", false},
		{"nested/dir", false},
		{"trailing/", false},
		{filepath.Join(string(filepath.Separator), "abs"), false},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			err := ValidateRepoDir(tt.dir)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		assert.NoError(t, DefaultConfig("/work").Validate())
	})

	t.Run("duplicate dir", func(t *testing.T) {
		cfg := DefaultConfig("/work")
		cfg.Repos = append(cfg.Repos, RepoRef{URL: "https://example.com/fork.git", Dir: "procgen"})
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "procgen")
	})

	t.Run("empty url", func(t *testing.T) {
		cfg := DefaultConfig("/work")
		cfg.Repos[1].URL = " "
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty spec file", func(t *testing.T) {
		cfg := DefaultConfig("/work")
		cfg.SpecFile = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing work dir", func(t *testing.T) {
		assert.Error(t, DefaultConfig("").Validate())
	})
}

func TestConfig_Paths(t *testing.T) {
	work := filepath.Join(t.TempDir(), "work")
	cfg := DefaultConfig(work)

	assert.Equal(t, filepath.Join(work, "level-replay", "environment.yml"), cfg.SpecPath())
	assert.Equal(t, filepath.Join(work, "procgen"), cfg.RepoPath(cfg.Repos[1]))

	abs := filepath.Join(t.TempDir(), "env.yml")
	cfg.SpecFile = abs
	assert.Equal(t, abs, cfg.SpecPath())
}

// TestCLIError_Error verifies the error message format with and without
// an underlying error.
func TestCLIError_Error(t *testing.T) {
	err := NewCLIError(ExitGitError, "clone failed")
	assert.Equal(t, "clone failed", err.Error())

	wrapped := WrapCLIError(ExitGitError, "clone failed", errors.New("network unreachable"))
	assert.Equal(t, "clone failed: network unreachable", wrapped.Error())
}

// TestCLIError_Unwrap verifies errors.Is works through a CLIError.
func TestCLIError_Unwrap(t *testing.T) {
	inner := errors.New("permission denied")
	err := WrapCLIError(ExitFilesystemError, "remove failed", inner)
	assert.True(t, errors.Is(err, inner))
}

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("exit status %d", int(s)) }
func (s statusErr) ExitStatus() int { return int(s) }

// TestWrapCommandError_PropagatesStatus checks that a child's exit status
// replaces the category code, and that a missing status keeps it.
func TestWrapCommandError_PropagatesStatus(t *testing.T) {
	err := WrapCommandError(ExitGitError, "clone failed", fmt.Errorf("git: %w", statusErr(128)))
	assert.Equal(t, ExitCode(128), err.Code)

	err = WrapCommandError(ExitGitError, "clone failed", statusErr(0))
	assert.Equal(t, ExitGitError, err.Code)

	err = WrapCommandError(ExitInstallFailed, "install failed", errors.New("boom"))
	assert.Equal(t, ExitInstallFailed, err.Code)
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCodeOf(nil))
	assert.Equal(t, ExitGeneralError, ExitCodeOf(errors.New("plain")))
	assert.Equal(t, ExitCode(42), ExitCodeOf(fmt.Errorf("outer: %w", NewCLIError(42, "inner"))))
}

func TestCodeForStep(t *testing.T) {
	assert.Equal(t, ExitEnvUpdateFailed, CodeForStep(StepEnvUpdate))
	assert.Equal(t, ExitActivationFailed, CodeForStep(StepEnvActivate))
	assert.Equal(t, ExitFilesystemError, CodeForStep(StepRemoveDir))
	assert.Equal(t, ExitGitError, CodeForStep(StepClone))
	assert.Equal(t, ExitInstallFailed, CodeForStep(StepInstall))
	assert.Equal(t, ExitGeneralError, CodeForStep("other"))
}
