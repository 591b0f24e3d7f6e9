// Package testutil provides fake external tools for tests.
//
// FakeConda writes a POSIX shell script that behaves like the subset of
// conda the provisioner uses. `env update` materializes an environment
// prefix containing a fake python whose `-m pip install -e <dir>` records
// the directory instead of installing it. Every invocation of either tool
// is appended to a shared call log.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequirePOSIX skips the test on platforms without /bin/sh.
func RequirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are POSIX shell scripts")
	}
}

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

// FakeCondaOptions injects failures into the fake.
type FakeCondaOptions struct {
	// UpdateStatus, when non-zero, makes `env update` exit with it.
	UpdateStatus int

	// SkipCreate makes `env update` succeed without creating the
	// environment, so activation cannot find it.
	SkipCreate bool

	// InstallStatus, when non-zero, makes `pip install` exit with it.
	InstallStatus int
}

// FakeConda is a fake conda installation rooted in a temp directory.
type FakeConda struct {
	// Bin is the fake conda executable.
	Bin string

	// Root is the fake root prefix; environments live in Root/envs.
	Root string

	log string
}

// NewFakeConda builds a fake conda installation.
func NewFakeConda(t *testing.T, opts FakeCondaOptions) *FakeConda {
	t.Helper()
	RequirePOSIX(t)

	root := t.TempDir()
	log := filepath.Join(root, "calls.log")
	require.NoError(t, os.WriteFile(log, nil, 0644))

	python := fmt.Sprintf(`echo "python $*" >> '%[1]s'
if [ "$1 $2 $3 $4" = "-m pip install -e" ]; then
  if [ %[2]d -ne 0 ]; then echo "ERROR: simulated install failure" >&2; exit %[2]d; fi
  if [ ! -f "$5/setup.py" ] && [ ! -f "$5/pyproject.toml" ]; then
    echo "ERROR: $5 does not appear to be a Python project" >&2; exit 1
  fi
  echo "$5 CONDA_PREFIX=$CONDA_PREFIX" >> "$(dirname "$0")/../editable.txt"
fi
exit 0
`, log, opts.InstallStatus)
	template := WriteScript(t, filepath.Join(root, "template"), "python", python)

	create := fmt.Sprintf(`mkdir -p '%[1]s/envs/'"$name/bin" && cp '%[2]s' '%[1]s/envs/'"$name/bin/python"`, root, template)
	if opts.SkipCreate {
		create = "true"
	}

	conda := fmt.Sprintf(`echo "conda $*" >> '%[1]s'
case "$1 $2" in
"env update")
  name="$4"; file="$6"
  if [ %[3]d -ne 0 ]; then echo "CondaError: simulated update failure" >&2; exit %[3]d; fi
  if [ ! -f "$file" ]; then echo "EnvironmentFileNotFound: '$file' file not found" >&2; exit 1; fi
  %[4]s
  exit 0 ;;
"info --json")
  printf '{"root_prefix": "%[2]s", "envs": ["%[2]s"'
  for d in '%[2]s'/envs/*; do [ -d "$d" ] && printf ', "%%s"' "$d"; done
  printf ']}\n'
  exit 0 ;;
esac
echo "unsupported: $*" >&2
exit 2
`, log, root, opts.UpdateStatus, create)
	bin := WriteScript(t, filepath.Join(root, "condabin"), "conda", conda)

	return &FakeConda{Bin: bin, Root: root, log: log}
}

// Prefix returns the prefix the fake uses for the environment name.
func (f *FakeConda) Prefix(name string) string {
	return filepath.Join(f.Root, "envs", name)
}

// Calls returns every recorded invocation, in order.
func (f *FakeConda) Calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.log)
	require.NoError(t, err)
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Editable returns the directories installed in editable mode into the
// environment, each followed by the CONDA_PREFIX seen by pip.
func (f *FakeConda) Editable(t *testing.T, name string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.Prefix(name), "editable.txt"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// IsolateActivation snapshots the variables conda activation modifies so
// that a test applying an activation leaves the process unchanged.
func IsolateActivation(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PATH", "CONDA_PREFIX", "CONDA_DEFAULT_ENV", "CONDA_SHLVL"} {
		t.Setenv(k, os.Getenv(k))
	}
}
