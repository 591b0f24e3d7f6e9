package conda

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Activation is the process state of an activated environment.
type Activation struct {
	// Name is the environment name as passed to Activate.
	Name string `json:"name"`

	// Prefix is the environment's installation directory.
	Prefix string `json:"prefix"`
}

// BinDirs returns the directories activation puts at the front of PATH,
// in lookup order.
func (a *Activation) BinDirs() []string {
	if runtime.GOOS == "windows" {
		return []string{
			a.Prefix,
			filepath.Join(a.Prefix, "Library", "mingw-w64", "bin"),
			filepath.Join(a.Prefix, "Library", "usr", "bin"),
			filepath.Join(a.Prefix, "Library", "bin"),
			filepath.Join(a.Prefix, "Scripts"),
		}
	}
	return []string{filepath.Join(a.Prefix, "bin")}
}

// Python returns the environment's interpreter.
func (a *Activation) Python() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(a.Prefix, "python.exe")
	}
	return filepath.Join(a.Prefix, "bin", "python")
}

// Vars returns the variables activation sets, computed against the
// current values in base (a KEY=VALUE list such as os.Environ()).
func (a *Activation) Vars(base []string) map[string]string {
	current := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			current[normalizeKey(k)] = v
		}
	}

	shlvl := 1
	if n, err := strconv.Atoi(current[normalizeKey("CONDA_SHLVL")]); err == nil && n >= 0 {
		// Re-activating the same prefix does not stack.
		if current[normalizeKey("CONDA_PREFIX")] == a.Prefix && n > 0 {
			shlvl = n
		} else {
			shlvl = n + 1
		}
	}

	return map[string]string{
		pathKey():           prependPath(current[normalizeKey(pathKey())], a.BinDirs()),
		"CONDA_PREFIX":      a.Prefix,
		"CONDA_DEFAULT_ENV": a.Name,
		"CONDA_SHLVL":       strconv.Itoa(shlvl),
	}
}

// Environ returns base with the activation variables applied. base is not
// modified.
func (a *Activation) Environ(base []string) []string {
	vars := a.Vars(base)

	env := make([]string, 0, len(base)+len(vars))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := lookup(vars, k); overridden {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}

// Apply installs the activation in the current process environment, so
// that every later child (and PATH lookup) sees the environment's tools.
func (a *Activation) Apply() error {
	for k, v := range a.Vars(os.Environ()) {
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}

// prependPath puts dirs at the front of path, dropping any later
// duplicates of them.
func prependPath(path string, dirs []string) string {
	front := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		front[filepath.Clean(d)] = true
	}

	parts := append([]string{}, dirs...)
	for _, p := range filepath.SplitList(path) {
		if p == "" || front[filepath.Clean(p)] {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// pathKey is the PATH variable's canonical spelling on this platform.
func pathKey() string {
	if runtime.GOOS == "windows" {
		return "Path"
	}
	return "PATH"
}

// normalizeKey folds variable names on Windows, where they are case-insensitive.
func normalizeKey(k string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(k)
	}
	return k
}

func lookup(vars map[string]string, key string) (string, bool) {
	for k, v := range vars {
		if normalizeKey(k) == normalizeKey(key) {
			return v, true
		}
	}
	return "", false
}
