package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Fixed provisioning values. The tool takes no arguments; changing what it
// provisions means changing these.
const (
	// DefaultEnvName is the conda environment the project runs in.
	DefaultEnvName = "level-replay"

	// DefaultSpecFile is the environment definition, relative to the work directory.
	DefaultSpecFile = "level-replay/environment.yml"
)

// DefaultRepos lists the repositories installed into the environment, in
// installation order.
var DefaultRepos = []RepoRef{
	{URL: "git@github.com:bwoodyear/baselines.git", Dir: "baselines"},
	{URL: "git@github.com:bwoodyear/procgen.git", Dir: "procgen"},
}

// Config holds everything a provisioning run needs.
type Config struct {
	// EnvName is the conda environment to update and activate.
	EnvName string `json:"envName" yaml:"envName"`

	// SpecFile is the path to the environment definition file.
	// Relative paths resolve against WorkDir.
	SpecFile string `json:"specFile" yaml:"specFile"`

	// WorkDir is the directory repositories are cloned into.
	WorkDir string `json:"workDir" yaml:"workDir"`

	// Repos is the ordered list of repositories to clone and install.
	Repos []RepoRef `json:"repos" yaml:"repos"`
}

// DefaultConfig returns the fixed configuration rooted at workDir.
// The repository slice is copied so callers may modify it freely.
func DefaultConfig(workDir string) Config {
	repos := make([]RepoRef, len(DefaultRepos))
	copy(repos, DefaultRepos)
	return Config{
		EnvName:  DefaultEnvName,
		SpecFile: DefaultSpecFile,
		WorkDir:  workDir,
		Repos:    repos,
	}
}

// envNameRegex matches conda environment names: no path separators,
// no whitespace, and no leading punctuation.
var envNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateEnvName checks if the given name is usable as a conda environment name.
func ValidateEnvName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name must not be empty")
	}
	if !envNameRegex.MatchString(name) {
		return fmt.Errorf("invalid environment name %q: must start with an alphanumeric character and contain only alphanumerics, '.', '_' or '-'", name)
	}
	return nil
}

// ValidateRepoDir checks that dir is a single relative path element,
// so that removing it can never touch anything outside the work directory.
func ValidateRepoDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("repository directory must not be empty")
	}
	if filepath.IsAbs(dir) {
		return fmt.Errorf("repository directory %q must be relative", dir)
	}
	clean := filepath.Clean(dir)
	if clean != dir || clean == "." || clean == ".." || strings.ContainsAny(clean, `/\`) {
		return fmt.Errorf("repository directory %q must be a single directory name", dir)
	}
	return nil
}

// Validate checks the whole configuration, including duplicate directories.
func (c Config) Validate() error {
	if err := ValidateEnvName(c.EnvName); err != nil {
		return err
	}
	if strings.TrimSpace(c.SpecFile) == "" {
		return fmt.Errorf("environment specification file must not be empty")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work directory must not be empty")
	}

	seen := make(map[string]string, len(c.Repos))
	for _, r := range c.Repos {
		if err := r.Validate(); err != nil {
			return err
		}
		if prev, ok := seen[r.Dir]; ok {
			return fmt.Errorf("repository directory %q is used by both %q and %q", r.Dir, prev, r.URL)
		}
		seen[r.Dir] = r.URL
	}
	return nil
}

// SpecPath returns the absolute path of the specification file.
func (c Config) SpecPath() string {
	return c.resolve(c.SpecFile)
}

// RepoPath returns the absolute path of a repository's local directory.
func (c Config) RepoPath(r RepoRef) string {
	return c.resolve(r.Dir)
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}
