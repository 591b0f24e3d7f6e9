package model

import (
	"fmt"
	"strings"
)

// StepKind identifies one of the operations the provisioner performs.
// The sequence of a run is always:
//
//	env-update → env-activate → (remove-dir → clone → install) per repository
type StepKind string

const (
	// StepEnvUpdate updates (or creates) the named environment from the
	// environment specification file.
	StepEnvUpdate StepKind = "env-update"

	// StepEnvActivate makes the named environment the active one for all
	// following steps.
	StepEnvActivate StepKind = "env-activate"

	// StepRemoveDir deletes any existing local copy of a repository.
	StepRemoveDir StepKind = "remove-dir"

	// StepClone clones a repository into its local directory.
	StepClone StepKind = "clone"

	// StepInstall installs a cloned repository in editable mode.
	StepInstall StepKind = "install"
)

// String returns the string representation of StepKind.
func (k StepKind) String() string {
	return string(k)
}

// IsValid checks whether the StepKind value is one of the predefined kinds.
func (k StepKind) IsValid() bool {
	switch k {
	case StepEnvUpdate, StepEnvActivate, StepRemoveDir, StepClone, StepInstall:
		return true
	default:
		return false
	}
}

// IsRepoStep returns true for the steps that operate on a single
// repository reference.
func (k StepKind) IsRepoStep() bool {
	return k == StepRemoveDir || k == StepClone || k == StepInstall
}

// ParseStepKind converts a string to a StepKind.
func ParseStepKind(s string) (StepKind, error) {
	kind := StepKind(strings.ToLower(s))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid step kind: %q (valid: env-update, env-activate, remove-dir, clone, install)", s)
	}
	return kind, nil
}

// RepoRef is a repository reference: a remote to clone and the local
// directory name it is cloned into.
type RepoRef struct {
	// URL is the remote passed verbatim to `git clone`.
	URL string `json:"url" yaml:"url"`

	// Dir is the local directory, relative to the work directory.
	// It is deleted and recreated on every run.
	Dir string `json:"dir" yaml:"dir"`
}

// Validate checks that the reference names a remote and a directory that
// stays inside the work directory. A Dir escaping the work directory would
// turn the unconditional pre-clone removal into a hazard.
func (r RepoRef) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("repository reference: url must not be empty")
	}
	return ValidateRepoDir(r.Dir)
}

// String returns "url → dir".
func (r RepoRef) String() string {
	return fmt.Sprintf("%s → %s", r.URL, r.Dir)
}

// Step is one entry of a provisioning plan. Repo is nil for the
// environment steps.
type Step struct {
	Kind StepKind `json:"kind" yaml:"kind"`
	Repo *RepoRef `json:"repo,omitempty" yaml:"repo,omitempty"`
}

// String returns a human-readable description of the step.
func (s Step) String() string {
	if s.Repo == nil {
		return s.Kind.String()
	}
	switch s.Kind {
	case StepClone:
		return fmt.Sprintf("%s %s", s.Kind, s.Repo)
	default:
		return fmt.Sprintf("%s %s", s.Kind, s.Repo.Dir)
	}
}

// Plan expands a configuration into the ordered list of steps a run
// executes. Two environment steps come first, followed by three steps
// per repository in list order.
func Plan(cfg Config) []Step {
	steps := make([]Step, 0, 2+3*len(cfg.Repos))
	steps = append(steps,
		Step{Kind: StepEnvUpdate},
		Step{Kind: StepEnvActivate},
	)
	for i := range cfg.Repos {
		repo := &cfg.Repos[i]
		steps = append(steps,
			Step{Kind: StepRemoveDir, Repo: repo},
			Step{Kind: StepClone, Repo: repo},
			Step{Kind: StepInstall, Repo: repo},
		)
	}
	return steps
}
