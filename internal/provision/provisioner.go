package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bwoodyear/level-replay-provision/internal/conda"
	"github.com/bwoodyear/level-replay-provision/internal/ctxlog"
	"github.com/bwoodyear/level-replay-provision/internal/model"
)

// EnvManager creates, updates and activates the named environment.
type EnvManager interface {
	Update(ctx context.Context, name, specFile string) error
	Activate(ctx context.Context, name string) (*conda.Activation, error)
}

// Cloner clones a remote repository into a local directory.
type Cloner interface {
	Clone(ctx context.Context, url, dir string) error
}

// Installer installs a local source tree in editable mode into an
// activated environment.
type Installer interface {
	InstallEditable(ctx context.Context, act *conda.Activation, dir string) error
}

// Remover deletes a directory tree. Deleting a missing path must succeed.
type Remover interface {
	RemoveAll(path string) error
}

// Collaborators bundles the external tools a run drives.
type Collaborators struct {
	Env EnvManager
	Git Cloner
	Pip Installer
	FS  Remover
}

// Observer is notified around every step. Both callbacks run on the
// provisioning goroutine, so a slow observer delays the run.
type Observer interface {
	StepStarted(index, total int, step model.Step)
	StepFinished(index, total int, step model.Step, err error, elapsed time.Duration)
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	Step     model.Step    `json:"step"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result summarizes a run. Steps holds every step that was started, in
// order; when the run failed, the last entry is the failing step.
type Result struct {
	RunID      string            `json:"runId"`
	EnvName    string            `json:"envName"`
	Steps      []StepResult      `json:"steps"`
	Activation *conda.Activation `json:"activation,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// Failed returns the failing step, or nil when every step succeeded.
func (r *Result) Failed() *StepResult {
	if len(r.Steps) == 0 {
		return nil
	}
	last := &r.Steps[len(r.Steps)-1]
	if last.Error == "" {
		return nil
	}
	return last
}

// Provisioner executes a provisioning plan.
type Provisioner struct {
	cfg      model.Config
	tools    Collaborators
	observer Observer
	runID    string

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a Provisioner for cfg. Every collaborator must be non-nil.
func New(cfg model.Config, tools Collaborators) *Provisioner {
	return &Provisioner{
		cfg:   cfg,
		tools: tools,
		runID: uuid.NewString(),
		now:   time.Now,
	}
}

// WithObserver sets the step observer and returns p.
func (p *Provisioner) WithObserver(o Observer) *Provisioner {
	p.observer = o
	return p
}

// RunID returns the identifier attached to this provisioner's log records.
func (p *Provisioner) RunID() string {
	return p.runID
}

// Config returns the configuration the provisioner runs.
func (p *Provisioner) Config() model.Config {
	return p.cfg
}

// Run executes every step of the plan in order and stops at the first
// failure. The returned Result is never nil; the error is a
// *model.CLIError whose code is the failing tool's exit status when it
// produced one.
func (p *Provisioner) Run(ctx context.Context) (*Result, error) {
	start := p.now()
	res := &Result{RunID: p.runID, EnvName: p.cfg.EnvName}
	defer func() { res.Duration = p.now().Sub(start) }()

	if err := p.cfg.Validate(); err != nil {
		return res, model.WrapCLIError(model.ExitGeneralError, "invalid provisioning configuration", err)
	}
	if err := p.tools.validate(); err != nil {
		return res, model.WrapCLIError(model.ExitGeneralError, "incomplete provisioner", err)
	}

	log := ctxlog.FromContext(ctx).With("run", p.runID, "env", p.cfg.EnvName)
	ctx = ctxlog.WithLogger(ctx, log)

	steps := model.Plan(p.cfg)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return res, model.WrapCLIError(model.ExitInterrupted, "provisioning interrupted", err)
		}
		if p.observer != nil {
			p.observer.StepStarted(i, len(steps), step)
		}
		log.Debug("step started", "index", i+1, "total", len(steps), "step", step.String())

		stepStart := p.now()
		err := p.execute(ctx, step, res)
		elapsed := p.now().Sub(stepStart)

		sr := StepResult{Step: step, Duration: elapsed}
		if err != nil {
			err = wrapStepError(ctx, step, err)
			sr.Error = err.Error()
		}
		res.Steps = append(res.Steps, sr)

		if p.observer != nil {
			p.observer.StepFinished(i, len(steps), step, err, elapsed)
		}
		if err != nil {
			log.Error("step failed", "step", step.String(), "code", int(model.ExitCodeOf(err)), "err", err)
			return res, err
		}
		log.Debug("step finished", "step", step.String(), "elapsed", elapsed)
	}

	log.Info("provisioning complete", "repos", len(p.cfg.Repos))
	return res, nil
}

// execute dispatches one step to its collaborator.
func (p *Provisioner) execute(ctx context.Context, step model.Step, res *Result) error {
	switch step.Kind {
	case model.StepEnvUpdate:
		return p.tools.Env.Update(ctx, p.cfg.EnvName, p.cfg.SpecPath())

	case model.StepEnvActivate:
		act, err := p.tools.Env.Activate(ctx, p.cfg.EnvName)
		if err != nil {
			return err
		}
		res.Activation = act
		return nil

	case model.StepRemoveDir:
		return p.tools.FS.RemoveAll(p.cfg.RepoPath(*step.Repo))

	case model.StepClone:
		return p.tools.Git.Clone(ctx, step.Repo.URL, p.cfg.RepoPath(*step.Repo))

	case model.StepInstall:
		return p.tools.Pip.InstallEditable(ctx, res.Activation, p.cfg.RepoPath(*step.Repo))

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// wrapStepError gives collaborator errors that are not already CLIErrors
// the step's category exit code. A step killed by cancellation reports
// ExitInterrupted regardless of what the tool returned.
func wrapStepError(ctx context.Context, step model.Step, err error) error {
	if ctx.Err() != nil {
		return model.WrapCLIError(model.ExitInterrupted, fmt.Sprintf("%s interrupted", step), err)
	}
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	return model.WrapCommandError(model.CodeForStep(step.Kind), fmt.Sprintf("%s failed", step), err)
}

func (c Collaborators) validate() error {
	switch {
	case c.Env == nil:
		return errors.New("no environment manager")
	case c.Git == nil:
		return errors.New("no git client")
	case c.Pip == nil:
		return errors.New("no package installer")
	case c.FS == nil:
		return errors.New("no filesystem remover")
	}
	return nil
}
