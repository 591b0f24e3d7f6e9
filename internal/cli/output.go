package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/bwoodyear/level-replay-provision/internal/model"
	"github.com/bwoodyear/level-replay-provision/internal/provision"
)

// styles used for human-readable output. lipgloss drops the colors when
// the output is not a terminal.
var styles = struct {
	step, ok, fail, dim lipgloss.Style
}{
	step: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
	ok:   lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")),
	fail: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
	dim:  lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
}

// progress prints a header before each step and a status line after it.
// It implements provision.Observer.
type progress struct {
	w   io.Writer
	cfg model.Config
}

func newProgress(w io.Writer, cfg model.Config) *progress {
	return &progress{w: w, cfg: cfg}
}

func (p *progress) StepStarted(index, total int, step model.Step) {
	header := fmt.Sprintf("==> [%d/%d] %s", index+1, total, describeStep(p.cfg, step))
	fmt.Fprintln(p.w, styles.step.Render(header))
}

func (p *progress) StepFinished(index, total int, step model.Step, err error, elapsed time.Duration) {
	if err != nil {
		fmt.Fprintln(p.w, styles.fail.Render(fmt.Sprintf("    ✗ %s failed", step.Kind)))
		return
	}
	fmt.Fprintln(p.w, styles.dim.Render(fmt.Sprintf("    ✓ done in %s", elapsed.Round(time.Millisecond))))
}

// describeStep renders a step as the command it stands for.
func describeStep(cfg model.Config, step model.Step) string {
	switch step.Kind {
	case model.StepEnvUpdate:
		return fmt.Sprintf("Updating conda environment %q from %s", cfg.EnvName, cfg.SpecFile)
	case model.StepEnvActivate:
		return fmt.Sprintf("Activating conda environment %q", cfg.EnvName)
	case model.StepRemoveDir:
		return fmt.Sprintf("Removing %s/", step.Repo.Dir)
	case model.StepClone:
		return fmt.Sprintf("Cloning %s into %s/", step.Repo.URL, step.Repo.Dir)
	case model.StepInstall:
		return fmt.Sprintf("Installing %s/ in editable mode", step.Repo.Dir)
	default:
		return step.String()
	}
}

// planDoc is the --dry-run document.
type planDoc struct {
	EnvName  string       `json:"envName" yaml:"envName"`
	SpecFile string       `json:"specFile" yaml:"specFile"`
	WorkDir  string       `json:"workDir" yaml:"workDir"`
	Steps    []model.Step `json:"steps" yaml:"steps"`
}

// printPlan writes the steps a run would execute, as YAML (or JSON under
// --json). Nothing is executed.
func printPlan(w io.Writer, cfg model.Config) error {
	doc := planDoc{
		EnvName:  cfg.EnvName,
		SpecFile: cfg.SpecPath(),
		WorkDir:  cfg.WorkDir,
		Steps:    model.Plan(cfg),
	}

	if jsonOutput {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode plan", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to encode plan", err)
	}
	return enc.Close()
}

// printResultText outputs the success summary.
func printResultText(w io.Writer, res *provision.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.ok.Render(fmt.Sprintf("Provisioned environment %q", res.EnvName)))
	if res.Activation != nil {
		fmt.Fprintf(w, "  Prefix:   %s\n", res.Activation.Prefix)
	}
	for _, s := range res.Steps {
		if s.Step.Kind == model.StepInstall {
			fmt.Fprintf(w, "  Editable: %s\n", s.Step.Repo.Dir)
		}
	}
	fmt.Fprintf(w, "  Elapsed:  %s\n", res.Duration.Round(time.Second))
	fmt.Fprintf(w, "\nRun `conda activate %s` to use it.\n", res.EnvName)
}

// printResultJSON outputs the run result as structured JSON, successful
// or not. The error itself is reported separately on stderr.
func printResultJSON(w io.Writer, res *provision.Result, runErr error) {
	type stepJSON struct {
		Kind       string         `json:"kind"`
		Repo       *model.RepoRef `json:"repo,omitempty"`
		DurationMs int64          `json:"durationMs"`
		Error      string         `json:"error,omitempty"`
	}

	type resultJSON struct {
		RunID    string     `json:"runId"`
		Env      string     `json:"env"`
		Prefix   string     `json:"prefix,omitempty"`
		Status   string     `json:"status"`
		ExitCode int        `json:"exitCode"`
		Steps    []stepJSON `json:"steps"`
	}

	out := resultJSON{
		RunID:    res.RunID,
		Env:      res.EnvName,
		Status:   "ok",
		ExitCode: int(model.ExitCodeOf(runErr)),
		Steps:    []stepJSON{},
	}
	if runErr != nil {
		out.Status = "failed"
	}
	if res.Activation != nil {
		out.Prefix = res.Activation.Prefix
	}
	for _, s := range res.Steps {
		out.Steps = append(out.Steps, stepJSON{
			Kind:       s.Step.Kind.String(),
			Repo:       s.Step.Repo,
			DurationMs: s.Duration.Milliseconds(),
			Error:      s.Error,
		})
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(w, string(data))
}
