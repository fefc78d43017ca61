package engine

import (
	"fmt"
	"time"
)

// StepKind is the action kind of one provisioning step.
type StepKind string

const (
	// StepInstallSystemPackage installs OS-level packages (toolchain).
	StepInstallSystemPackage StepKind = "installSystemPackage"

	// StepInstallLanguageRuntime installs the interpreter.
	StepInstallLanguageRuntime StepKind = "installLanguageRuntime"

	// StepInstallBackend installs the communication backend.
	StepInstallBackend StepKind = "installBackend"

	// StepInstallFramework installs a framework or auxiliary package.
	StepInstallFramework StepKind = "installFramework"

	// StepApplyPatch edits files on disk (source patches, example shrinking).
	StepApplyPatch StepKind = "applyPatch"

	// StepPrefetchFixture downloads a dataset or source archive.
	StepPrefetchFixture StepKind = "prefetchFixture"
)

// InstallStep is one atomic provisioning action. IDs are stable slugs
// derived from the configuration, never random, so identical
// configurations resolve to byte-identical plans.
type InstallStep struct {
	// Ordinal is the step's position in the total order.
	Ordinal int `json:"ordinal"`

	// ID is the deterministic step identifier.
	ID string `json:"id"`

	// Kind is the action kind.
	Kind StepKind `json:"kind"`

	// Name is a short human-readable title.
	Name string `json:"name"`

	// Description explains what the step does, for failure reports.
	Description string `json:"description,omitempty"`

	// Parameters carry the arguments for the executor.
	Parameters map[string]string `json:"parameters,omitempty"`

	// DependsOn lists step IDs that must complete first.
	DependsOn []string `json:"depends_on,omitempty"`
}

// InstallPlan is the ordered sequence of steps produced by one
// resolution call. It is immutable once produced and consumed exactly
// once by an executor; it carries no timestamps or random identity.
type InstallPlan struct {
	// Library is the library under test the plan provisions for.
	Library string `json:"library"`

	// BuildFlags is the union of backend-enablement toggles contributed
	// by emitted framework steps and the explicit configuration.
	BuildFlags []string `json:"build_flags"`

	// Steps is the total-ordered step sequence.
	Steps []InstallStep `json:"steps"`
}

// Step returns the step with the given ID.
func (p *InstallPlan) Step(id string) (*InstallStep, bool) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// StepsOfKind returns all steps of the given kind, in plan order.
func (p *InstallPlan) StepsOfKind(kind StepKind) []InstallStep {
	var out []InstallStep
	for _, s := range p.Steps {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the plan's structural invariants: dense ordinals,
// unique IDs, and every dependency resolving to an earlier step.
func (p *InstallPlan) Validate() error {
	seen := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		if s.Ordinal != i {
			return NewInternalError(fmt.Sprintf("step %s has ordinal %d at position %d", s.ID, s.Ordinal, i), nil)
		}
		if s.ID == "" {
			return NewInternalError(fmt.Sprintf("step at ordinal %d has empty ID", i), nil)
		}
		if _, dup := seen[s.ID]; dup {
			return NewInternalError(fmt.Sprintf("duplicate step ID %s", s.ID), nil)
		}
		seen[s.ID] = i
	}
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			at, ok := seen[dep]
			if !ok {
				return NewInternalError(fmt.Sprintf("step %s depends on missing step %s", s.ID, dep), nil)
			}
			if at >= s.Ordinal {
				return NewInternalError(fmt.Sprintf("step %s depends on later step %s", s.ID, dep), nil)
			}
		}
	}
	return nil
}

// RunStatus is the lifecycle state of a run or step execution.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// StepResult records the outcome of executing one step.
type StepResult struct {
	StepID     string    `json:"step_id"`
	Ordinal    int       `json:"ordinal"`
	Status     RunStatus `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Run records one execution of an InstallPlan.
type Run struct {
	ID         string       `json:"id"`
	PlanID     string       `json:"plan_id,omitempty"`
	Library    string       `json:"library"`
	Status     RunStatus    `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []StepResult `json:"results"`
}
