package policy

import (
	"time"

	"github.com/gantry-dev/gantry/pkg/engine"
)

// Severity ranks how strongly a violation blocks a plan.
type Severity string

const (
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"

	// SeverityWarning flags something worth reviewing.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the plan under enforcing mode.
	SeverityError Severity = "error"
)

// Mode selects whether violations block plans or are only reported.
type Mode string

const (
	// ModeAdvisory reports violations without blocking.
	ModeAdvisory Mode = "advisory"

	// ModeEnforcing rejects plans with error-level violations.
	ModeEnforcing Mode = "enforcing"
)

// Policy is one named Rego rule set evaluated against plans.
type Policy struct {
	// Name uniquely identifies the policy.
	Name string `json:"name"`

	// Description says what the policy checks.
	Description string `json:"description"`

	// Rego holds the policy source. The module must expose a
	// `deny` set; each member becomes a Violation.
	Rego string `json:"rego"`

	// Severity is the default for violations that do not carry
	// their own.
	Severity Severity `json:"severity"`

	// Enabled gates evaluation without unloading the policy.
	Enabled bool `json:"enabled"`
}

// Violation is one policy finding against a plan.
type Violation struct {
	// Policy names the policy that produced the finding.
	Policy string `json:"policy"`

	// Step is the offending step ID, when the finding is
	// step-scoped.
	Step string `json:"step,omitempty"`

	// Message describes the finding.
	Message string `json:"message"`

	// Severity is the finding's severity.
	Severity Severity `json:"severity"`
}

// Decision is the outcome of evaluating every enabled policy
// against one plan.
type Decision struct {
	// Allowed reports whether the plan may proceed. Advisory mode
	// always allows; enforcing mode blocks on error violations.
	Allowed bool `json:"allowed"`

	// Violations lists every finding, blocking or not.
	Violations []Violation `json:"violations,omitempty"`

	// Policies names the policies that were evaluated.
	Policies []string `json:"policies"`

	// EvaluatedAt records when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Input is the document handed to Rego evaluation.
type Input struct {
	Plan    *engine.InstallPlan `json:"plan"`
	Context *Context            `json:"context"`
}

// Context carries evaluation circumstances policies may branch on.
type Context struct {
	// Environment distinguishes e.g. "ci" from "release".
	Environment string `json:"environment,omitempty"`

	// Timestamp is when the evaluation runs.
	Timestamp time.Time `json:"timestamp"`
}
