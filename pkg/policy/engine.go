package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/gantry-dev/gantry/pkg/engine"
)

// Engine evaluates Rego policies against install plans before they
// reach an executor.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	store    storage.Store
	logger   zerolog.Logger
	mode     Mode
	env      string
}

type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	compiled time.Time
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithMode sets advisory or enforcing evaluation.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithEnvironment sets the environment name policies see in their
// input context.
func WithEnvironment(env string) Option {
	return func(e *Engine) { e.env = env }
}

// NewEngine creates a policy engine with the built-in policies
// compiled and enabled. The default mode is advisory.
func NewEngine(logger zerolog.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		store:    inmem.New(),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
		mode:     ModeAdvisory,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, p := range BuiltinPolicies() {
		if err := e.compileAndStore(context.Background(), p); err != nil {
			return nil, fmt.Errorf("compile built-in policy %s: %w", p.Name, err)
		}
	}

	e.logger.Debug().Int("count", len(e.policies)).Msg("built-in policies compiled")
	return e, nil
}

// EvaluatePlan runs every enabled policy against the plan and
// aggregates the findings into a Decision.
func (e *Engine) EvaluatePlan(ctx context.Context, plan *engine.InstallPlan) (*Decision, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := &Input{
		Plan: plan,
		Context: &Context{
			Environment: e.env,
			Timestamp:   time.Now().UTC(),
		},
	}

	decision := &Decision{
		Allowed:     true,
		Policies:    make([]string, 0, len(e.policies)),
		EvaluatedAt: input.Context.Timestamp,
	}

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}
		decision.Policies = append(decision.Policies, cp.policy.Name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			return nil, fmt.Errorf("evaluate policy %s: %w", cp.policy.Name, err)
		}
		decision.Violations = append(decision.Violations, violations...)
	}

	if e.mode == ModeEnforcing {
		for i := range decision.Violations {
			if decision.Violations[i].Severity == SeverityError {
				decision.Allowed = false
				break
			}
		}
	}

	e.logger.Debug().
		Str("library", plan.Library).
		Int("violations", len(decision.Violations)).
		Bool("allowed", decision.Allowed).
		Msg("plan policy evaluation completed")

	return decision, nil
}

// LoadPolicies compiles and registers policies from the given paths,
// replacing same-named policies already loaded.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range policies {
		if err := e.compileAndStore(ctx, policies[i]); err != nil {
			return fmt.Errorf("compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().Int("count", len(policies)).Msg("policies loaded")
	return nil
}

// ListPolicies returns every registered policy.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		out = append(out, *cp.policy)
	}
	return out
}

func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	query := fmt.Sprintf("data.%s.deny", packageName(cp.policy.Rego))

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Store(e.store),
		rego.Query(query),
		rego.Input(input),
	)
	results, err := r.Eval(ctx)
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, toViolation(cp.policy, d))
			}
		}
	}
	return violations, nil
}

func (e *Engine) compileAndStore(ctx context.Context, p Policy) error {
	module, err := ast.ParseModule(p.Name, p.Rego)
	if err != nil {
		return fmt.Errorf("parse rego: %w", err)
	}

	// Compile eagerly so broken policies fail at load time, not at
	// the first plan evaluation.
	r := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Store(e.store),
		rego.Query("data"),
	)
	if _, err := r.PrepareForEval(ctx); err != nil {
		return fmt.Errorf("prepare query: %w", err)
	}

	e.policies[p.Name] = &compiledPolicy{
		policy:   &p,
		module:   module,
		compiled: time.Now(),
	}
	return nil
}

func packageName(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			if parts := strings.Fields(trimmed); len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "gantry.plan"
}

func toViolation(p *Policy, result interface{}) Violation {
	v := Violation{Policy: p.Name, Severity: p.Severity}

	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]interface{}:
		if msg, ok := r["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := r["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if step, ok := r["step"].(string); ok {
			v.Step = step
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}
