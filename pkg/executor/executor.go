package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/gantry-dev/gantry/pkg/engine"
	"github.com/gantry-dev/gantry/pkg/telemetry"
)

// LocalExecutor runs an InstallPlan on the local machine, step by
// step in plan order. It halts on the first failure and marks the
// remaining steps skipped.
type LocalExecutor struct {
	runner  CommandRunner
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	planID  string
}

var _ engine.PlanExecutor = (*LocalExecutor)(nil)

// ExecOption adjusts executor construction.
type ExecOption func(*LocalExecutor)

// WithMetrics attaches a metrics collector.
func WithMetrics(m *telemetry.Metrics) ExecOption {
	return func(e *LocalExecutor) { e.metrics = m }
}

// WithTracer attaches a tracer.
func WithTracer(t *telemetry.Tracer) ExecOption {
	return func(e *LocalExecutor) { e.tracer = t }
}

// WithPlanID records the persisted plan the run belongs to.
func WithPlanID(id string) ExecOption {
	return func(e *LocalExecutor) { e.planID = id }
}

// NewLocalExecutor creates an executor. A nil runner selects the
// os/exec runner.
func NewLocalExecutor(runner CommandRunner, logger *telemetry.Logger, opts ...ExecOption) *LocalExecutor {
	if runner == nil {
		runner = &ExecRunner{}
	}
	e := &LocalExecutor{
		runner: runner,
		logger: logger.Component("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every plan step in order. The returned Run carries one
// result per step, including skipped ones, so failures report the
// exact halt point.
func (e *LocalExecutor) Execute(ctx context.Context, plan *engine.InstallPlan) (*engine.Run, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	run := &engine.Run{
		ID:        uuid.NewString(),
		PlanID:    e.planID,
		Library:   plan.Library,
		Status:    engine.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	logger := e.logger.WithRunID(run.ID)

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.StartRunSpan(ctx, run.ID)
		defer span.End()
	}

	pip := pipBinary(plan)
	failed := false
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if failed {
			run.Results = append(run.Results, engine.StepResult{
				StepID:  step.ID,
				Ordinal: step.Ordinal,
				Status:  engine.RunStatusSkipped,
			})
			continue
		}

		result := e.executeStep(ctx, logger, step, pip)
		run.Results = append(run.Results, result)
		if result.Status == engine.RunStatusFailed {
			failed = true
		}
	}

	run.FinishedAt = time.Now().UTC()
	if failed {
		run.Status = engine.RunStatusFailed
	} else {
		run.Status = engine.RunStatusSucceeded
	}

	if e.metrics != nil {
		e.metrics.RunCompleted(string(run.Status), run.FinishedAt.Sub(run.StartedAt))
	}
	logger.Info(fmt.Sprintf("run finished with status %s", run.Status))
	return run, nil
}

func (e *LocalExecutor) executeStep(ctx context.Context, logger *telemetry.Logger, step *engine.InstallStep, pip string) engine.StepResult {
	result := engine.StepResult{
		StepID:    step.ID,
		Ordinal:   step.Ordinal,
		StartedAt: time.Now().UTC(),
	}
	stepLog := logger.WithStepID(step.ID)

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.StartStepSpan(ctx, step.ID, string(step.Kind))
		defer span.End()
	}

	cmds, err := commandsFor(step, pip)
	if err != nil {
		result.Status = engine.RunStatusFailed
		result.Error = err.Error()
		result.FinishedAt = time.Now().UTC()
		stepLog.Error(err, "step could not be translated to commands")
		return result
	}

	for _, cmd := range cmds {
		out, err := e.runner.Run(ctx, cmd)
		result.Output += out
		if err != nil {
			result.Status = engine.RunStatusFailed
			result.Error = fmt.Sprintf("%s: %v", cmd.Name, err)
			result.FinishedAt = time.Now().UTC()
			stepLog.Error(err, "step command failed")
			if e.metrics != nil {
				e.metrics.StepExecuted(string(step.Kind), string(result.Status),
					result.FinishedAt.Sub(result.StartedAt))
			}
			return result
		}
	}

	result.Status = engine.RunStatusSucceeded
	result.FinishedAt = time.Now().UTC()
	stepLog.Debug("step succeeded")
	if e.metrics != nil {
		e.metrics.StepExecuted(string(step.Kind), string(result.Status),
			result.FinishedAt.Sub(result.StartedAt))
	}
	return result
}

// pipBinary finds the pip executable the interpreter step selected,
// defaulting to pip3.
func pipBinary(plan *engine.InstallPlan) string {
	if s, ok := plan.Step("python-runtime"); ok {
		if pip := s.Parameters["pip"]; pip != "" {
			return pip
		}
	}
	return "pip3"
}
