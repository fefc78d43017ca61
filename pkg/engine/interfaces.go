package engine

import "context"

// PlanExecutor consumes an InstallPlan. Implementations must execute
// steps in plan order respecting depends-on edges, report per-step
// results, and halt on the first fatal failure; the planner assumes no
// partial-continue semantics.
type PlanExecutor interface {
	Execute(ctx context.Context, plan *InstallPlan) (*Run, error)
}
