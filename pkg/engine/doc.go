// Package engine turns a validated environment configuration into an
// ordered InstallPlan. Planning is pure: the same configuration always
// yields a byte-identical plan, steps carry explicit depends-on edges,
// and execution is left entirely to a PlanExecutor implementation.
package engine
