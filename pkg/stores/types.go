package stores

import (
	"context"
	"errors"
	"time"

	"github.com/gantry-dev/gantry/pkg/engine"
)

// ErrNotFound is returned when a plan or run does not exist.
var ErrNotFound = errors.New("not found")

// PlanRecord is a resolved plan persisted with its identity. The plan
// body is stored as canonical JSON so identical configurations can be
// recognized by digest.
type PlanRecord struct {
	// ID is the record's UUID, assigned at save time.
	ID string

	// Library is the library the plan provisions.
	Library string

	// Digest is the sha256 of the canonical plan JSON.
	Digest string

	// Plan is the resolved plan.
	Plan *engine.InstallPlan

	// CreatedAt is when the record was saved.
	CreatedAt time.Time
}

// Store persists resolved plans and their execution history.
type Store interface {
	// Init opens the underlying database.
	Init(ctx context.Context) error

	// Migrate brings the schema up to date.
	Migrate(ctx context.Context) error

	// Close releases the database.
	Close() error

	// SavePlan persists a resolved plan and returns its record.
	SavePlan(ctx context.Context, plan *engine.InstallPlan) (*PlanRecord, error)

	// GetPlan retrieves a plan record by ID. Returns ErrNotFound
	// when no such plan exists.
	GetPlan(ctx context.Context, id string) (*PlanRecord, error)

	// ListPlans returns the most recent plan records, newest first.
	ListPlans(ctx context.Context, limit int) ([]*PlanRecord, error)

	// SaveRun persists an execution run with its step results.
	SaveRun(ctx context.Context, run *engine.Run) error

	// GetRun retrieves a run by ID. Returns ErrNotFound when no
	// such run exists.
	GetRun(ctx context.Context, id string) (*engine.Run, error)

	// ListRuns returns the most recent runs for a plan, newest
	// first. An empty planID lists runs across all plans.
	ListRuns(ctx context.Context, planID string, limit int) ([]*engine.Run, error)
}
