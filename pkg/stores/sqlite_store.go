package stores

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/gantry-dev/gantry/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists plans and runs in a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a store for the given database path. Init
// must be called before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Init opens the database and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SavePlan stores a resolved plan. The plan body is serialized once;
// its digest lets identical resolutions be spotted across records.
func (s *SQLiteStore) SavePlan(ctx context.Context, plan *engine.InstallPlan) (*PlanRecord, error) {
	body, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	sum := sha256.Sum256(body)

	rec := &PlanRecord{
		ID:        uuid.NewString(),
		Library:   plan.Library,
		Digest:    hex.EncodeToString(sum[:]),
		Plan:      plan,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, library, digest, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Library, rec.Digest, string(body), rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	return rec, nil
}

// GetPlan retrieves a plan record by ID.
func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	rec := &PlanRecord{}
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, library, digest, body, created_at FROM plans WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Library, &rec.Digest, &body, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	rec.Plan = &engine.InstallPlan{}
	if err := json.Unmarshal([]byte(body), rec.Plan); err != nil {
		return nil, fmt.Errorf("decode plan body: %w", err)
	}
	return rec, nil
}

// ListPlans returns the newest plan records first.
func (s *SQLiteStore) ListPlans(ctx context.Context, limit int) ([]*PlanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, library, digest, body, created_at FROM plans ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var records []*PlanRecord
	for rows.Next() {
		rec := &PlanRecord{}
		var body string
		if err := rows.Scan(&rec.ID, &rec.Library, &rec.Digest, &body, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		rec.Plan = &engine.InstallPlan{}
		if err := json.Unmarshal([]byte(body), rec.Plan); err != nil {
			return nil, fmt.Errorf("decode plan body: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveRun persists a run and its step results in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *engine.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, plan_id, library, status, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, finished_at = excluded.finished_at`,
		run.ID, nullable(run.PlanID), run.Library, string(run.Status), run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM step_results WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear step results: %w", err)
	}
	for _, r := range run.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO step_results (run_id, step_id, ordinal, status, output, error, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, r.StepID, r.Ordinal, string(r.Status), r.Output, r.Error, r.StartedAt, r.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("save step result %s: %w", r.StepID, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run with its step results.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*engine.Run, error) {
	run := &engine.Run{}
	var planID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, plan_id, library, status, started_at, finished_at FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &planID, &run.Library, &run.Status, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.PlanID = planID.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, ordinal, status, output, error, started_at, finished_at
		 FROM step_results WHERE run_id = ? ORDER BY ordinal`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get step results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r engine.StepResult
		if err := rows.Scan(&r.StepID, &r.Ordinal, &r.Status, &r.Output, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		run.Results = append(run.Results, r)
	}
	return run, rows.Err()
}

// ListRuns returns the newest runs first, optionally scoped to a plan.
func (s *SQLiteStore) ListRuns(ctx context.Context, planID string, limit int) ([]*engine.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, plan_id, library, status, started_at, finished_at FROM runs`
	args := []interface{}{}
	if planID != "" {
		query += ` WHERE plan_id = ?`
		args = append(args, planID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*engine.Run
	for rows.Next() {
		run := &engine.Run{}
		var pid sql.NullString
		if err := rows.Scan(&run.ID, &pid, &run.Library, &run.Status, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.PlanID = pid.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
