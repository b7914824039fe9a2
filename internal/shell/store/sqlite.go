package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.db, run)
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return deleteRun(ctx, s.db, id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) SaveStep(ctx context.Context, runID string, step domain.StepRecord) error {
	return saveStep(ctx, s.db, runID, step)
}

func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]domain.StepRecord, error) {
	return listSteps(ctx, s.db, runID)
}

// WithTx runs fn inside a transaction. The transaction is rolled back when
// fn returns an error.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return deleteRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) SaveStep(ctx context.Context, runID string, step domain.StepRecord) error {
	return saveStep(ctx, s.tx, runID, step)
}

func (s *txSQLiteStore) ListSteps(ctx context.Context, runID string) ([]domain.StepRecord, error) {
	return listSteps(ctx, s.tx, runID)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Rows
// =============================================================================

type runRow struct {
	ID            string  `db:"id"`
	Name          string  `db:"name"`
	ResourceGroup string  `db:"resource_group"`
	ClusterName   string  `db:"cluster_name"`
	Orchestrator  string  `db:"orchestrator"`
	Status        string  `db:"status"`
	FinalState    string  `db:"final_state"`
	CurrentStep   string  `db:"current_step"`
	ErrorMessage  string  `db:"error_message"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
	CompletedAt   *string `db:"completed_at"`
}

type stepRow struct {
	RunID      string  `db:"run_id"`
	Seq        int     `db:"seq"`
	StepID     string  `db:"step_id"`
	State      string  `db:"state"`
	StartedAt  string  `db:"started_at"`
	FinishedAt *string `db:"finished_at"`
}

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func runToRow(run *domain.Run) map[string]any {
	return map[string]any{
		"id":             run.ID,
		"name":           run.Name,
		"resource_group": run.ResourceGroup,
		"cluster_name":   run.ClusterName,
		"orchestrator":   string(run.Orchestrator),
		"status":         string(run.Status),
		"final_state":    run.FinalState.String(),
		"current_step":   run.CurrentStep,
		"error_message":  run.ErrorMessage,
		"created_at":     formatTime(run.CreatedAt),
		"updated_at":     formatTime(run.UpdatedAt),
		"completed_at":   formatOptionalTime(run.CompletedAt),
	}
}

func rowToRun(row *runRow) (*domain.Run, error) {
	finalState, err := domain.ParseDeploymentState(row.FinalState)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid final state", ErrInvalidData)
	}
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid created_at", ErrInvalidData)
	}
	updatedAt, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid updated_at", ErrInvalidData)
	}
	completedAt, err := parseOptionalTime(row.CompletedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid completed_at", ErrInvalidData)
	}

	return &domain.Run{
		ID:            row.ID,
		Name:          row.Name,
		ResourceGroup: row.ResourceGroup,
		ClusterName:   row.ClusterName,
		Orchestrator:  domain.Orchestrator(row.Orchestrator),
		Status:        domain.RunStatus(row.Status),
		FinalState:    finalState,
		CurrentStep:   row.CurrentStep,
		ErrorMessage:  row.ErrorMessage,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		CompletedAt:   completedAt,
	}, nil
}

func rowToStep(row *stepRow) (domain.StepRecord, error) {
	state, err := domain.ParseDeploymentState(row.State)
	if err != nil {
		return domain.StepRecord{}, NewStoreError("rowToStep", "step", row.StepID, "invalid state", ErrInvalidData)
	}
	startedAt, err := time.Parse(timeLayout, row.StartedAt)
	if err != nil {
		return domain.StepRecord{}, NewStoreError("rowToStep", "step", row.StepID, "invalid started_at", ErrInvalidData)
	}
	finishedAt, err := parseOptionalTime(row.FinishedAt)
	if err != nil {
		return domain.StepRecord{}, NewStoreError("rowToStep", "step", row.StepID, "invalid finished_at", ErrInvalidData)
	}
	return domain.StepRecord{
		Seq:        row.Seq,
		StepID:     row.StepID,
		State:      state,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}, nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createRun(ctx context.Context, exec executor, run *domain.Run) error {
	query := `
		INSERT INTO runs (
			id, name, resource_group, cluster_name, orchestrator, status,
			final_state, current_step, error_message,
			created_at, updated_at, completed_at
		) VALUES (
			:id, :name, :resource_group, :cluster_name, :orchestrator, :status,
			:final_state, :current_step, :error_message,
			:created_at, :updated_at, :completed_at
		)`

	if _, err := exec.NamedExecContext(ctx, query, runToRow(run)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}
	return nil
}

// getRun loads a run together with its steps.
func getRun(ctx context.Context, exec executor, id string) (*domain.Run, error) {
	var row runRow
	if err := exec.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	run, err := rowToRun(&row)
	if err != nil {
		return nil, err
	}
	steps, err := listSteps(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	run.Steps = steps
	return run, nil
}

func updateRun(ctx context.Context, exec executor, run *domain.Run) error {
	query := `
		UPDATE runs SET
			status = :status,
			final_state = :final_state,
			current_step = :current_step,
			error_message = :error_message,
			updated_at = :updated_at,
			completed_at = :completed_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("UpdateRun", "run", run.ID, "run not found", ErrNotFound)
	}
	return nil
}

func deleteRun(ctx context.Context, exec executor, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteRun", "run", id, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("DeleteRun", "run", id, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("DeleteRun", "run", id, "run not found", ErrNotFound)
	}
	return nil
}

// listRuns returns runs newest first, without their steps.
func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()

	var rows []runRow
	query := `SELECT * FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]domain.Run, 0, len(rows))
	for i := range rows {
		run, err := rowToRun(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// saveStep inserts the step or replaces the row with the same sequence.
func saveStep(ctx context.Context, exec executor, runID string, step domain.StepRecord) error {
	query := `
		INSERT INTO run_steps (run_id, seq, step_id, state, started_at, finished_at)
		VALUES (:run_id, :seq, :step_id, :state, :started_at, :finished_at)
		ON CONFLICT (run_id, seq) DO UPDATE SET
			state = excluded.state,
			finished_at = excluded.finished_at`

	row := map[string]any{
		"run_id":      runID,
		"seq":         step.Seq,
		"step_id":     step.StepID,
		"state":       step.State.String(),
		"started_at":  formatTime(step.StartedAt),
		"finished_at": formatOptionalTime(step.FinishedAt),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("SaveStep", "run", runID, "run not found", ErrForeignKey)
		}
		return NewStoreError("SaveStep", "step", step.StepID, err.Error(), err)
	}
	return nil
}

func listSteps(ctx context.Context, exec executor, runID string) ([]domain.StepRecord, error) {
	var rows []stepRow
	query := `SELECT * FROM run_steps WHERE run_id = ? ORDER BY seq`
	if err := exec.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, NewStoreError("ListSteps", "run", runID, err.Error(), err)
	}

	steps := make([]domain.StepRecord, 0, len(rows))
	for i := range rows {
		step, err := rowToStep(&rows[i])
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}
