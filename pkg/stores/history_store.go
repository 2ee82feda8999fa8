package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/hoistlab/hoist/pkg/orchestrator"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// HistoryStore persists command records in SQLite, implementing
// orchestrator.History. Records are append-only.
type HistoryStore struct {
	db   *sql.DB
	path string
}

var _ orchestrator.History = (*HistoryStore)(nil)

// NewHistoryStore creates a store backed by the database file at path.
func NewHistoryStore(path string) (*HistoryStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &HistoryStore{path: path}, nil
}

// Init opens the database, enables WAL mode, and runs migrations.
func (s *HistoryStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return s.migrate()
}

func (s *HistoryStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append stores one finished command record and its step outcomes.
func (s *HistoryStore) Append(ctx context.Context, record orchestrator.CommandRecord) error {
	if s.db == nil {
		return fmt.Errorf("history store not initialized")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO command_records (id, environment, verb, outcome, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Environment,
		string(record.Verb),
		string(record.Outcome),
		record.Error,
		record.StartedAt.UnixNano(),
		record.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert command record: %w", err)
	}

	for i, step := range record.Steps {
		// Skipped steps never ran and carry zero timestamps.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO step_records (command_id, position, step, outcome, error, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID,
			i,
			step.Step,
			string(step.Outcome),
			step.Error,
			nanosOrZero(step.StartedAt),
			nanosOrZero(step.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("insert step record: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit records, newest first. An empty
// environment name returns records across all environments.
func (s *HistoryStore) Recent(ctx context.Context, environment string, limit int) ([]orchestrator.CommandRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, environment, verb, outcome, error, started_at, finished_at
		FROM command_records`
	args := []any{}
	if environment != "" {
		query += ` WHERE environment = ?`
		args = append(args, environment)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query command records: %w", err)
	}
	defer rows.Close()

	var records []orchestrator.CommandRecord
	for rows.Next() {
		var rec orchestrator.CommandRecord
		var verb, outcome string
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Environment, &verb, &outcome, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan command record: %w", err)
		}
		rec.Verb = orchestrator.Verb(verb)
		rec.Outcome = orchestrator.Outcome(outcome)
		rec.StartedAt = time.Unix(0, started).UTC()
		rec.FinishedAt = time.Unix(0, finished).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		steps, err := s.stepsFor(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Steps = steps
	}
	return records, nil
}

func (s *HistoryStore) stepsFor(ctx context.Context, commandID string) ([]orchestrator.StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, outcome, error, started_at, finished_at
		FROM step_records
		WHERE command_id = ?
		ORDER BY position`,
		commandID,
	)
	if err != nil {
		return nil, fmt.Errorf("query step records: %w", err)
	}
	defer rows.Close()

	var steps []orchestrator.StepRecord
	for rows.Next() {
		var step orchestrator.StepRecord
		var outcome string
		var started, finished int64
		if err := rows.Scan(&step.Step, &outcome, &step.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan step record: %w", err)
		}
		step.Outcome = orchestrator.Outcome(outcome)
		step.StartedAt = timeOrZero(started)
		step.FinishedAt = timeOrZero(finished)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func nanosOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeOrZero(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}
