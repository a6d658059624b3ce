package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bdougie/jobtrace/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS job_actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    company TEXT NOT NULL,
    role TEXT NOT NULL,
    recruiter TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL,
    channel TEXT NOT NULL,
    confidence REAL,
    notes TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_actions_company ON job_actions(company);
`

// SQLiteSink stores actions in a local SQLite database.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteSink creates or opens the database at path and applies the
// schema. Safe to call on an existing database.
func OpenSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteSink{db: db, logger: logger.With("component", "sqlite_sink")}, nil
}

func (s *SQLiteSink) AppendActions(ctx context.Context, actions []models.JobAction) error {
	if len(actions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrSink, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO job_actions (company, role, recruiter, action, channel, confidence, notes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrSink, err)
	}
	defer stmt.Close()

	for _, a := range actions {
		var confidence sql.NullFloat64
		if a.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *a.Confidence, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, a.CompanyName, a.Role, a.RecruiterName, a.ActionType, a.Channel,
			confidence, a.Notes, a.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("%w: insert: %v", ErrSink, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSink, err)
	}
	s.logger.Info("wrote job actions", "count", len(actions))
	return nil
}

// ListActions returns every stored action, oldest first.
func (s *SQLiteSink) ListActions(ctx context.Context) ([]models.JobAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company, role, recruiter, action, channel, confidence, notes, timestamp FROM job_actions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JobAction
	for rows.Next() {
		var a models.JobAction
		var confidence sql.NullFloat64
		var ts string
		if err := rows.Scan(&a.CompanyName, &a.Role, &a.RecruiterName, &a.ActionType, &a.Channel, &confidence, &a.Notes, &ts); err != nil {
			return nil, err
		}
		if confidence.Valid {
			c := confidence.Float64
			a.Confidence = &c
		}
		if a.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
