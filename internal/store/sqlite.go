// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists the current goal and onboarding sessions with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS goals (
			slot        INTEGER PRIMARY KEY CHECK (slot = 1),
			id          TEXT NOT NULL,
			title       TEXT NOT NULL,
			start_date  TEXT NOT NULL,
			target_date TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS onboarding_sessions (
			id               TEXT PRIMARY KEY,
			current_question INTEGER NOT NULL DEFAULT 0,
			answers_json     TEXT NOT NULL DEFAULT '[]',
			completed        INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetGoal returns the current goal.
func (s *SQLiteStore) GetGoal(ctx context.Context) (*Goal, error) {
	var g Goal
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, start_date, target_date FROM goals WHERE slot = 1`,
	).Scan(&g.ID, &g.Title, &g.StartDate, &g.TargetDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying goal: %w", err)
	}
	return &g, nil
}

// SetGoal replaces the current goal.
func (s *SQLiteStore) SetGoal(ctx context.Context, goal *Goal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (slot, id, title, start_date, target_date, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			id = excluded.id,
			title = excluded.title,
			start_date = excluded.start_date,
			target_date = excluded.target_date,
			updated_at = excluded.updated_at
	`, goal.ID, goal.Title, goal.StartDate, goal.TargetDate, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving goal: %w", err)
	}
	s.logger.Debug("goal saved", "goal_id", goal.ID)
	return nil
}

// ClearGoal removes the current goal and returns what was removed.
func (s *SQLiteStore) ClearGoal(ctx context.Context) (*Goal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var g Goal
	err = tx.QueryRowContext(ctx,
		`SELECT id, title, start_date, target_date FROM goals WHERE slot = 1`,
	).Scan(&g.ID, &g.Title, &g.StartDate, &g.TargetDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying goal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE slot = 1`); err != nil {
		return nil, fmt.Errorf("deleting goal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	s.logger.Debug("goal cleared", "goal_id", g.ID)
	return &g, nil
}

// CreateOnboardingSession inserts a new session.
func (s *SQLiteStore) CreateOnboardingSession(ctx context.Context, session *OnboardingSession) error {
	answers, err := encodeAnswers(session.Answers)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO onboarding_sessions (id, current_question, answers_json, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, session.ID, session.CurrentQuestion, answers, session.Completed, now, now)
	if err != nil {
		return fmt.Errorf("inserting onboarding session: %w", err)
	}
	return nil
}

// GetOnboardingSession retrieves a session by ID.
func (s *SQLiteStore) GetOnboardingSession(ctx context.Context, id string) (*OnboardingSession, error) {
	var (
		sess    OnboardingSession
		answers string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, current_question, answers_json, completed
		FROM onboarding_sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.CurrentQuestion, &answers, &sess.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying onboarding session: %w", err)
	}

	if err := json.Unmarshal([]byte(answers), &sess.Answers); err != nil {
		return nil, fmt.Errorf("decoding answers: %w", err)
	}
	return &sess, nil
}

// UpdateOnboardingSession overwrites progress for an existing session,
// guarded on the question the caller read.
func (s *SQLiteStore) UpdateOnboardingSession(ctx context.Context, session *OnboardingSession, fromQuestion int) error {
	answers, err := encodeAnswers(session.Answers)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE onboarding_sessions
		SET current_question = ?, answers_json = ?, completed = ?, updated_at = ?
		WHERE id = ? AND current_question = ?
	`, session.CurrentQuestion, answers, session.Completed, time.Now().UTC().Format(time.RFC3339), session.ID, fromQuestion)
	if err != nil {
		return fmt.Errorf("updating onboarding session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM onboarding_sessions WHERE id = ?`, session.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking onboarding session: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// DeleteOnboardingSession removes a session.
func (s *SQLiteStore) DeleteOnboardingSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM onboarding_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting onboarding session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeAnswers(answers []bool) (string, error) {
	if answers == nil {
		answers = []bool{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encoding answers: %w", err)
	}
	return string(data), nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
