package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tsay-bot/pkg/club"
)

//go:embed schema.sql
var embeddedSchema embed.FS

// SQLite keeps session lists in a SQLite database, one row per session.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite wraps an open database handle.
func NewSQLite(db *sql.DB, logger *slog.Logger) *SQLite {
	return &SQLite{db: db, logger: logger}
}

// InitSchema creates the sessions table if needed.
func (s *SQLite) InitSchema() error {
	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(strings.TrimSpace(string(b)))
	return err
}

// ReadAll returns the stored sessions in insertion order.
func (s *SQLite) ReadAll(ctx context.Context, namespace string) ([]club.Session, error) {
	if SessionsKey(namespace) == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, title, reminder_count, start_time
FROM sessions
WHERE namespace = ?
ORDER BY position
`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []club.Session
	for rows.Next() {
		var (
			sess  club.Session
			start string
		)
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.ReminderCount, &start); err != nil {
			return nil, err
		}
		if start != "" {
			if sess.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
				return nil, fmt.Errorf("parse start of session %s: %w", sess.ID, err)
			}
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// WriteAll replaces the stored sessions in a single transaction.
func (s *SQLite) WriteAll(ctx context.Context, namespace string, sessions []club.Session) (err error) {
	if SessionsKey(namespace) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	for i, sess := range sessions {
		start := ""
		if !sess.Start.IsZero() {
			start = sess.Start.UTC().Format(time.RFC3339Nano)
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO sessions(namespace, position, event_id, title, reminder_count, start_time)
VALUES (?, ?, ?, ?, ?, ?)
`, namespace, i, sess.ID, sess.Title, sess.ReminderCount, start); err != nil {
			return fmt.Errorf("insert session %s: %w", sess.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("Sessions saved to sqlite", "namespace", namespace, "count", len(sessions))
	return nil
}

// Namespaces lists the namespaces that have stored sessions.
func (s *SQLite) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT namespace FROM sessions ORDER BY namespace`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
