package storage

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsay-bot/pkg/club"
)

// sessionStore is the contract every backend satisfies.
type sessionStore interface {
	ReadAll(ctx context.Context, namespace string) ([]club.Session, error)
	WriteAll(ctx context.Context, namespace string, sessions []club.Session) error
	Namespaces(ctx context.Context) ([]string, error)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocalStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(nil, "", dir, discardLogger()), dir
}

func newSQLiteStore(t *testing.T) *SQLite {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	s := NewSQLite(db, discardLogger())
	require.NoError(t, s.InitSchema())
	return s
}

func backends(t *testing.T) map[string]sessionStore {
	local, _ := newLocalStore(t)
	return map[string]sessionStore{
		"local":  local,
		"sqlite": newSQLiteStore(t),
	}
}

func sampleSessions() []club.Session {
	return []club.Session{
		{ID: "1001", Title: "Arrival", ReminderCount: 2, Start: time.Date(2026, 10, 29, 2, 0, 0, 0, time.UTC)},
		{ID: "1002", Title: "Paris, Texas", ReminderCount: 1},
		{ID: "1003", Title: "Heat", ReminderCount: 2, Start: time.Date(2026, 11, 5, 3, 0, 0, 0, time.UTC)},
	}
}

func assertSessions(t *testing.T, want, got []club.Session) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID, "session %d", i)
		assert.Equal(t, want[i].Title, got[i].Title, "session %d", i)
		assert.Equal(t, want[i].ReminderCount, got[i].ReminderCount, "session %d", i)
		assert.True(t, want[i].Start.Equal(got[i].Start), "session %d start: want %v got %v", i, want[i].Start, got[i].Start)
	}
}

func TestReadAllEmpty(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.ReadAll(context.Background(), "club")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.WriteAll(ctx, "club", sampleSessions()))

			first, err := s.ReadAll(ctx, "club")
			require.NoError(t, err)
			assertSessions(t, sampleSessions(), first)

			// Writing back what was read is a no-op.
			require.NoError(t, s.WriteAll(ctx, "club", first))
			second, err := s.ReadAll(ctx, "club")
			require.NoError(t, err)
			assertSessions(t, first, second)
		})
	}
}

func TestWriteAllReplaces(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.WriteAll(ctx, "club", sampleSessions()))

			survivors := []club.Session{{ID: "1002", Title: "Paris, Texas", ReminderCount: 1}}
			require.NoError(t, s.WriteAll(ctx, "club", survivors))

			got, err := s.ReadAll(ctx, "club")
			require.NoError(t, err)
			assertSessions(t, survivors, got)

			require.NoError(t, s.WriteAll(ctx, "club", nil))
			got, err = s.ReadAll(ctx, "club")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.WriteAll(ctx, "alpha", sampleSessions()[:1]))
			require.NoError(t, s.WriteAll(ctx, "beta", sampleSessions()[1:]))

			alpha, err := s.ReadAll(ctx, "alpha")
			require.NoError(t, err)
			assertSessions(t, sampleSessions()[:1], alpha)

			beta, err := s.ReadAll(ctx, "beta")
			require.NoError(t, err)
			assertSessions(t, sampleSessions()[1:], beta)

			names, err := s.Namespaces(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
		})
	}
}

func TestInvalidNamespace(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, ns := range []string{"", "../etc", "a/b", "with space"} {
				_, err := s.ReadAll(ctx, ns)
				assert.ErrorIs(t, err, ErrInvalidNamespace, "namespace %q", ns)
				assert.ErrorIs(t, s.WriteAll(ctx, ns, nil), ErrInvalidNamespace, "namespace %q", ns)
			}
		})
	}
}

func TestLocalWriteLeavesNoTempFile(t *testing.T) {
	s, dir := newLocalStore(t)
	require.NoError(t, s.WriteAll(context.Background(), "club", sampleSessions()))

	entries, err := os.ReadDir(filepath.Join(dir, "club"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sessionsObject, entries[0].Name())
}

func TestLocalCorruptFile(t *testing.T) {
	s, dir := newLocalStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "club"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "club", sessionsObject), []byte("{not json"), 0o600))

	_, err := s.ReadAll(context.Background(), "club")
	assert.Error(t, err)
}

func TestSessionsKey(t *testing.T) {
	assert.Equal(t, "tsay/sessions.json", SessionsKey("tsay"))
	assert.Equal(t, "club_2-b/sessions.json", SessionsKey("club_2-b"))
	assert.Empty(t, SessionsKey("../tsay"))
}
