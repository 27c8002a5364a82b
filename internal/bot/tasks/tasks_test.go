package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
)

type fakeExpirer struct {
	removed int
	err     error
	calls   int
}

func (f *fakeExpirer) ExpireSessions(context.Context) (int, error) {
	f.calls++
	return f.removed, f.err
}

func newDeps(t *testing.T, sessions SessionExpirer) TaskDeps {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{}
	cfg.Database.OperationTimeout = 5 * time.Second
	cfg.Session.TTL = 30 * time.Minute

	return TaskDeps{
		Logger:   logger,
		Store:    database.NewStore(db, logger),
		Sessions: sessions,
		Config:   cfg,
	}
}

func TestRegisterAllTasks(t *testing.T) {
	all := RegisterAllTasks(newDeps(t, &fakeExpirer{}))
	assert.Contains(t, all, config.TaskSQLMaintenance)
	assert.Contains(t, all, config.TaskSessionCleanup)

	withoutSessions := RegisterAllTasks(newDeps(t, nil))
	assert.Contains(t, withoutSessions, config.TaskSQLMaintenance)
	assert.NotContains(t, withoutSessions, config.TaskSessionCleanup)
}

func TestSQLMaintenanceTask(t *testing.T) {
	task := newSQLMaintenanceTask(newDeps(t, nil))
	assert.NoError(t, task(context.Background()))
}

func TestSessionCleanupTask(t *testing.T) {
	expirer := &fakeExpirer{removed: 2}
	task := newSessionCleanupTask(newDeps(t, expirer))

	require.NoError(t, task(context.Background()))
	assert.Equal(t, 1, expirer.calls)

	expirer.err = errors.New("store closed")
	assert.Error(t, task(context.Background()))
}
