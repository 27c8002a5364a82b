// Package tasks implements the scheduled maintenance tasks of the habit bot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
)

// SessionExpirer removes habit dialogs that have been idle too long.
type SessionExpirer interface {
	ExpireSessions(ctx context.Context) (int, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Sessions SessionExpirer
	Config   *config.Config
}
