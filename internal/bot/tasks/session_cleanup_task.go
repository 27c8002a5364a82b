package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSessionCleanupTask drops habit dialogs idle longer than session.ttl and
// clears their leftover prompts from the chat.
func newSessionCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "session_cleanup")

	return func(ctx context.Context) error {
		startTime := time.Now()

		removed, err := deps.Sessions.ExpireSessions(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Session cleanup failed", "error", err)
			return fmt.Errorf("session cleanup failed: %w", err)
		}

		if removed > 0 {
			log.InfoContext(ctx, "Expired idle habit dialogs", "count", removed, "ttl", deps.Config.Session.TTL, "duration", time.Since(startTime))
		} else {
			log.DebugContext(ctx, "No idle habit dialogs to expire")
		}
		return nil
	}
}
