package habit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Ledger records, per chat, the ids of the messages that belong to an
// in-progress dialog so they can be deleted at checkpoints.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	messages map[int64][]int
	logger   *slog.Logger
}

func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{
		messages: make(map[int64][]int),
		logger:   logger.With("component", "ledger"),
	}
}

// Record appends messageID to the chat's sequence. Zero ids are ignored.
func (l *Ledger) Record(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	l.mu.Lock()
	l.messages[chatID] = append(l.messages[chatID], messageID)
	l.mu.Unlock()
}

// Pending returns a copy of the ids recorded for chatID since the last flush.
func (l *Ledger) Pending(chatID int64) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.messages[chatID]
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}

// Forget drops the chat's sequence without deleting anything.
func (l *Ledger) Forget(chatID int64) {
	l.mu.Lock()
	delete(l.messages, chatID)
	l.mu.Unlock()
}

// Flush clears the chat's sequence and deletes each recorded message.
// Individual failures are logged and never stop the remaining deletions.
// It returns the number of messages actually deleted.
func (l *Ledger) Flush(ctx context.Context, chatID int64, deleter MessageDeleter) int {
	l.mu.Lock()
	ids := l.messages[chatID]
	delete(l.messages, chatID)
	l.mu.Unlock()

	if len(ids) == 0 {
		return 0
	}

	deleted := 0
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		err := deleter.DeleteMessage(ctx, chatID, id)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrDeleteForbidden):
			l.logger.DebugContext(ctx, "Skipped message cleanup", "chat_id", chatID, "message_id", id, "error", err)
		default:
			l.logger.WarnContext(ctx, "Failed to delete message", "chat_id", chatID, "message_id", id, "error", err)
		}
	}

	l.logger.DebugContext(ctx, "Flushed chat ledger", "chat_id", chatID, "recorded", len(ids), "deleted", deleted)
	return deleted
}
