package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
	"github.com/edgard/habitbot/internal/gemini"
	"github.com/edgard/habitbot/internal/habit"
)

// ErrReminderTargetGone is returned when the habit or its owner was removed
// after the reminder was scheduled.
var ErrReminderTargetGone = errors.New("reminder target no longer exists")

// ReminderStore is the part of database.Store used to deliver reminders.
type ReminderStore interface {
	GetHabit(ctx context.Context, id int64) (*database.Habit, error)
	GetUserByID(ctx context.Context, id int64) (*database.User, error)
}

// ReminderSender formats and sends the daily reminder of a habit.
type ReminderSender struct {
	store     ReminderStore
	messenger habit.Messenger
	gemini    gemini.Client // optional
	messages  config.MessagesConfig
	logger    *slog.Logger
}

// NewReminderSender creates a sender. geminiClient may be nil.
func NewReminderSender(store ReminderStore, messenger habit.Messenger, geminiClient gemini.Client, messages config.MessagesConfig, logger *slog.Logger) *ReminderSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderSender{
		store:     store,
		messenger: messenger,
		gemini:    geminiClient,
		messages:  messages,
		logger:    logger.With("component", "reminder_sender"),
	}
}

// Deliver sends the reminder for job to the owner's private chat.
func (r *ReminderSender) Deliver(ctx context.Context, job habit.ReminderJob) error {
	h, err := r.store.GetHabit(ctx, job.HabitID)
	if err != nil {
		return fmt.Errorf("failed to load habit %d: %w", job.HabitID, err)
	}
	if h == nil {
		return fmt.Errorf("habit %d: %w", job.HabitID, ErrReminderTargetGone)
	}

	owner, err := r.store.GetUserByID(ctx, h.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to load owner %d: %w", h.OwnerID, err)
	}
	if owner == nil {
		return fmt.Errorf("owner %d of habit %d: %w", h.OwnerID, h.ID, ErrReminderTargetGone)
	}

	text := fmt.Sprintf(r.messages.ReminderFmt, h.HabitName)
	if r.gemini != nil {
		note, err := r.gemini.GenerateReminderNote(ctx, h)
		if err != nil {
			r.logger.WarnContext(ctx, "Sending reminder without AI note", "habit_id", h.ID, "error", err)
		} else if note != "" {
			text += "\n\n" + note
		}
	}

	if _, err := r.messenger.Send(ctx, owner.ChatID, habit.Outgoing{Text: text}); err != nil {
		return fmt.Errorf("failed to send reminder for habit %d: %w", h.ID, err)
	}
	return nil
}
