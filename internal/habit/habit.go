// Package habit implements the habit creation dialog: input validation, the
// per-chat ledger of transient messages, the conversation state machine and
// the transaction that persists a finished habit and schedules its reminder.
//
// The package talks to the outside world only through the small interfaces
// declared here, so it can be driven without a live Telegram connection.
package habit

import (
	"context"
	"errors"

	"github.com/edgard/habitbot/internal/database"
)

// Errors a Messenger wraps when a delete cannot be performed. Both are
// expected during ledger flushes and are logged at debug level only.
var (
	ErrMessageNotFound = errors.New("message not found")
	ErrDeleteForbidden = errors.New("message delete forbidden")
)

// Outgoing is a message the dialog wants delivered to a chat.
type Outgoing struct {
	Text     string
	Markdown bool // legacy Telegram Markdown
	Menu     bool // attach the user menu keyboard
}

// MessageDeleter removes a previously sent or received message from a chat.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Messenger is the chat transport used by the dialog.
type Messenger interface {
	MessageDeleter
	// Send delivers msg and returns the id of the created message.
	Send(ctx context.Context, chatID int64, msg Outgoing) (int, error)
}

// UserResolver looks up the application user registered for a Telegram user.
// It returns nil, nil when the user is unknown.
type UserResolver interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*database.User, error)
}

// HabitCreator persists a habit atomically and returns the stored record.
type HabitCreator interface {
	CreateHabit(ctx context.Context, habit *database.Habit) (*database.Habit, error)
}

// ReminderJob asks the scheduler for a daily reminder of a stored habit.
type ReminderJob struct {
	OwnerID      int64
	ReminderTime string // HH:MM
	HabitName    string
	HabitID      int64
}

// ReminderScheduler accepts reminder jobs. Delivery is not awaited.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, job ReminderJob) error
}
