package habit

import (
	"time"
)

// State is a step of the habit creation dialog.
type State string

const (
	StateAwaitingName         State = "awaiting_name"
	StateAwaitingDuration     State = "awaiting_duration"
	StateAwaitingComments     State = "awaiting_comments"
	StateAwaitingReminderTime State = "awaiting_reminder_time"
	StateCompleted            State = "completed"
)

func (s State) String() string { return string(s) }

// Valid reports whether s is one of the known dialog states.
func (s State) Valid() bool {
	switch s {
	case StateAwaitingName, StateAwaitingDuration, StateAwaitingComments,
		StateAwaitingReminderTime, StateCompleted:
		return true
	}
	return false
}

// Draft holds the habit attributes collected so far. A field is empty until
// its step has been answered successfully. The tags check only what the
// dialog steps enforce; a draft that passed every step always validates.
type Draft struct {
	HabitName    string `validate:"required"`
	Duration     string `validate:"required,habit_duration"`
	Comments     string
	ReminderTime string `validate:"required,reminder_time"`
}

// Session is the dialog state of one user.
type Session struct {
	UserID    int64
	ChatID    int64
	State     State
	Draft     Draft
	StartedAt time.Time
	UpdatedAt time.Time
}

// NewSession returns a session at the first step of the dialog.
func NewSession(userID, chatID int64, now time.Time) Session {
	return Session{
		UserID:    userID,
		ChatID:    chatID,
		State:     StateAwaitingName,
		StartedAt: now,
		UpdatedAt: now,
	}
}
