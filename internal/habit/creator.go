package habit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/edgard/habitbot/internal/database"
)

// Outcome is the result of a creation attempt as seen by the user.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUserNotFound
	OutcomeCreateFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUserNotFound:
		return "user_not_found"
	case OutcomeCreateFailed:
		return "create_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes a finished creation attempt.
type Result struct {
	Outcome Outcome
	Habit   *database.Habit // set when Outcome is OutcomeCreated
	Err     error           // cause of a failed outcome
	// ScheduleErr is set when the habit was stored but its reminder was not scheduled.
	ScheduleErr error
}

// CreatorMessages are the texts sent at the end of the dialog.
type CreatorMessages struct {
	HabitCreated           string
	HabitCreateFailed      string
	UserNotFound           string
	ReminderScheduleFailed string
}

// CreatorDeps are the collaborators of a Creator.
type CreatorDeps struct {
	Users     UserResolver
	Habits    HabitCreator
	Reminders ReminderScheduler
	Sessions  SessionStore
	Ledger    *Ledger
	Messenger Messenger
	Messages  CreatorMessages
	Logger    *slog.Logger
}

// Creator turns a completed draft into a stored habit with a scheduled reminder.
type Creator struct {
	deps     CreatorDeps
	validate *validator.Validate
	log      *slog.Logger
}

// NewDraftValidator returns a validator that knows the habit_duration and
// reminder_time tags used on Draft.
func NewDraftValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("habit_duration", func(fl validator.FieldLevel) bool {
		return ValidateDuration(fl.Field().String())
	})
	_ = v.RegisterValidation("reminder_time", func(fl validator.FieldLevel) bool {
		return ValidateTime(fl.Field().String())
	})
	return v
}

func NewCreator(deps CreatorDeps) *Creator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Ledger == nil {
		deps.Ledger = NewLedger(logger)
	}
	return &Creator{
		deps:     deps,
		validate: NewDraftValidator(),
		log:      logger.With("component", "habit_creator"),
	}
}

// Complete runs the creation transaction for a session that reached
// StateCompleted. The session is removed before anything is persisted, so
// a given session produces at most one habit.
func (c *Creator) Complete(ctx context.Context, s Session) Result {
	log := c.log.With("user_id", s.UserID, "chat_id", s.ChatID)

	user, err := c.deps.Users.GetUserByTelegramID(ctx, s.UserID)
	if err != nil || user == nil {
		c.discardSession(ctx, s.UserID)
		if err != nil {
			log.ErrorContext(ctx, "Failed to resolve user", "error", err)
			c.reply(ctx, s.ChatID, Outgoing{Text: c.deps.Messages.HabitCreateFailed})
			return Result{Outcome: OutcomeCreateFailed, Err: fmt.Errorf("failed to resolve user: %w", err)}
		}
		log.WarnContext(ctx, "User not registered, habit not created")
		c.reply(ctx, s.ChatID, Outgoing{Text: c.deps.Messages.UserNotFound})
		return Result{Outcome: OutcomeUserNotFound}
	}

	record := &database.Habit{
		OwnerID:      user.ID,
		HabitName:    s.Draft.HabitName,
		Duration:     s.Draft.Duration,
		Comments:     s.Draft.Comments,
		ReminderTime: s.Draft.ReminderTime,
	}

	if err := c.deps.Sessions.Delete(ctx, s.UserID); err != nil {
		log.ErrorContext(ctx, "Failed to clear session before creating habit", "error", err)
		c.reply(ctx, s.ChatID, Outgoing{Text: c.deps.Messages.HabitCreateFailed})
		return Result{Outcome: OutcomeCreateFailed, Err: fmt.Errorf("failed to clear session: %w", err)}
	}

	if err := c.validate.Struct(s.Draft); err != nil {
		log.ErrorContext(ctx, "Completed draft failed validation", "error", err)
		c.reply(ctx, s.ChatID, Outgoing{Text: c.deps.Messages.HabitCreateFailed})
		return Result{Outcome: OutcomeCreateFailed, Err: fmt.Errorf("invalid draft: %w", err)}
	}

	created, err := c.deps.Habits.CreateHabit(ctx, record)
	if err == nil && created == nil {
		err = errors.New("store returned no habit")
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to create habit", "owner_id", user.ID, "error", err)
		c.reply(ctx, s.ChatID, Outgoing{Text: c.deps.Messages.HabitCreateFailed})
		return Result{Outcome: OutcomeCreateFailed, Err: fmt.Errorf("failed to create habit: %w", err)}
	}

	log.InfoContext(ctx, "Habit created", "habit_id", created.ID, "owner_id", created.OwnerID)
	c.reply(ctx, s.ChatID, Outgoing{Text: c.deps.Messages.HabitCreated, Menu: true})

	result := Result{Outcome: OutcomeCreated, Habit: created}
	job := ReminderJob{
		OwnerID:      created.OwnerID,
		ReminderTime: created.ReminderTime,
		HabitName:    created.HabitName,
		HabitID:      created.ID,
	}
	if err := c.deps.Reminders.ScheduleReminder(ctx, job); err != nil {
		log.ErrorContext(ctx, "Failed to schedule reminder, habit kept", "habit_id", created.ID, "error", err)
		c.reply(ctx, s.ChatID, Outgoing{Text: c.deps.Messages.ReminderScheduleFailed})
		result.ScheduleErr = err
	}
	return result
}

func (c *Creator) discardSession(ctx context.Context, userID int64) {
	if err := c.deps.Sessions.Delete(ctx, userID); err != nil {
		c.log.WarnContext(ctx, "Failed to discard session", "user_id", userID, "error", err)
	}
}

// reply sends msg and records it in the chat ledger.
func (c *Creator) reply(ctx context.Context, chatID int64, msg Outgoing) {
	id, err := c.deps.Messenger.Send(ctx, chatID, msg)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
		return
	}
	c.deps.Ledger.Record(chatID, id)
}
