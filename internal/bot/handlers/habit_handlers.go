package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
	"github.com/edgard/habitbot/internal/habit"
)

// NewNewHabitHandler returns a handler for the /new_habit command.
func NewNewHabitHandler(deps HandlerDeps) bot.HandlerFunc {
	return newHabitHandler{deps}.Handle
}

// NewCancelHandler returns a handler for the /cancel command.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return cancelHandler{deps}.Handle
}

// NewConversationHandler returns the handler that feeds plain text into an
// active habit dialog.
func NewConversationHandler(deps HandlerDeps) bot.HandlerFunc {
	return conversationHandler{deps}.Handle
}

type newHabitHandler struct {
	deps HandlerDeps
}

func (h newHabitHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "new_habit")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "New habit handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	in := inboundFrom(update.Message)
	log.InfoContext(ctx, "Handling /new_habit command", "chat_id", in.ChatID, "user_id", in.UserID)

	if err := h.deps.Flow.Start(ctx, in); err != nil {
		log.ErrorContext(ctx, "Failed to start habit dialog", "error", err, "chat_id", in.ChatID)
		reply(ctx, h.deps, log, in.ChatID, habit.Outgoing{Text: h.deps.Config.Messages.GeneralError})
	}
}

type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Cancel handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	in := inboundFrom(update.Message)
	cancelled, err := h.deps.Flow.Cancel(ctx, in)
	switch {
	case err != nil:
		log.ErrorContext(ctx, "Failed to cancel habit dialog", "error", err, "chat_id", in.ChatID)
		reply(ctx, h.deps, log, in.ChatID, habit.Outgoing{Text: h.deps.Config.Messages.GeneralError})
	case cancelled:
		reply(ctx, h.deps, log, in.ChatID, habit.Outgoing{Text: h.deps.Config.Messages.Cancelled, Menu: true})
	default:
		reply(ctx, h.deps, log, in.ChatID, habit.Outgoing{Text: h.deps.Config.Messages.NothingToCancel})
	}
}

type conversationHandler struct {
	deps HandlerDeps
}

func (h conversationHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "conversation")

	if update.Message == nil || update.Message.From == nil {
		return
	}

	in := inboundFrom(update.Message)
	consumed, err := h.deps.Flow.Handle(ctx, in)
	if err != nil {
		// The creator already told the user about creation failures.
		log.ErrorContext(ctx, "Habit dialog step failed", "error", err, "chat_id", in.ChatID, "user_id", in.UserID)
		return
	}
	if !consumed {
		log.DebugContext(ctx, "Text outside of a habit dialog ignored", "chat_id", in.ChatID, "user_id", in.UserID)
	}
}

// NewHabitsHandler returns a handler for the /habits command.
func NewHabitsHandler(deps HandlerDeps) bot.HandlerFunc {
	return habitsHandler{deps}.Handle
}

// habitsHandler lists the sender's habits.
type habitsHandler struct {
	deps HandlerDeps
}

func (h habitsHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "habits")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Habits handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "User requested habit list", "chat_id", chatID, "user_id", userID)

	user, err := h.deps.Store.GetUserByTelegramID(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to look up user", "error", err, "user_id", userID)
		reply(ctx, h.deps, log, chatID, habit.Outgoing{Text: h.deps.Config.Messages.GeneralError})
		return
	}
	if user == nil {
		reply(ctx, h.deps, log, chatID, habit.Outgoing{Text: h.deps.Config.Messages.UserNotFound})
		return
	}

	habits, err := h.deps.Store.GetHabitsByOwner(ctx, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list habits", "error", err, "owner_id", user.ID)
		reply(ctx, h.deps, log, chatID, habit.Outgoing{Text: h.deps.Config.Messages.GeneralError})
		return
	}

	if len(habits) == 0 {
		reply(ctx, h.deps, log, chatID, habit.Outgoing{Text: h.deps.Config.Messages.NoHabits, Menu: true})
		return
	}

	text := formatHabitList(h.deps.Config.Messages, habits)
	log.DebugContext(ctx, "Sending habit list", "count", len(habits), "length", len(text), "chat_id", chatID)
	reply(ctx, h.deps, log, chatID, habit.Outgoing{Text: text, Menu: true})
}

func formatHabitList(msgs config.MessagesConfig, habits []*database.Habit) string {
	var sb strings.Builder
	sb.WriteString(msgs.HabitsHeader)
	for _, hb := range habits {
		if hb == nil {
			continue
		}
		fmt.Fprintf(&sb, msgs.HabitLineFmt, hb.HabitName, hb.Duration, hb.ReminderTime)
	}
	return strings.TrimRight(sb.String(), "\n")
}
