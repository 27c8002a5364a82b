package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/habitbot/internal/database"
	"github.com/edgard/habitbot/internal/habit"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler registers the sender and greets them.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	msg := update.Message
	log.InfoContext(ctx, "Handling /start command", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	// Reminders need a private chat to land in, so group starts do not register.
	if msg.Chat.Type == models.ChatTypePrivate {
		user := &database.User{
			TelegramID: msg.From.ID,
			ChatID:     msg.Chat.ID,
			Username:   msg.From.Username,
		}
		if err := h.deps.Store.SaveUser(ctx, user); err != nil {
			log.ErrorContext(ctx, "Failed to register user", "error", err, "user_id", msg.From.ID)
			reply(ctx, h.deps, log, msg.Chat.ID, habit.Outgoing{Text: h.deps.Config.Messages.GeneralError})
			return
		}
		log.DebugContext(ctx, "User registered", "user_id", msg.From.ID, "id", user.ID)
	}

	welcome := h.deps.Config.Messages.Welcome
	if info := h.deps.Config.Telegram.BotInfo; info != nil && info.Username != "" {
		welcome = strings.ReplaceAll(welcome, "@botname", "@"+info.Username)
	}
	reply(ctx, h.deps, log, msg.Chat.ID, habit.Outgoing{Text: welcome, Menu: msg.Chat.Type == models.ChatTypePrivate})
}
