package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
	"github.com/edgard/habitbot/internal/habit"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	Flow      *habit.Flow
	Messenger habit.Messenger
}

// inboundFrom converts a Telegram message into a dialog input.
func inboundFrom(msg *models.Message) habit.Inbound {
	return habit.Inbound{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
	}
}

// reply sends text through the messenger and logs a failed send.
func reply(ctx context.Context, deps HandlerDeps, log *slog.Logger, chatID int64, msg habit.Outgoing) {
	if _, err := deps.Messenger.Send(ctx, chatID, msg); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}
