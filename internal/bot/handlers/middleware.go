// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/habitbot/internal/habit"
)

// PrivateOnly creates a middleware that lets a command through only in a
// private chat. Elsewhere it answers with the private-only notice and stops.
func PrivateOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				next(ctx, bot, update)
				return
			}

			if update.Message.Chat.Type != models.ChatTypePrivate {
				chatID := update.Message.Chat.ID
				log := deps.Logger.With("middleware", "PrivateOnly")
				log.InfoContext(ctx, "Command used outside a private chat", "user_id", update.Message.From.ID, "chat_id", chatID, "chat_type", update.Message.Chat.Type)
				reply(ctx, deps, log, chatID, habit.Outgoing{Text: deps.Config.Messages.PrivateOnly})
				return
			}

			next(ctx, bot, update)
		}
	}
}
