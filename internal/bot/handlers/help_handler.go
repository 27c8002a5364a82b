package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/habitbot/internal/habit"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

// NewFallbackHandler returns the default handler for updates no other
// handler matched. Unknown commands get the help text; anything else is ignored.
func NewFallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return fallbackHandler{deps}.Handle
}

// helpHandler processes the /help command using injected dependencies.
type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Help handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /help command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)
	reply(ctx, h.deps, log, update.Message.Chat.ID, habit.Outgoing{Text: h.helpText()})
}

func (h helpHandler) helpText() string {
	helpMsg := h.deps.Config.Messages.Help
	if info := h.deps.Config.Telegram.BotInfo; info != nil && info.Username != "" {
		helpMsg = strings.ReplaceAll(helpMsg, "@botname", "@"+info.Username)
	}
	return helpMsg
}

type fallbackHandler struct {
	deps HandlerDeps
}

func (h fallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if update.Message.Chat.Type != models.ChatTypePrivate || !strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	h.deps.Logger.With("handler", "fallback").DebugContext(ctx, "Unknown command", "text", update.Message.Text, "chat_id", update.Message.Chat.ID)
	helpHandler(h).Handle(ctx, b, update)
}
