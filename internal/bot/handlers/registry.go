package handlers

import (
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
// When MatchFunc is set it is used instead of Pattern and MatchType.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
	MatchFunc   tgbot.MatchFunc
}

// ConversationHandlerName is the registry key of the dialog text handler.
const ConversationHandlerName = "conversation"

// RegisterAllCommands initializes and returns a map of all available bot commands.
// It configures each command with appropriate handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	privateMiddleware := []tgbot.Middleware{PrivateOnly(deps)}

	handlers["/new_habit"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "new_habit",
		Handler:     NewNewHabitHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateMiddleware,
	}
	handlers["/cancel"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "cancel",
		Handler:     NewCancelHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateMiddleware,
	}
	handlers["/habits"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "habits",
		Handler:     NewHabitsHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateMiddleware,
	}
	handlers[ConversationHandlerName] = RegisteredHandler{
		Handler:   NewConversationHandler(deps),
		MatchFunc: IsDialogText,
	}

	return handlers
}

// IsDialogText matches plain text messages from a user in a private chat.
// Commands are left to their own handlers.
func IsDialogText(update *models.Update) bool {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return false
	}
	if msg.Chat.Type != models.ChatTypePrivate {
		return false
	}
	return !strings.HasPrefix(msg.Text, "/")
}
