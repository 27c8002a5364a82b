package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/habitbot/internal/habit"
)

// API is the subset of *bot.Bot used by Messenger.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// MenuCommands are the buttons of the user menu keyboard.
var MenuCommands = []string{"/new_habit", "/habits"}

// UserMenu returns the reply keyboard shown after /start and after a habit is created.
func UserMenu() *models.ReplyKeyboardMarkup {
	row := make([]models.KeyboardButton, 0, len(MenuCommands))
	for _, cmd := range MenuCommands {
		row = append(row, models.KeyboardButton{Text: cmd})
	}
	return &models.ReplyKeyboardMarkup{
		Keyboard:       [][]models.KeyboardButton{row},
		ResizeKeyboard: true,
	}
}

// Messenger implements habit.Messenger on top of the Bot API.
type Messenger struct {
	api API
}

func NewMessenger(api API) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) Send(ctx context.Context, chatID int64, msg habit.Outgoing) (int, error) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   msg.Text,
	}
	if msg.Markdown {
		params.ParseMode = models.ParseModeMarkdownV1
	}
	if msg.Menu {
		params.ReplyMarkup = UserMenu()
	}

	sent, err := m.api.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	if sent == nil {
		return 0, nil
	}
	return sent.ID, nil
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := m.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	if err != nil {
		return classifyDeleteError(err)
	}
	return nil
}

// classifyDeleteError maps Bot API delete failures onto the habit sentinels.
func classifyDeleteError(err error) error {
	desc := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, bot.ErrorForbidden):
		return fmt.Errorf("%w: %w", habit.ErrDeleteForbidden, err)
	case errors.Is(err, bot.ErrorBadRequest) && (strings.Contains(desc, "not found") || strings.Contains(desc, "message_id_invalid")):
		return fmt.Errorf("%w: %w", habit.ErrMessageNotFound, err)
	case errors.Is(err, bot.ErrorBadRequest) && strings.Contains(desc, "can't be deleted"):
		return fmt.Errorf("%w: %w", habit.ErrDeleteForbidden, err)
	default:
		return err
	}
}
