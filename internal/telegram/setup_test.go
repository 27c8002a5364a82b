package telegram

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
)

func TestApplyMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				order = append(order, name)
				next(ctx, b, u)
			}
		}
	}

	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		order = append(order, "handler")
	}, []bot.Middleware{mark("outer"), mark("inner")})
	h(context.Background(), nil, &models.Update{})

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRegisterHandlersRequiresBot(t *testing.T) {
	assert.Error(t, RegisterHandlers(nil, nil, nil))
}

func TestNewTelegramBotRequiresToken(t *testing.T) {
	_, err := NewTelegramBot("", nil)
	assert.Error(t, err)
}
