package push

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// messageSender is the part of the bot API the Telegram channel needs.
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramSender delivers reminders as plain Telegram messages. It exists
// for deployments without WeChat credentials; recipient ids are chat ids in
// decimal form.
type TelegramSender struct {
	b messageSender
}

func NewTelegramSender(b *bot.Bot) *TelegramSender {
	return &TelegramSender{b: b}
}

func (s *TelegramSender) Send(ctx context.Context, recipient string, data map[string]string) Result {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return Result{ErrCode: -1, ErrMsg: fmt.Sprintf("recipient %q is not a chat id", recipient)}
	}

	text := data["thing1"]
	if detail := data["thing4"]; detail != "" {
		text += "\n" + detail
	}
	if at := data["time2"]; at != "" {
		text += "\n" + at
	}
	if text == "" {
		text = "Reminder"
	}

	_, err = s.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return Result{ErrCode: -1, ErrMsg: err.Error()}
	}
	return Result{Success: true}
}
