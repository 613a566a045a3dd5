package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers messages to a single chat handle.
type Sender interface {
	Send(ctx context.Context, handle, text string) error
	SendFile(ctx context.Context, handle, caption, path, name string) error
}

// TelegramSender sends messages through the Telegram Bot API.
type TelegramSender struct {
	api *tgbotapi.BotAPI
}

func NewTelegramSender(api *tgbotapi.BotAPI) *TelegramSender {
	return &TelegramSender{api: api}
}

func (s *TelegramSender) Send(ctx context.Context, handle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, channel := parseHandle(handle)
	var msg tgbotapi.MessageConfig
	if channel != "" {
		msg = tgbotapi.NewMessageToChannel(channel, text)
	} else {
		msg = tgbotapi.NewMessage(chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send message to %s: %w", handle, err)
	}
	return nil
}

func (s *TelegramSender) SendFile(ctx context.Context, handle, caption, path, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, channel := parseHandle(handle)
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	if channel != "" {
		doc.ChannelUsername = channel
	}
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	if _, err := s.api.Send(doc); err != nil {
		return fmt.Errorf("send document %q to %s: %w", name, handle, err)
	}
	return nil
}

// parseHandle accepts numeric chat ids and @channel usernames.
func parseHandle(handle string) (int64, string) {
	handle = strings.TrimSpace(handle)
	if id, err := strconv.ParseInt(handle, 10, 64); err == nil {
		return id, ""
	}
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}
	return 0, handle
}
