package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

// Client posts plain-text messages with a single bot token.
type Client struct {
	bot *bot.Bot
}

func New(token string) (*Client, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return &Client{bot: b}, nil
}

func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", chatID, err)
	}
	return nil
}
