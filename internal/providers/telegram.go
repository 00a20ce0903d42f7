package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stock-alert-service/internal/config"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
	"stock-alert-service/internal/utils"
	"stock-alert-service/pkg/telegram"
)

const telegramPrefix = "tg:"

type chatSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Telegram delivers to contacts written as tg:<chat id>.
type Telegram struct {
	client  chatSender
	limiter *rate.Limiter
	logger  *logging.Logger
	retries int
	backoff time.Duration
}

func NewTelegram(cfg config.Config, logger *logging.Logger) (*Telegram, error) {
	client, err := telegram.New(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}
	return newTelegram(client, cfg.RateLimit.TelegramPerSecond, logger), nil
}

func newTelegram(client chatSender, perSecond int, logger *logging.Logger) *Telegram {
	if perSecond <= 0 {
		perSecond = 20
	}
	return &Telegram{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		logger:  logger,
		retries: 3,
		backoff: time.Second,
	}
}

func (t *Telegram) Channel() models.Channel { return models.ChannelTelegram }

func (t *Telegram) Recipients(contacts []string) []string {
	return filter(contacts, func(c string) bool {
		_, err := chatID(c)
		return err == nil
	})
}

func chatID(contact string) (int64, error) {
	if !strings.HasPrefix(contact, telegramPrefix) {
		return 0, fmt.Errorf("not a telegram contact: %s", contact)
	}
	return strconv.ParseInt(strings.TrimPrefix(contact, telegramPrefix), 10, 64)
}

func (t *Telegram) Send(ctx context.Context, msg models.Message) error {
	id, err := chatID(msg.Recipient)
	if err != nil {
		return err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}
	text := plainText(msg)
	return utils.Retry(ctx, t.logger, t.retries, t.backoff, func() error {
		return t.client.Send(ctx, id, text)
	})
}
