package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stock-alert-service/internal/config"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
	"stock-alert-service/internal/utils"
	"stock-alert-service/pkg/sms"
)

type textSender interface {
	Send(toNumber, body string) error
}

// SMS delivers to E.164 phone numbers through Twilio.
type SMS struct {
	client  textSender
	limiter *rate.Limiter
	logger  *logging.Logger
	retries int
	backoff time.Duration
}

func NewSMS(cfg config.Config, logger *logging.Logger) *SMS {
	client := sms.New(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber)
	return newSMS(client, cfg.RateLimit.SMSPerSecond, logger)
}

func newSMS(client textSender, perSecond int, logger *logging.Logger) *SMS {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &SMS{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		logger:  logger,
		retries: 3,
		backoff: time.Second,
	}
}

func (s *SMS) Channel() models.Channel { return models.ChannelSMS }

func (s *SMS) Recipients(contacts []string) []string {
	return filter(contacts, func(c string) bool { return strings.HasPrefix(c, "+") })
}

func (s *SMS) Send(ctx context.Context, msg models.Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limit wait: %w", err)
	}
	body := plainText(msg)
	return utils.Retry(ctx, s.logger, s.retries, s.backoff, func() error {
		return runWithContext(ctx, func() error {
			return s.client.Send(msg.Recipient, body)
		})
	})
}
