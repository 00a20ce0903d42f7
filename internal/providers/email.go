package providers

import (
	"context"
	"strings"

	"stock-alert-service/internal/config"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
	"stock-alert-service/pkg/email"
)

type mailer interface {
	Send(to, subject, body string) error
}

// Email delivers to contacts that look like mail addresses.
type Email struct {
	mailer mailer
	logger *logging.Logger
}

func NewEmail(cfg config.Config, logger *logging.Logger) *Email {
	return &Email{
		mailer: email.Server{
			Host:     cfg.Email.SMTPServer,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			FromName: cfg.Email.FromName,
		},
		logger: logger,
	}
}

func (e *Email) Channel() models.Channel { return models.ChannelEmail }

func (e *Email) Recipients(contacts []string) []string {
	return filter(contacts, func(c string) bool {
		return strings.Contains(c, "@") && !strings.HasPrefix(c, "tg:")
	})
}

func (e *Email) Send(ctx context.Context, msg models.Message) error {
	return runWithContext(ctx, func() error {
		return e.mailer.Send(msg.Recipient, msg.Subject, msg.Body)
	})
}
