package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

// Message is a fully rendered email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Sender hands a rendered message to an email transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Provider() string
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers through the SendGrid v3 mail API.
type SendGridSender struct {
	client sendgridClient
	from   *mail.Email
}

func NewSendGridSender(emailCfg config.EmailConfig, sgCfg config.SendgridConfig) (*SendGridSender, error) {
	if strings.TrimSpace(sgCfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if strings.TrimSpace(emailCfg.FromEmail) == "" {
		return nil, errors.New("from email is required")
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(sgCfg.APIKey),
		from:   mail.NewEmail(emailCfg.FromName, emailCfg.FromEmail),
	}, nil
}

func (s *SendGridSender) Provider() string {
	return config.EmailProviderSendgrid
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	payload := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), "", msg.HTML)
	resp, err := s.client.SendWithContext(ctx, payload)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp == nil {
		return errors.New("sendgrid send: empty response")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, truncate(resp.Body, 256))
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Used in dev.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Provider() string {
	return config.EmailProviderLog
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"to":         msg.To,
			"subject":    msg.Subject,
			"html_bytes": len(msg.HTML),
		}), "email send (log provider)")
	}
	return nil
}

// NewSender picks the transport named by cfg.Email.Provider.
func NewSender(cfg *config.Config, logg *logger.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Email.Provider)) {
	case config.EmailProviderSendgrid:
		return NewSendGridSender(cfg.Email, cfg.Sendgrid)
	case config.EmailProviderLog, "":
		return NewLogSender(logg), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max]
}
