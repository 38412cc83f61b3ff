// AngelaMos | 2026
// sender.go

package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/carterperez-dev/templates/auth-backend/internal/config"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not delivered (log sender)",
		"to", msg.To,
		"from", msg.From,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

const defaultSMTPTimeout = 10 * time.Second

// SMTPSender delivers through a relay. A client is dialed per message so
// concurrent sends never share a connection.
type SMTPSender struct {
	host string
	opts []mail.Option
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	timeout := cfg.SMTPTimeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(timeout),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	return &SMTPSender{host: cfg.SMTPHost, opts: opts}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)

	client, err := mail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// NewSender picks SMTP delivery when a host is configured and the log
// sender otherwise.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) Sender {
	if cfg.SMTPHost == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}
