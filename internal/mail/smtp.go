package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/chat-auth-be/internal/config"
	"github.com/rs/zerolog/log"
	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers messages through an authenticated SMTP relay. Each Send
// uses its own client so workers can deliver concurrently.
type SMTPSender struct {
	host string
	opts []gomail.Option
	from string
}

// NewSMTPSender creates a sender for cfg. No connection is made until Send.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Address),
		gomail.WithPassword(cfg.Password),
		gomail.WithTimeout(15 * time.Second),
	}
	if cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}

	if _, err := gomail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{host: cfg.Host, opts: opts, from: cfg.Address}, nil
}

// Send dials the relay and delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)

	client, err := gomail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("Email sent")
	return nil
}

// LogSender logs messages instead of sending them. Used when no SMTP
// credentials are configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("body", msg.HTML).
		Msg("Email not sent (SMTP not configured)")
	return nil
}
