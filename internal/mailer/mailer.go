// Package mailer delivers outbound email over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// Mail is one outbound message. Body is plain text.
type Mail struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer sends mail through a go-mail client. Each Send dials, delivers
// and closes; STARTTLS is used when the server offers it.
type SMTPMailer struct {
	from   string
	client sender
}

// NewSMTPMailer creates an SMTP mailer. PLAIN auth is enabled when a password
// is set; the username defaults to the From address.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Password != "" {
		user := cfg.Username
		if user == "" {
			user = cfg.From
		}
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(cfg.Password),
		)
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{from: cfg.From, client: c}, nil
}

// Send delivers m.
func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mailer: empty recipient")
	}
	msg, err := s.message(m)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// message builds the MIME message. Header values are RFC 2047 encoded by
// go-mail; line breaks are folded to spaces first so a subject stays on one
// logical line.
func (s *SMTPMailer) message(m Mail) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("mailer: from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("mailer: to: %w", err)
	}
	if m.ReplyTo != "" {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return nil, fmt.Errorf("mailer: reply-to: %w", err)
		}
	}
	msg.Subject(oneLine(m.Subject))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

func oneLine(v string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(v)
}

// LogMailer records mail in the log instead of sending it. It is used when
// SMTP is not configured.
type LogMailer struct{}

// Send logs the envelope of m.
func (LogMailer) Send(ctx context.Context, m Mail) error {
	log.Ctx(ctx).Info().
		Str("to", m.To).
		Str("subject", m.Subject).
		Int("body_len", len(m.Body)).
		Msg("smtp disabled; mail not sent")
	return nil
}
