package notify

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Dialer is the part of *gomail.Dialer the sender uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender mails codes through an SMTP relay.
type SMTPSender struct {
	from   string
	dialer Dialer
}

// NewSMTPSender builds a sender over a gomail dialer for cfg.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and from address are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// NewSMTPSenderWithDialer is NewSMTPSender with an injected dialer.
func NewSMTPSenderWithDialer(from string, d Dialer) *SMTPSender {
	return &SMTPSender{from: from, dialer: d}
}

func (s *SMTPSender) SendCode(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.compose(msg)); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

func (s *SMTPSender) compose(msg Message) *gomail.Message {
	subject := "Your verification code"
	if msg.Purpose == PurposeSignup {
		subject = "Confirm your account"
	}
	name := msg.Name
	if name == "" {
		name = "there"
	}
	minutes := int(msg.ExpiresIn.Minutes())

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nYour verification code is: %s\n\nThis code will expire in %d minutes.\nIf you did not request it, you can ignore this message.\n",
		name, msg.Code, minutes,
	))
	m.AddAlternative("text/html", fmt.Sprintf(
		"<p>Hello %s,</p><p>Your verification code is: <strong>%s</strong></p><p>This code will expire in %d minutes.</p>",
		name, msg.Code, minutes,
	))
	return m
}
