package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/nutriplan/nutriplan-api/internal/config"
)

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPService creates an email service backed by a plain SMTP relay.
func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendInvitation(ctx context.Context, to, name, inviteURL string) error {
	subject := "You have been invited to NutriPlan"
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>Your nutritionist created an account for you. Click the link below to set your password and get started:</p>"+
			"<p><a href=%q>Accept invitation</a></p>",
		name, inviteURL,
	)
	return s.send(ctx, to, subject, body)
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
