package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/telemed-api/internal/model"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendBookingConfirmation(ctx context.Context, to string, c *model.Consultation) error {
	subject := "Consultation booked"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour consultation with %s is booked for %s at %s.\n\nReason: %s\n",
		c.PatientName, c.DoctorName, c.ScheduledDate, c.ScheduledTime, c.Reason,
	)
	return s.send(to, subject, body)
}

func (s *smtpService) SendStatusUpdate(ctx context.Context, to string, c *model.Consultation) error {
	subject := "Consultation update"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour consultation on %s at %s is now %q.\n",
		c.PatientName, c.ScheduledDate, c.ScheduledTime, c.Status,
	)
	return s.send(to, subject, body)
}

func (s *smtpService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
