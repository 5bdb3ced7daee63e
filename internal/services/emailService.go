package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"shoecreatify/internal/models"
)

// Notifier delivers a one-time code to its owner.
type Notifier interface {
	Send(ctx context.Context, email string, purpose models.OTPPurpose, code string) error
}

type EmailService interface {
	Notifier
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	from   string
	dialer mailDialer
	otpTTL time.Duration
}

func NewEmailService(cfg SMTPConfig, otpTTL time.Duration) EmailService {
	return &emailService{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		otpTTL: otpTTL,
	}
}

func (e *emailService) SendEmail(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()

	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	// gomail has no context support; the send keeps running if ctx ends first.
	done := make(chan error, 1)
	go func() { done <- e.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *emailService) Send(ctx context.Context, email string, purpose models.OTPPurpose, code string) error {
	subject, body := otpMessage(purpose, code, e.otpTTL)
	if err := e.SendEmail(ctx, email, subject, body); err != nil {
		return err
	}
	log.Info().Str("email", email).Str("purpose", purpose.String()).Msg("OTP email sent")
	return nil
}

func otpMessage(purpose models.OTPPurpose, code string, ttl time.Duration) (string, string) {
	minutes := int(ttl / time.Minute)
	switch purpose {
	case models.PurposePasswordReset:
		return "Your ShoeCreatify password reset code",
			fmt.Sprintf("<p>Your code to reset your ShoeCreatify password is <b>%s</b>.</p>\n<p>It expires in %d minutes. If you did not ask for a reset, ignore this email.</p>", code, minutes)
	default:
		return "Verify your ShoeCreatify account",
			fmt.Sprintf("<p>Welcome to ShoeCreatify! Your verification code is <b>%s</b>.</p>\n<p>It expires in %d minutes.</p>", code, minutes)
	}
}

// logNotifier stands in for SMTP in local development.
type logNotifier struct{}

func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) Send(_ context.Context, email string, purpose models.OTPPurpose, code string) error {
	log.Warn().Str("email", email).Str("purpose", purpose.String()).Str("code", code).Msg("SMTP not configured, OTP written to log")
	return nil
}
