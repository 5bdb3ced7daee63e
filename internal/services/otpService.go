package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"shoecreatify/internal/metrics"
	"shoecreatify/internal/models"
	"shoecreatify/internal/repositories"
	"shoecreatify/internal/utils"
)

const (
	DefaultOTPTTL         = 10 * time.Minute
	DefaultResendCooldown = 60 * time.Second
)

// OTPPolicy parameterizes one verification flow.
type OTPPolicy struct {
	Purpose        models.OTPPurpose
	TTL            time.Duration
	ResendCooldown time.Duration
}

// OTPIssue describes a code that was just delivered. The code itself never leaves the service.
type OTPIssue struct {
	Email             string
	Purpose           models.OTPPurpose
	ExpiresAt         time.Time
	ResendAvailableAt time.Time
}

// OTPService runs the issue/verify/resend lifecycle for a single purpose. Registration and
// password reset each get their own instance.
type OTPService interface {
	Purpose() models.OTPPurpose
	Issue(ctx context.Context, email string) (*OTPIssue, error)
	Verify(ctx context.Context, email, code string) (*models.OTPRecord, error)
	CanResend(ctx context.Context, email string) (bool, time.Duration, error)
	RequestResend(ctx context.Context, email string) (*OTPIssue, error)
	Status(ctx context.Context, email string) (*models.OTPStatus, error)
}

type otpService struct {
	policy   OTPPolicy
	otpRepo  repositories.OTPRepository
	guard    ResendGuard
	notifier Notifier
	now      func() time.Time
}

func NewOTPService(policy OTPPolicy, otpRepo repositories.OTPRepository, guard ResendGuard, notifier Notifier) OTPService {
	if policy.TTL <= 0 {
		policy.TTL = DefaultOTPTTL
	}
	if policy.ResendCooldown <= 0 {
		policy.ResendCooldown = DefaultResendCooldown
	}
	return &otpService{
		policy:   policy,
		otpRepo:  otpRepo,
		guard:    guard,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *otpService) Purpose() models.OTPPurpose {
	return s.policy.Purpose
}

// Mongo stores milliseconds; truncating keeps in-memory and stored timestamps comparable.
func (s *otpService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *otpService) Issue(ctx context.Context, email string) (*OTPIssue, error) {
	email = utils.NormalizeEmail(email)
	if err := s.guard.Start(ctx, email, s.policy.Purpose, s.policy.ResendCooldown); err != nil {
		log.Error().Err(err).Str("email", email).Str("purpose", s.policy.Purpose.String()).Msg("Failed to start resend cooldown")
		return nil, err
	}
	return s.issue(ctx, email)
}

func (s *otpService) issue(ctx context.Context, email string) (*OTPIssue, error) {
	purpose := s.policy.Purpose
	code, err := utils.GenerateNumericCode(utils.OTPLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}
	salt, err := utils.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp salt: %w", err)
	}

	now := s.timestamp()
	rec, err := s.otpRepo.Upsert(ctx, &models.OTPRecord{
		Email:      email,
		Purpose:    purpose,
		Salt:       salt,
		CodeHash:   utils.HashOTP(salt, code),
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.policy.TTL),
		LastSentAt: now,
	})
	if err != nil {
		log.Error().Err(err).Str("email", email).Str("purpose", purpose.String()).Msg("Failed to store otp")
		s.releaseGuard(ctx, email)
		return nil, err
	}

	if err := s.notifier.Send(ctx, email, purpose, code); err != nil {
		log.Error().Err(err).Str("email", email).Str("purpose", purpose.String()).Msg("Failed to deliver otp")
		metrics.OTPDeliveryFailuresTotal.WithLabelValues(purpose.String()).Inc()
		// An undelivered code must not stay verifiable, and the user must be able to retry at once.
		if ierr := s.otpRepo.Invalidate(ctx, rec.ID, rec.CodeHash); ierr != nil {
			log.Error().Err(ierr).Str("email", email).Msg("Failed to invalidate undelivered otp")
		}
		s.releaseGuard(ctx, email)
		return nil, deliveryFailed(err)
	}

	metrics.OTPIssuedTotal.WithLabelValues(purpose.String()).Inc()
	log.Info().Str("email", email).Str("purpose", purpose.String()).Int("resend_count", rec.ResendCount).Msg("OTP issued")

	return &OTPIssue{
		Email:             email,
		Purpose:           purpose,
		ExpiresAt:         rec.ExpiresAt,
		ResendAvailableAt: rec.LastSentAt.Add(s.policy.ResendCooldown),
	}, nil
}

func (s *otpService) releaseGuard(ctx context.Context, email string) {
	if err := s.guard.Release(ctx, email, s.policy.Purpose); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Failed to release resend cooldown")
	}
}

func (s *otpService) Verify(ctx context.Context, email, code string) (*models.OTPRecord, error) {
	email = utils.NormalizeEmail(email)
	purpose := s.policy.Purpose

	rec, err := s.otpRepo.FindByEmailAndPurpose(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.observe("not_found")
			return nil, ErrOTPNotFound
		}
		return nil, err
	}

	now := s.timestamp()
	if rec.Consumed {
		s.observe("not_found")
		return nil, ErrOTPNotFound
	}
	if now.After(rec.ExpiresAt) {
		s.observe("expired")
		return nil, ErrOTPExpired
	}
	if !utils.IsNumericCode(code, utils.OTPLength) || !utils.OTPMatches(rec.Salt, code, rec.CodeHash) {
		if err := s.otpRepo.RecordFailedAttempt(ctx, rec.ID, rec.CodeHash); err != nil {
			log.Warn().Err(err).Str("email", email).Msg("Failed to record otp attempt")
		}
		s.observe("mismatch")
		log.Warn().Str("email", email).Str("purpose", purpose.String()).Msg("OTP mismatch")
		return nil, ErrOTPMismatch
	}

	consumed, err := s.otpRepo.Consume(ctx, rec.ID, rec.CodeHash, now)
	if err == nil {
		s.observe("verified")
		log.Info().Str("email", email).Str("purpose", purpose.String()).Msg("OTP verified")
		return consumed, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// The record changed between read and consume: someone else consumed it, it was
	// re-issued, or it expired in between.
	latest, err := s.otpRepo.FindByEmailAndPurpose(ctx, email, purpose)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		s.observe("not_found")
		return nil, ErrOTPNotFound
	case err != nil:
		return nil, err
	case latest.Consumed:
		s.observe("not_found")
		return nil, ErrOTPNotFound
	case now.After(latest.ExpiresAt):
		s.observe("expired")
		return nil, ErrOTPExpired
	default:
		s.observe("mismatch")
		return nil, ErrOTPMismatch
	}
}

func (s *otpService) observe(result string) {
	metrics.OTPVerificationsTotal.WithLabelValues(s.policy.Purpose.String(), result).Inc()
}

func (s *otpService) CanResend(ctx context.Context, email string) (bool, time.Duration, error) {
	remaining, err := s.guard.Remaining(ctx, utils.NormalizeEmail(email), s.policy.Purpose, s.policy.ResendCooldown)
	if err != nil {
		return false, 0, err
	}
	return remaining <= 0, remaining, nil
}

func (s *otpService) RequestResend(ctx context.Context, email string) (*OTPIssue, error) {
	email = utils.NormalizeEmail(email)
	remaining, err := s.guard.Acquire(ctx, email, s.policy.Purpose, s.policy.ResendCooldown)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		metrics.OTPResendRejectedTotal.WithLabelValues(s.policy.Purpose.String()).Inc()
		log.Warn().Str("email", email).Str("purpose", s.policy.Purpose.String()).Dur("retry_after", remaining).Msg("Resend requested inside cooldown")
		return nil, tooSoon(remaining)
	}
	return s.issue(ctx, email)
}

func (s *otpService) Status(ctx context.Context, email string) (*models.OTPStatus, error) {
	email = utils.NormalizeEmail(email)
	status := &models.OTPStatus{Email: email, Purpose: s.policy.Purpose, State: models.StateNone}

	rec, err := s.otpRepo.FindByEmailAndPurpose(ctx, email, s.policy.Purpose)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if err == nil {
		status.State = rec.State(s.timestamp())
		expiresAt := rec.ExpiresAt
		status.ExpiresAt = &expiresAt
	}

	remaining, err := s.guard.Remaining(ctx, email, s.policy.Purpose, s.policy.ResendCooldown)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		at := s.timestamp().Add(remaining)
		status.ResendAvailableAt = &at
	}
	return status, nil
}
