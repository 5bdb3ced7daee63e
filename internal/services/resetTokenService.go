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

const DefaultResetTokenTTL = 15 * time.Minute

// ResetTokenService exchanges a verified PASSWORD_RESET code for a short-lived,
// single-use token and later redeems that token for a password change.
type ResetTokenService interface {
	Mint(ctx context.Context, verified *models.OTPRecord) (string, error)
	Redeem(ctx context.Context, email, token, newPassword string) error
}

type resetTokenService struct {
	tokenRepo repositories.ResetTokenRepository
	userRepo  repositories.UserRepository
	ttl       time.Duration
	now       func() time.Time
}

func NewResetTokenService(tokenRepo repositories.ResetTokenRepository, userRepo repositories.UserRepository, ttl time.Duration) ResetTokenService {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &resetTokenService{tokenRepo: tokenRepo, userRepo: userRepo, ttl: ttl, now: time.Now}
}

func (s *resetTokenService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Mint only accepts a record that the OTP service has already consumed for PASSWORD_RESET.
func (s *resetTokenService) Mint(ctx context.Context, verified *models.OTPRecord) (string, error) {
	if verified == nil || !verified.Consumed || verified.Purpose != models.PurposePasswordReset {
		return "", ErrOTPNotFound
	}
	email := utils.NormalizeEmail(verified.Email)
	now := s.timestamp()

	if n, err := s.tokenRepo.InvalidateForEmail(ctx, email, now); err != nil {
		return "", fmt.Errorf("failed to invalidate previous reset tokens: %w", err)
	} else if n > 0 {
		log.Debug().Str("email", email).Int64("count", n).Msg("Invalidated earlier reset tokens")
	}

	token, err := utils.GenerateOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	_, err = s.tokenRepo.Create(ctx, &models.ResetToken{
		Email:     email,
		TokenHash: utils.HashToken(token),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	})
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to store reset token")
		return "", err
	}

	log.Info().Str("email", email).Msg("Reset token minted")
	return token, nil
}

func (s *resetTokenService) Redeem(ctx context.Context, email, token, newPassword string) error {
	email = utils.NormalizeEmail(email)

	// Checked first so a weak password leaves the token usable.
	if err := utils.ValidatePassword(newPassword); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("policy_violation").Inc()
		return passwordPolicy(err)
	}
	if token == "" {
		metrics.PasswordResetsTotal.WithLabelValues("invalid_token").Inc()
		return ErrInvalidToken
	}

	passwordHash, err := utils.HashPassword(newPassword)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to hash new password")
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.timestamp()
	hash := utils.HashToken(token)
	consumed, err := s.tokenRepo.Consume(ctx, email, hash, now)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		return s.classifyRejectedToken(ctx, email, hash, now)
	}

	if err := s.userRepo.UpdatePassword(ctx, email, passwordHash); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.PasswordResetsTotal.WithLabelValues("invalid_token").Inc()
			log.Warn().Str("email", email).Msg("Reset token redeemed for unknown user")
			return ErrInvalidToken
		}
		// The password did not change, so the link stays usable.
		if rerr := s.tokenRepo.Release(ctx, consumed.ID); rerr != nil {
			log.Error().Err(rerr).Str("email", email).Msg("Failed to release reset token")
		}
		return err
	}

	if _, err := s.tokenRepo.InvalidateForEmail(ctx, email, now); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Failed to invalidate remaining reset tokens")
	}

	metrics.PasswordResetsTotal.WithLabelValues("success").Inc()
	log.Info().Str("email", email).Msg("Password reset completed")
	return nil
}

func (s *resetTokenService) classifyRejectedToken(ctx context.Context, email, hash string, now time.Time) error {
	stored, err := s.tokenRepo.FindByHash(ctx, email, hash)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
	case err != nil:
		return err
	case !stored.Consumed && now.After(stored.ExpiresAt):
		metrics.PasswordResetsTotal.WithLabelValues("token_expired").Inc()
		return ErrTokenExpired
	}
	metrics.PasswordResetsTotal.WithLabelValues("invalid_token").Inc()
	log.Warn().Str("email", email).Msg("Rejected invalid or reused reset token")
	return ErrInvalidToken
}
