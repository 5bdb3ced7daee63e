package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"shoecreatify/internal/models"
	"shoecreatify/internal/repositories"
	"shoecreatify/internal/utils"
)

const ProfileRedirect = "/profile"

// VerificationService ties the per-purpose OTP flows to their side effects on accounts.
type VerificationService interface {
	VerifyRegistration(ctx context.Context, email, code string) (*models.AuthResponse, error)
	ResendRegistration(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	VerifyReset(ctx context.Context, email, code string) (string, error)
	ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error
	Status(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPStatus, error)
}

type verificationService struct {
	userRepo     repositories.UserRepository
	registration OTPService
	reset        OTPService
	resetTokens  ResetTokenService
	jwt          *utils.JWTIssuer
}

func NewVerificationService(
	userRepo repositories.UserRepository,
	registration OTPService,
	reset OTPService,
	resetTokens ResetTokenService,
	jwt *utils.JWTIssuer,
) VerificationService {
	return &verificationService{
		userRepo:     userRepo,
		registration: registration,
		reset:        reset,
		resetTokens:  resetTokens,
		jwt:          jwt,
	}
}

func (s *verificationService) VerifyRegistration(ctx context.Context, email, code string) (*models.AuthResponse, error) {
	rec, err := s.registration.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}

	verifiedAt := rec.ConsumedAt
	if verifiedAt == nil {
		verifiedAt = &rec.UpdatedAt
	}
	user, err := s.userRepo.MarkEmailVerified(ctx, rec.Email, *verifiedAt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn().Str("email", rec.Email).Msg("Registration code verified for missing user")
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	token, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("could not generate token: %w", err)
	}
	user.Password = ""

	log.Info().Str("user_id", user.ID.Hex()).Msg("Email verified")
	return &models.AuthResponse{
		Success:    true,
		Message:    "Email verified successfully",
		Token:      token,
		RedirectTo: ProfileRedirect,
		User:       user,
	}, nil
}

func (s *verificationService) ResendRegistration(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	_, err = s.registration.RequestResend(ctx, email)
	return err
}

// ForgotPassword sends a reset code. Unknown emails get the same answer as known ones.
func (s *verificationService) ForgotPassword(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	if _, err := s.userRepo.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Info().Str("email", email).Msg("Password reset requested for unknown email")
			return nil
		}
		return err
	}

	_, err := s.reset.RequestResend(ctx, email)
	return err
}

func (s *verificationService) VerifyReset(ctx context.Context, email, code string) (string, error) {
	rec, err := s.reset.Verify(ctx, email, code)
	if err != nil {
		return "", err
	}
	return s.resetTokens.Mint(ctx, rec)
}

func (s *verificationService) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	return s.resetTokens.Redeem(ctx, req.Email, req.ResetToken, req.Password)
}

func (s *verificationService) Status(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPStatus, error) {
	switch purpose {
	case models.PurposeRegistration:
		return s.registration.Status(ctx, email)
	case models.PurposePasswordReset:
		return s.reset.Status(ctx, email)
	default:
		return nil, ErrInvalidPurpose
	}
}
