package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"shoecreatify/internal/metrics"
	"shoecreatify/internal/models"
	"shoecreatify/internal/repositories"
	"shoecreatify/internal/utils"
)

// UserService defines the interface for account-related business logic.
type UserService interface {
	RegisterUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	LoginUser(ctx context.Context, creds *models.Login) (string, *models.User, error)
	GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	GetTotalUsers(ctx context.Context) (int64, error)
}

type userService struct {
	userRepo        repositories.UserRepository
	registrationOTP OTPService
	jwt             *utils.JWTIssuer
}

// NewUserService creates a new UserService. registrationOTP must be the REGISTRATION flow.
func NewUserService(userRepo repositories.UserRepository, registrationOTP OTPService, jwt *utils.JWTIssuer) UserService {
	return &userService{userRepo: userRepo, registrationOTP: registrationOTP, jwt: jwt}
}

func (s *userService) GetTotalUsers(ctx context.Context) (int64, error) {
	return s.userRepo.CountAll(ctx)
}

// RegisterUser creates an unverified account and sends its registration code. Registering
// again with an unverified email resends the code, subject to the cooldown, and stages the
// new name and password; they replace the stored ones only when that code is verified.
func (s *userService) RegisterUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	email := utils.NormalizeEmail(req.Email)
	log.Debug().Str("email", email).Msg("Attempting to register user")

	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, passwordPolicy(err)
	}
	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password during registration")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.EmailVerified:
		log.Warn().Str("email", email).Msg("Email already registered")
		return nil, ErrEmailTaken
	case err == nil:
		if _, err := s.registrationOTP.RequestResend(ctx, email); err != nil {
			return nil, err
		}
		if err := s.userRepo.SetPendingRegistration(ctx, email, strings.TrimSpace(req.Name), hashedPassword); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrEmailTaken
			}
			return nil, err
		}
		existing.Password = ""
		existing.PendingPassword = ""
		log.Info().Str("user_id", existing.ID.Hex()).Msg("Registration restarted for unverified user")
		return existing, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		log.Error().Err(err).Str("email", email).Msg("Error looking up user for registration")
		return nil, err
	}

	user := &models.User{
		ID:       primitive.NewObjectID(),
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: hashedPassword,
		Provider: "local",
	}
	createdUser, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Warn().Str("email", email).Msg("Email already exists during user insertion")
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if _, err := s.registrationOTP.Issue(ctx, email); err != nil {
		// The account stays unverified; the client can ask for a resend.
		log.Error().Err(err).Str("email", email).Msg("Registration code could not be issued")
		return nil, err
	}

	createdUser.Password = ""
	metrics.NewUsersTotal.Inc()
	log.Info().Str("user_id", createdUser.ID.Hex()).Str("email", createdUser.Email).Msg("User registered, awaiting verification")
	return createdUser, nil
}

func (s *userService) LoginUser(ctx context.Context, creds *models.Login) (string, *models.User, error) {
	email := utils.NormalizeEmail(creds.Email)
	log.Debug().Str("email", email).Msg("Attempting user login")

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
			log.Warn().Str("email", email).Msg("Invalid credentials during login attempt")
			return "", nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Str("email", email).Msg("Error finding user for login")
		return "", nil, err
	}

	if user.Password == "" || !utils.CheckPassword(user.Password, creds.Password) {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		log.Warn().Str("email", email).Msg("Invalid credentials (password mismatch) during login attempt")
		return "", nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		metrics.LoginAttemptsTotal.WithLabelValues("unverified").Inc()
		log.Warn().Str("user_id", user.ID.Hex()).Msg("Login attempt before email verification")
		return "", nil, ErrEmailNotVerified
	}

	token, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Could not generate token for user")
		return "", nil, fmt.Errorf("could not generate token: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	user.Password = ""
	log.Info().Str("user_id", user.ID.Hex()).Msg("User logged in successfully")
	return token, user, nil
}

func (s *userService) GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn().Str("user_id", userID.Hex()).Msg("User not found for profile")
			return nil, ErrUserNotFound
		}
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Failed to fetch user profile")
		return nil, err
	}

	user.Password = ""
	return user, nil
}
