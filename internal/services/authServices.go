package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"shoecreatify/internal/models"
	"shoecreatify/internal/repositories"
	"shoecreatify/internal/utils"
)

const MaxAge = 86400 * 30

var ErrMissingEmail = errors.New("missing email in provider profile")

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	CallbackBase       string
	SessionKey         string
	Secure             bool
}

type AuthService interface {
	HandleLogin(ctx context.Context, u goth.User) (string, *models.User, error)
}

type authService struct {
	userRepo repositories.UserRepository
	jwt      *utils.JWTIssuer
	now      func() time.Time
}

func NewAuthService(userRepo repositories.UserRepository, jwt *utils.JWTIssuer) AuthService {
	return &authService{userRepo: userRepo, jwt: jwt, now: time.Now}
}

// InitializeGoth must run once before the OAuth routes are served.
func InitializeGoth(cfg OAuthConfig) {
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))
	store.MaxAge(MaxAge)

	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.Secure
	store.Options.SameSite = http.SameSiteLaxMode

	gothic.Store = store

	if cfg.GoogleClientID == "" {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, Google login disabled")
		return
	}
	goth.UseProviders(
		google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CallbackBase+"/api/auth/google/callback", "email", "profile"),
	)
	log.Info().Msg("Goth providers initialized")
}

// HandleLogin signs in a provider-authenticated user. The provider has already proven
// ownership of the address, so new and pending accounts come out verified. A pending
// account loses the password it was registered with.
func (a *authService) HandleLogin(ctx context.Context, u goth.User) (string, *models.User, error) {
	email := utils.NormalizeEmail(u.Email)
	if email == "" {
		log.Error().Str("provider", u.Provider).Msg("Missing email in Goth user data")
		return "", nil, ErrMissingEmail
	}
	now := a.now().UTC().Truncate(time.Millisecond)

	user, err := a.userRepo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		name := u.Name
		if name == "" {
			name = u.NickName
		}
		user = &models.User{
			ID:            primitive.NewObjectID(),
			Name:          name,
			Email:         email,
			Provider:      u.Provider,
			EmailVerified: true,
			VerifiedAt:    &now,
		}
		if _, err := a.userRepo.Create(ctx, user); err != nil {
			log.Error().Err(err).Str("email", email).Msg("Error creating new user")
			return "", nil, err
		}
		log.Info().Str("email", email).Str("user_id", user.ID.Hex()).Msg("New OAuth user created")
	case err != nil:
		log.Error().Err(err).Str("email", email).Msg("Error finding user by email")
		return "", nil, err
	case !user.EmailVerified:
		verified, err := a.userRepo.MarkVerifiedByProvider(ctx, email, u.Provider, now)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			// verified by its registration code in the meantime
		case err != nil:
			return "", nil, err
		default:
			user = verified
			log.Info().Str("user_id", user.ID.Hex()).Msg("Pending account verified through OAuth, local password cleared")
		}
	}

	token, err := a.jwt.Generate(user.ID, user.Email)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Error generating JWT for user")
		return "", nil, err
	}
	user.Password = ""
	return token, user, nil
}
