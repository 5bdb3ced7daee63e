package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"shoecreatify/internal/cache"
	"shoecreatify/internal/config"
	"shoecreatify/internal/cron"
	"shoecreatify/internal/database"
	"shoecreatify/internal/middlewares"
	"shoecreatify/internal/models"
	"shoecreatify/internal/repositories"
	"shoecreatify/internal/services"
	"shoecreatify/internal/utils"
)

type Server struct {
	cfg           config.Config
	httpServer    *http.Server
	db            database.Service
	redis         *redis.Client
	cronScheduler gocron.Scheduler
	limiter       *middlewares.RateLimiter
	jwt           *utils.JWTIssuer

	userService  services.UserService
	verification services.VerificationService
	authService  services.AuthService
}

func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	db, err := database.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.EnsureIndexes(indexCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	userRepo := repositories.NewUserRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	resetTokenRepo := repositories.NewResetTokenRepository(db)

	s := &Server{
		cfg:     cfg,
		db:      db,
		limiter: middlewares.NewRateLimiter(rate.Limit(3), 5),
		jwt:     utils.NewJWTIssuer(cfg.JWTSecret),
	}

	guard := services.NewRecordResendGuard(otpRepo)
	if cfg.RedisURL != "" {
		rdb, err := cache.New(cfg.RedisURL)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.redis = rdb
		guard = services.NewRedisResendGuard(rdb)
		log.Info().Msg("Resend cooldowns backed by Redis")
	}

	var notifier services.Notifier
	if cfg.SMTPUsername != "" {
		notifier = services.NewEmailService(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, cfg.OTPTTL)
	} else {
		notifier = services.NewLogNotifier()
	}

	registration := services.NewOTPService(services.OTPPolicy{
		Purpose:        models.PurposeRegistration,
		TTL:            cfg.OTPTTL,
		ResendCooldown: cfg.RegistrationResendCooldown,
	}, otpRepo, guard, notifier)
	reset := services.NewOTPService(services.OTPPolicy{
		Purpose:        models.PurposePasswordReset,
		TTL:            cfg.OTPTTL,
		ResendCooldown: cfg.ResetResendCooldown,
	}, otpRepo, guard, notifier)
	resetTokens := services.NewResetTokenService(resetTokenRepo, userRepo, cfg.ResetTokenTTL)

	s.userService = services.NewUserService(userRepo, registration, s.jwt)
	s.verification = services.NewVerificationService(userRepo, registration, reset, resetTokens, s.jwt)
	s.authService = services.NewAuthService(userRepo, s.jwt)

	services.InitializeGoth(services.OAuthConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		CallbackBase:       cfg.OAuthCallbackBase,
		SessionKey:         cfg.SessionKey,
		Secure:             cfg.IsProd(),
	})

	s.cronScheduler, err = cron.NewScheduler(ctx)
	if err != nil {
		s.closeStores()
		return nil, err
	}
	err = cron.RegisterJobs(ctx, s.cronScheduler, cron.Jobs{
		Cleanup:         &cron.Cleanup{OTPs: otpRepo, ResetTokens: resetTokenRepo},
		CleanupInterval: cfg.CleanupInterval,
		Users:           s.userService,
		Limiter:         s.limiter,
	})
	if err != nil {
		_ = s.cronScheduler.Shutdown()
		s.closeStores()
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.cfg.Port).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) closeStores() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Redis client")
		}
	}
	if err := s.db.Close(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Error disconnecting from MongoDB")
	}
}

func (s *Server) GracefulShutdown(done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}

	log.Info().Msg("Shutting down cron scheduler")
	if err := s.cronScheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Error while shutting down the cron scheduler")
	}
	s.closeStores()

	log.Info().Msg("Server exiting")
	done <- true
}
