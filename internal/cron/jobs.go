package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"shoecreatify/internal/database"
	"shoecreatify/internal/metrics"
	"shoecreatify/internal/repositories"
)

// Expired records are kept for a while so /otp-status can still report EXPIRED.
const expiredRetention = time.Hour

const (
	userGaugeInterval = 30 * time.Second
	visitorIdle       = 3 * time.Minute
)

type Cleanup struct {
	OTPs        repositories.OTPRepository
	ResetTokens repositories.ResetTokenRepository
	Now         func() time.Time
}

// Run deletes OTP records and reset tokens that expired before the retention cutoff.
func (c *Cleanup) Run(ctx context.Context) error {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	cutoff := now().UTC().Add(-expiredRetention)

	otps, err := c.OTPs.DeleteExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired otps: %w", err)
	}
	metrics.CleanupDeletedTotal.WithLabelValues(database.OTPsCollection).Add(float64(otps))

	tokens, err := c.ResetTokens.DeleteExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	metrics.CleanupDeletedTotal.WithLabelValues(database.ResetTokensCollection).Add(float64(tokens))

	log.Info().Int64("otps", otps).Int64("reset_tokens", tokens).Msg("Expired verification records removed")
	return nil
}

type UserCounter interface {
	GetTotalUsers(ctx context.Context) (int64, error)
}

func RefreshUserGauge(ctx context.Context, users UserCounter) error {
	count, err := users.GetTotalUsers(ctx)
	if err != nil {
		return err
	}
	metrics.TotalUsers.Set(float64(count))
	return nil
}

type VisitorSweeper interface {
	Sweep(idle time.Duration) int
}

type Jobs struct {
	Cleanup         *Cleanup
	CleanupInterval time.Duration
	Users           UserCounter
	Limiter         VisitorSweeper
}

func RegisterJobs(ctx context.Context, scheduler gocron.Scheduler, jobs Jobs) error {
	if _, err := scheduler.NewJob(
		gocron.DurationJob(jobs.CleanupInterval),
		gocron.NewTask(jobs.Cleanup.Run),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("Delete expired OTPs and reset tokens"),
	); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(userGaugeInterval),
		gocron.NewTask(RefreshUserGauge, jobs.Users),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithName("Refresh total users gauge"),
	); err != nil {
		return fmt.Errorf("failed to schedule user gauge: %w", err)
	}

	if jobs.Limiter != nil {
		if _, err := scheduler.NewJob(
			gocron.DurationJob(time.Minute),
			gocron.NewTask(func() {
				if n := jobs.Limiter.Sweep(visitorIdle); n > 0 {
					log.Debug().Int("visitors", n).Msg("Idle rate limit entries dropped")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithName("Sweep idle rate limit visitors"),
		); err != nil {
			return fmt.Errorf("failed to schedule visitor sweep: %w", err)
		}
	}
	return nil
}
