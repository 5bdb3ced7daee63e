package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"shoecreatify/internal/models"
	"shoecreatify/internal/repositories"
)

// ResendGuard enforces the minimum gap between two codes for the same (email, purpose).
// A zero duration from Remaining or Acquire means a new code may be sent now.
type ResendGuard interface {
	Remaining(ctx context.Context, email string, purpose models.OTPPurpose, window time.Duration) (time.Duration, error)
	// Acquire checks the window and, when it has elapsed, starts a new one atomically.
	Acquire(ctx context.Context, email string, purpose models.OTPPurpose, window time.Duration) (time.Duration, error)
	// Start opens a window unconditionally.
	Start(ctx context.Context, email string, purpose models.OTPPurpose, window time.Duration) error
	Release(ctx context.Context, email string, purpose models.OTPPurpose) error
}

// recordResendGuard keeps the window in last_sent_at on the stored OTP record. Acquire
// claims it with a conditional write, and issuing a code moves it again.
type recordResendGuard struct {
	otpRepo repositories.OTPRepository
	now     func() time.Time
}

func NewRecordResendGuard(otpRepo repositories.OTPRepository) ResendGuard {
	return &recordResendGuard{otpRepo: otpRepo, now: time.Now}
}

func (g *recordResendGuard) timestamp() time.Time {
	return g.now().UTC().Truncate(time.Millisecond)
}

func (g *recordResendGuard) Remaining(ctx context.Context, email string, purpose models.OTPPurpose, window time.Duration) (time.Duration, error) {
	rec, err := g.otpRepo.FindByEmailAndPurpose(ctx, email, purpose)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	elapsed := g.timestamp().Sub(rec.LastSentAt)
	if elapsed >= window {
		return 0, nil
	}
	return window - elapsed, nil
}

func (g *recordResendGuard) Acquire(ctx context.Context, email string, purpose models.OTPPurpose, window time.Duration) (time.Duration, error) {
	now := g.timestamp()
	claimed, err := g.otpRepo.ClaimResend(ctx, email, purpose, now, now.Add(-window))
	if err != nil {
		return 0, fmt.Errorf("failed to acquire cooldown: %w", err)
	}
	if claimed {
		return 0, nil
	}
	remaining, err := g.Remaining(ctx, email, purpose, window)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		// window lapsed between the claim and the read
		remaining = time.Millisecond
	}
	return remaining, nil
}

func (g *recordResendGuard) Start(context.Context, string, models.OTPPurpose, time.Duration) error {
	return nil
}

func (g *recordResendGuard) Release(ctx context.Context, email string, purpose models.OTPPurpose) error {
	return g.otpRepo.ReleaseClaim(ctx, email, purpose)
}

// redisResendGuard keeps one expiring key per (purpose, email); SET NX makes Acquire a
// single round trip, so two concurrent resends cannot both pass.
type redisResendGuard struct {
	client *redis.Client
}

func NewRedisResendGuard(client *redis.Client) ResendGuard {
	return &redisResendGuard{client: client}
}

func cooldownKey(email string, purpose models.OTPPurpose) string {
	return fmt.Sprintf("otp:cooldown:%s:%s", purpose, email)
}

func (g *redisResendGuard) Remaining(ctx context.Context, email string, purpose models.OTPPurpose, _ time.Duration) (time.Duration, error) {
	ttl, err := g.client.PTTL(ctx, cooldownKey(email, purpose)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read cooldown: %w", err)
	}
	// -2 (missing) and -1 (no expiry) come back as negative durations.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (g *redisResendGuard) Acquire(ctx context.Context, email string, purpose models.OTPPurpose, window time.Duration) (time.Duration, error) {
	ok, err := g.client.SetNX(ctx, cooldownKey(email, purpose), 1, window).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to acquire cooldown: %w", err)
	}
	if ok {
		return 0, nil
	}
	remaining, err := g.Remaining(ctx, email, purpose, window)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		// key vanished between SETNX and PTTL
		remaining = time.Millisecond
	}
	return remaining, nil
}

func (g *redisResendGuard) Start(ctx context.Context, email string, purpose models.OTPPurpose, window time.Duration) error {
	if err := g.client.Set(ctx, cooldownKey(email, purpose), 1, window).Err(); err != nil {
		return fmt.Errorf("failed to start cooldown: %w", err)
	}
	return nil
}

func (g *redisResendGuard) Release(ctx context.Context, email string, purpose models.OTPPurpose) error {
	if err := g.client.Del(ctx, cooldownKey(email, purpose)).Err(); err != nil {
		return fmt.Errorf("failed to release cooldown: %w", err)
	}
	return nil
}
