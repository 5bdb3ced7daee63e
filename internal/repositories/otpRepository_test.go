package repositories

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"shoecreatify/internal/models"
)

func newOTP(email string, purpose models.OTPPurpose, hash string, now time.Time) *models.OTPRecord {
	return &models.OTPRecord{
		Email:      email,
		Purpose:    purpose,
		Salt:       "salt",
		CodeHash:   hash,
		IssuedAt:   now,
		ExpiresAt:  now.Add(10 * time.Minute),
		LastSentAt: now,
	}
}

func TestOTPRepositoryUpsertReplacesCode(t *testing.T) {
	requireDB(t)
	repo := NewOTPRepository(testDB)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first, err := repo.Upsert(ctx, newOTP("replace@x.com", models.PurposeRegistration, "h1", now))
	require.NoError(t, err)
	assert.Equal(t, 1, first.ResendCount)

	second, err := repo.Upsert(ctx, newOTP("replace@x.com", models.PurposeRegistration, "h2", now.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "h2", second.CodeHash)
	assert.Equal(t, 2, second.ResendCount)

	_, err = repo.Consume(ctx, first.ID, "h1", now)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments, "old code must no longer consume")

	other, err := repo.Upsert(ctx, newOTP("replace@x.com", models.PurposePasswordReset, "h3", now))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID, "purposes are tracked independently")
}

func TestOTPRepositoryConsumeOnce(t *testing.T) {
	requireDB(t)
	repo := NewOTPRepository(testDB)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec, err := repo.Upsert(ctx, newOTP("race@x.com", models.PurposeRegistration, "hash", now))
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Consume(ctx, rec.ID, "hash", now); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)

	stored, err := repo.FindByEmailAndPurpose(ctx, "race@x.com", models.PurposeRegistration)
	require.NoError(t, err)
	assert.True(t, stored.Consumed)
	require.NotNil(t, stored.ConsumedAt)
}

func TestOTPRepositoryConsumeRespectsExpiry(t *testing.T) {
	requireDB(t)
	repo := NewOTPRepository(testDB)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec, err := repo.Upsert(ctx, newOTP("late@x.com", models.PurposePasswordReset, "hash", now))
	require.NoError(t, err)

	_, err = repo.Consume(ctx, rec.ID, "hash", now.Add(11*time.Minute))
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	require.NoError(t, repo.RecordFailedAttempt(ctx, rec.ID, "hash"))
	stored, err := repo.FindByEmailAndPurpose(ctx, "late@x.com", models.PurposePasswordReset)
	require.NoError(t, err)
	assert.False(t, stored.Consumed)
	assert.Equal(t, 1, stored.Attempts)
}

func TestOTPRepositoryInvalidateAndCleanup(t *testing.T) {
	requireDB(t)
	repo := NewOTPRepository(testDB)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec, err := repo.Upsert(ctx, newOTP("gone@x.com", models.PurposeRegistration, "hash", now))
	require.NoError(t, err)

	require.NoError(t, repo.Invalidate(ctx, rec.ID, "other-hash"))
	_, err = repo.FindByEmailAndPurpose(ctx, "gone@x.com", models.PurposeRegistration)
	require.NoError(t, err, "invalidate with a stale hash is a no-op")

	require.NoError(t, repo.Invalidate(ctx, rec.ID, "hash"))
	_, err = repo.FindByEmailAndPurpose(ctx, "gone@x.com", models.PurposeRegistration)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	_, err = repo.Upsert(ctx, newOTP("old@x.com", models.PurposeRegistration, "hash", now.Add(-time.Hour)))
	require.NoError(t, err)
	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))
}

func TestOTPRepositoryClaimResend(t *testing.T) {
	requireDB(t)
	repo := NewOTPRepository(testDB)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	window := time.Minute

	claimed, err := repo.ClaimResend(ctx, "claim@x.com", models.PurposePasswordReset, now, now.Add(-window))
	require.NoError(t, err)
	assert.True(t, claimed, "no record yet")

	placeholder, err := repo.FindByEmailAndPurpose(ctx, "claim@x.com", models.PurposePasswordReset)
	require.NoError(t, err)
	assert.Empty(t, placeholder.CodeHash)
	assert.Equal(t, models.StateExpired, placeholder.State(now.Add(time.Millisecond)))

	claimed, err = repo.ClaimResend(ctx, "claim@x.com", models.PurposePasswordReset, now.Add(time.Second), now.Add(time.Second-window))
	require.NoError(t, err)
	assert.False(t, claimed, "inside the window")

	require.NoError(t, repo.ReleaseClaim(ctx, "claim@x.com", models.PurposePasswordReset))
	_, err = repo.FindByEmailAndPurpose(ctx, "claim@x.com", models.PurposePasswordReset)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments, "placeholder released")

	rec, err := repo.Upsert(ctx, newOTP("claim@x.com", models.PurposePasswordReset, "hash", now.Add(-2*window)))
	require.NoError(t, err)
	require.NoError(t, repo.ReleaseClaim(ctx, "claim@x.com", models.PurposePasswordReset))
	_, err = repo.FindByEmailAndPurpose(ctx, "claim@x.com", models.PurposePasswordReset)
	require.NoError(t, err, "a stored code is never released")

	claimed, err = repo.ClaimResend(ctx, "claim@x.com", models.PurposePasswordReset, now, now.Add(-window))
	require.NoError(t, err)
	assert.True(t, claimed, "window elapsed")

	stored, err := repo.FindByEmailAndPurpose(ctx, "claim@x.com", models.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)
	assert.Equal(t, "hash", stored.CodeHash)
	assert.True(t, stored.LastSentAt.Equal(now))
}

func TestOTPRepositoryClaimResendOnce(t *testing.T) {
	requireDB(t)
	repo := NewOTPRepository(testDB)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := repo.Upsert(ctx, newOTP("claimrace@x.com", models.PurposePasswordReset, "hash", now.Add(-2*time.Minute)))
	require.NoError(t, err)

	for _, email := range []string{"claimrace@x.com", "claimfresh@x.com"} {
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := repo.ClaimResend(ctx, email, models.PurposePasswordReset, now, now.Add(-time.Minute))
				if err == nil && claimed {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins, email)
	}
}
