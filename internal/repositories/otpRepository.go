package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shoecreatify/internal/database"
	"shoecreatify/internal/models"
	"shoecreatify/internal/utils"
)

// OTPRepository persists one document per (email, purpose). Lookups that find nothing
// return mongo.ErrNoDocuments.
type OTPRepository interface {
	Upsert(ctx context.Context, otp *models.OTPRecord) (*models.OTPRecord, error)
	FindByEmailAndPurpose(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPRecord, error)
	Consume(ctx context.Context, otpID primitive.ObjectID, codeHash string, now time.Time) (*models.OTPRecord, error)
	RecordFailedAttempt(ctx context.Context, otpID primitive.ObjectID, codeHash string) error
	ClaimResend(ctx context.Context, email string, purpose models.OTPPurpose, now, cutoff time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, email string, purpose models.OTPPurpose) error
	Invalidate(ctx context.Context, otpID primitive.ObjectID, codeHash string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type otpRepository struct {
	collection *mongo.Collection
}

func NewOTPRepository(db database.Service) OTPRepository {
	return &otpRepository{collection: db.Database().Collection(database.OTPsCollection)}
}

// Upsert replaces the code for (email, purpose) in a single write, so the previous code
// stops matching the moment the new one is stored.
func (r *otpRepository) Upsert(ctx context.Context, otp *models.OTPRecord) (_ *models.OTPRecord, err error) {
	defer utils.ObserveQuery("upsert", "otp", &err)()

	filter := bson.M{"email": otp.Email, "purpose": otp.Purpose}
	update := bson.M{
		"$set": bson.M{
			"salt":         otp.Salt,
			"code_hash":    otp.CodeHash,
			"issued_at":    otp.IssuedAt,
			"expires_at":   otp.ExpiresAt,
			"consumed":     false,
			"attempts":     0,
			"last_sent_at": otp.LastSentAt,
			"updated_at":   otp.IssuedAt,
		},
		"$unset":       bson.M{"consumed_at": ""},
		"$inc":         bson.M{"resend_count": 1},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.OTPRecord
	if err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		log.Error().Err(err).Str("email", otp.Email).Str("purpose", otp.Purpose.String()).Msg("Failed to store OTP")
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}
	return &stored, nil
}

func (r *otpRepository) FindByEmailAndPurpose(ctx context.Context, email string, purpose models.OTPPurpose) (_ *models.OTPRecord, err error) {
	defer utils.ObserveQuery("findByEmailAndPurpose", "otp", &err)()

	var otp models.OTPRecord
	findErr := r.collection.FindOne(ctx, bson.M{"email": email, "purpose": purpose}).Decode(&otp)
	if errors.Is(findErr, mongo.ErrNoDocuments) {
		return nil, findErr
	}
	if err = findErr; err != nil {
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	return &otp, nil
}

// Consume is the check-and-flip step of verification. The filter pins the exact code
// that was compared, so of two concurrent submissions at most one matches.
func (r *otpRepository) Consume(ctx context.Context, otpID primitive.ObjectID, codeHash string, now time.Time) (_ *models.OTPRecord, err error) {
	defer utils.ObserveQuery("consume", "otp", &err)()

	filter := bson.M{
		"_id":        otpID,
		"code_hash":  codeHash,
		"consumed":   false,
		"expires_at": bson.M{"$gte": now},
	}
	update := bson.M{"$set": bson.M{"consumed": true, "consumed_at": now, "updated_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var otp models.OTPRecord
	updErr := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&otp)
	if errors.Is(updErr, mongo.ErrNoDocuments) {
		return nil, updErr
	}
	if err = updErr; err != nil {
		return nil, fmt.Errorf("failed to consume otp: %w", err)
	}
	return &otp, nil
}

func (r *otpRepository) RecordFailedAttempt(ctx context.Context, otpID primitive.ObjectID, codeHash string) (err error) {
	defer utils.ObserveQuery("recordFailedAttempt", "otp", &err)()

	filter := bson.M{"_id": otpID, "code_hash": codeHash, "consumed": false}
	update := bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}}
	if _, err = r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to record otp attempt: %w", err)
	}
	return nil
}

// ClaimResend moves last_sent_at to now when the previous send happened at or before cutoff,
// in one conditional upsert. With no record yet it inserts an already-expired placeholder
// that the following Upsert fills in. A false result means another send holds the window.
func (r *otpRepository) ClaimResend(ctx context.Context, email string, purpose models.OTPPurpose, now, cutoff time.Time) (_ bool, err error) {
	defer utils.ObserveQuery("claimResend", "otp", &err)()

	filter := bson.M{"email": email, "purpose": purpose, "last_sent_at": bson.M{"$lte": cutoff}}
	update := bson.M{
		"$set": bson.M{"last_sent_at": now, "updated_at": now},
		"$setOnInsert": bson.M{
			"issued_at":    now,
			"expires_at":   now,
			"consumed":     false,
			"attempts":     0,
			"resend_count": 0,
		},
	}
	_, err = r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// the (email, purpose) record exists and was sent after cutoff
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim resend window: %w", err)
	}
	return true, nil
}

// ReleaseClaim drops a placeholder left by ClaimResend when no code was stored after it.
func (r *otpRepository) ReleaseClaim(ctx context.Context, email string, purpose models.OTPPurpose) (err error) {
	defer utils.ObserveQuery("releaseClaim", "otp", &err)()

	filter := bson.M{"email": email, "purpose": purpose, "code_hash": bson.M{"$exists": false}}
	if _, err = r.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to release resend window: %w", err)
	}
	return nil
}

// Invalidate removes the record only while it still carries codeHash, so a newer code
// issued in between is left alone.
func (r *otpRepository) Invalidate(ctx context.Context, otpID primitive.ObjectID, codeHash string) (err error) {
	defer utils.ObserveQuery("invalidate", "otp", &err)()

	if _, err = r.collection.DeleteOne(ctx, bson.M{"_id": otpID, "code_hash": codeHash}); err != nil {
		return fmt.Errorf("failed to invalidate otp: %w", err)
	}
	return nil
}

func (r *otpRepository) DeleteExpired(ctx context.Context, before time.Time) (_ int64, err error) {
	defer utils.ObserveQuery("deleteExpired", "otp", &err)()

	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", err)
	}
	return result.DeletedCount, nil
}
