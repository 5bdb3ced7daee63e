package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shoecreatify/internal/database"
	"shoecreatify/internal/models"
	"shoecreatify/internal/utils"
)

type ResetTokenRepository interface {
	Create(ctx context.Context, token *models.ResetToken) (*models.ResetToken, error)
	FindByHash(ctx context.Context, email, tokenHash string) (*models.ResetToken, error)
	Consume(ctx context.Context, email, tokenHash string, now time.Time) (*models.ResetToken, error)
	Release(ctx context.Context, tokenID primitive.ObjectID) error
	InvalidateForEmail(ctx context.Context, email string, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type resetTokenRepository struct {
	collection *mongo.Collection
}

func NewResetTokenRepository(db database.Service) ResetTokenRepository {
	return &resetTokenRepository{collection: db.Database().Collection(database.ResetTokensCollection)}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *models.ResetToken) (_ *models.ResetToken, err error) {
	defer utils.ObserveQuery("create", "reset_token", &err)()

	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	if _, err = r.collection.InsertOne(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to create reset token: %w", err)
	}
	return token, nil
}

func (r *resetTokenRepository) FindByHash(ctx context.Context, email, tokenHash string) (_ *models.ResetToken, err error) {
	defer utils.ObserveQuery("findByHash", "reset_token", &err)()

	var token models.ResetToken
	findErr := r.collection.FindOne(ctx, bson.M{"email": email, "token_hash": tokenHash}).Decode(&token)
	if errors.Is(findErr, mongo.ErrNoDocuments) {
		return nil, findErr
	}
	if err = findErr; err != nil {
		return nil, fmt.Errorf("failed to find reset token: %w", err)
	}
	return &token, nil
}

// Consume marks an unexpired, unconsumed token as used in one conditional update.
func (r *resetTokenRepository) Consume(ctx context.Context, email, tokenHash string, now time.Time) (_ *models.ResetToken, err error) {
	defer utils.ObserveQuery("consume", "reset_token", &err)()

	filter := bson.M{
		"email":      email,
		"token_hash": tokenHash,
		"consumed":   false,
		"expires_at": bson.M{"$gte": now},
	}
	update := bson.M{"$set": bson.M{"consumed": true, "consumed_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var token models.ResetToken
	updErr := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&token)
	if errors.Is(updErr, mongo.ErrNoDocuments) {
		return nil, updErr
	}
	if err = updErr; err != nil {
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return &token, nil
}

// Release undoes Consume for a token whose password change could not be stored.
func (r *resetTokenRepository) Release(ctx context.Context, tokenID primitive.ObjectID) (err error) {
	defer utils.ObserveQuery("release", "reset_token", &err)()

	update := bson.M{"$set": bson.M{"consumed": false}, "$unset": bson.M{"consumed_at": ""}}
	if _, err = r.collection.UpdateOne(ctx, bson.M{"_id": tokenID, "consumed": true}, update); err != nil {
		return fmt.Errorf("failed to release reset token: %w", err)
	}
	return nil
}

func (r *resetTokenRepository) InvalidateForEmail(ctx context.Context, email string, now time.Time) (_ int64, err error) {
	defer utils.ObserveQuery("invalidateForEmail", "reset_token", &err)()

	filter := bson.M{"email": email, "consumed": false}
	update := bson.M{"$set": bson.M{"consumed": true, "consumed_at": now}}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate reset tokens: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *resetTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (_ int64, err error) {
	defer utils.ObserveQuery("deleteExpired", "reset_token", &err)()

	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	return result.DeletedCount, nil
}
