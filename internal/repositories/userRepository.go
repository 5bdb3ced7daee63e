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

type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	MarkEmailVerified(ctx context.Context, email string, at time.Time) (*models.User, error)
	MarkVerifiedByProvider(ctx context.Context, email, provider string, at time.Time) (*models.User, error)
	SetPendingRegistration(ctx context.Context, email, name, passwordHash string) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	CountAll(ctx context.Context) (int64, error)
}

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db database.Service) UserRepository {
	return &userRepository{collection: db.Database().Collection(database.UsersCollection)}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (_ *models.User, err error) {
	defer utils.ObserveQuery("create", "user", &err)()

	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err = r.collection.InsertOne(ctx, user); err != nil {
		log.Error().Err(err).Str("email", user.Email).Msg("Failed to insert user into database")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// FindByEmail returns mongo.ErrNoDocuments when no account uses the address.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	defer utils.ObserveQuery("findByEmail", "user", &err)()

	var user models.User
	findErr := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(findErr, mongo.ErrNoDocuments) {
		return nil, findErr
	}
	if err = findErr; err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, userID primitive.ObjectID) (_ *models.User, err error) {
	defer utils.ObserveQuery("findById", "user", &err)()

	var user models.User
	findErr := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(findErr, mongo.ErrNoDocuments) {
		return nil, findErr
	}
	if err = findErr; err != nil {
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}
	return &user, nil
}

// MarkEmailVerified flips email_verified, promotes any pending name and password, and
// returns the updated account.
func (r *userRepository) MarkEmailVerified(ctx context.Context, email string, at time.Time) (_ *models.User, err error) {
	defer utils.ObserveQuery("markEmailVerified", "user", &err)()

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"email_verified": true,
			"verified_at":    at,
			"updated_at":     at,
			"name":           bson.M{"$ifNull": bson.A{"$pending_name", "$name"}},
			"password":       bson.M{"$ifNull": bson.A{"$pending_password", "$password"}},
		}}},
		{{Key: "$unset", Value: bson.A{"pending_name", "pending_password"}}},
	}
	return r.verify(ctx, bson.M{"email": email}, update)
}

// MarkVerifiedByProvider verifies a pending account on the strength of an OAuth sign-in.
// Any password chosen before verification is dropped, since nothing proved who set it.
func (r *userRepository) MarkVerifiedByProvider(ctx context.Context, email, provider string, at time.Time) (_ *models.User, err error) {
	defer utils.ObserveQuery("markVerifiedByProvider", "user", &err)()

	update := bson.M{
		"$set":   bson.M{"email_verified": true, "verified_at": at, "updated_at": at, "provider": provider},
		"$unset": bson.M{"password": "", "pending_name": "", "pending_password": ""},
	}
	return r.verify(ctx, bson.M{"email": email, "email_verified": false}, update)
}

func (r *userRepository) verify(ctx context.Context, filter, update interface{}) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if err != nil {
		log.Error().Err(err).Msg("Error marking email as verified")
		return nil, fmt.Errorf("failed to mark email verified: %w", err)
	}
	return &user, nil
}

// SetPendingRegistration stages a new name and password on an account that is still
// unverified. It returns mongo.ErrNoDocuments once the account has been verified.
func (r *userRepository) SetPendingRegistration(ctx context.Context, email, name, passwordHash string) (err error) {
	defer utils.ObserveQuery("setPendingRegistration", "user", &err)()

	update := bson.M{"$set": bson.M{
		"pending_name":     name,
		"pending_password": passwordHash,
		"updated_at":       time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"email": email, "email_verified": false}, update)
	if err != nil {
		return fmt.Errorf("failed to stage registration: %w", err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdatePassword sets a new password and discards any staged one.
func (r *userRepository) UpdatePassword(ctx context.Context, email, passwordHash string) (err error) {
	defer utils.ObserveQuery("updatePassword", "user", &err)()

	update := bson.M{
		"$set":   bson.M{"password": passwordHash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"pending_password": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"email": email}, update)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Error updating user password")
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *userRepository) CountAll(ctx context.Context) (_ int64, err error) {
	defer utils.ObserveQuery("countAll", "user", &err)()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to count total users")
		return 0, fmt.Errorf("failed to count total users: %w", err)
	}
	return count, nil
}
