package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResetToken proves that the holder already passed PASSWORD_RESET OTP verification.
// Only the SHA-256 of the token is persisted.
type ResetToken struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email      string             `bson:"email" json:"email"`
	TokenHash  string             `bson:"token_hash" json:"-"`
	ExpiresAt  time.Time          `bson:"expires_at" json:"expiresAt"`
	Consumed   bool               `bson:"consumed" json:"consumed"`
	ConsumedAt *time.Time         `bson:"consumed_at,omitempty" json:"consumedAt,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
}
