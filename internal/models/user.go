package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Email         string             `json:"email" bson:"email"`
	Password      string             `json:"-" bson:"password,omitempty"`
	Provider      string             `json:"provider,omitempty" bson:"provider,omitempty"`
	EmailVerified bool               `json:"emailVerified" bson:"email_verified"`
	VerifiedAt    *time.Time         `json:"verifiedAt,omitempty" bson:"verified_at,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updated_at"`

	// Written by a repeat registration of an unverified account and promoted to Name and
	// Password only when the registration code is verified.
	PendingName     string `json:"-" bson:"pending_name,omitempty"`
	PendingPassword string `json:"-" bson:"pending_password,omitempty"`
}
