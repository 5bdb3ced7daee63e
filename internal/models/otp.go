package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OTPPurpose string

const (
	PurposeRegistration  OTPPurpose = "REGISTRATION"
	PurposePasswordReset OTPPurpose = "PASSWORD_RESET"
)

func (p OTPPurpose) String() string {
	return string(p)
}

func (p OTPPurpose) Valid() bool {
	return p == PurposeRegistration || p == PurposePasswordReset
}

// OTPState is the verification state derived from a stored record at a given instant.
type OTPState string

const (
	StateNone         OTPState = "NONE"
	StateIssued       OTPState = "ISSUED"
	StatePendingInput OTPState = "PENDING_INPUT"
	StateVerified     OTPState = "VERIFIED"
	StateExpired      OTPState = "EXPIRED"
)

// OTPRecord holds the single active code for an (email, purpose) pair. Re-issuing
// overwrites the document in place, which is what invalidates the previous code.
type OTPRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email       string             `bson:"email" json:"email"`
	Purpose     OTPPurpose         `bson:"purpose" json:"purpose"`
	Salt        string             `bson:"salt" json:"-"`
	CodeHash    string             `bson:"code_hash" json:"-"`
	IssuedAt    time.Time          `bson:"issued_at" json:"issuedAt"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expiresAt"`
	Consumed    bool               `bson:"consumed" json:"consumed"`
	ConsumedAt  *time.Time         `bson:"consumed_at,omitempty" json:"consumedAt,omitempty"`
	Attempts    int                `bson:"attempts" json:"attempts"`
	ResendCount int                `bson:"resend_count" json:"resendCount"`
	LastSentAt  time.Time          `bson:"last_sent_at" json:"lastSentAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// State reports where the record sits in ISSUED -> PENDING_INPUT -> {VERIFIED, EXPIRED}.
// A record nobody has tried to verify yet is ISSUED; any failed attempt moves it to PENDING_INPUT.
func (r *OTPRecord) State(now time.Time) OTPState {
	switch {
	case r == nil:
		return StateNone
	case r.Consumed:
		return StateVerified
	case now.After(r.ExpiresAt):
		return StateExpired
	case r.Attempts == 0:
		return StateIssued
	default:
		return StatePendingInput
	}
}
