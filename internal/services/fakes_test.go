package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"shoecreatify/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type otpKey struct {
	email   string
	purpose models.OTPPurpose
}

// fakeOTPRepo mirrors the Mongo repository's conditional updates under one mutex.
type fakeOTPRepo struct {
	mu      sync.Mutex
	records map[otpKey]*models.OTPRecord
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{records: make(map[otpKey]*models.OTPRecord)}
}

func (r *fakeOTPRepo) Upsert(_ context.Context, otp *models.OTPRecord) (*models.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := otpKey{otp.Email, otp.Purpose}
	rec, ok := r.records[key]
	if !ok {
		rec = &models.OTPRecord{ID: primitive.NewObjectID(), Email: otp.Email, Purpose: otp.Purpose}
		r.records[key] = rec
	}
	rec.Salt = otp.Salt
	rec.CodeHash = otp.CodeHash
	rec.IssuedAt = otp.IssuedAt
	rec.ExpiresAt = otp.ExpiresAt
	rec.Consumed = false
	rec.ConsumedAt = nil
	rec.Attempts = 0
	rec.ResendCount++
	rec.LastSentAt = otp.LastSentAt
	rec.UpdatedAt = otp.IssuedAt

	cp := *rec
	return &cp, nil
}

func (r *fakeOTPRepo) FindByEmailAndPurpose(_ context.Context, email string, purpose models.OTPPurpose) (*models.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[otpKey{email, purpose}]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeOTPRepo) byID(id primitive.ObjectID) *models.OTPRecord {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (r *fakeOTPRepo) Consume(_ context.Context, otpID primitive.ObjectID, codeHash string, now time.Time) (*models.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.byID(otpID)
	if rec == nil || rec.CodeHash != codeHash || rec.Consumed || rec.ExpiresAt.Before(now) {
		return nil, mongo.ErrNoDocuments
	}
	rec.Consumed = true
	at := now
	rec.ConsumedAt = &at
	cp := *rec
	return &cp, nil
}

func (r *fakeOTPRepo) RecordFailedAttempt(_ context.Context, otpID primitive.ObjectID, codeHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec := r.byID(otpID); rec != nil && rec.CodeHash == codeHash && !rec.Consumed {
		rec.Attempts++
	}
	return nil
}

func (r *fakeOTPRepo) ClaimResend(_ context.Context, email string, purpose models.OTPPurpose, now, cutoff time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := otpKey{email, purpose}
	rec, ok := r.records[key]
	if !ok {
		r.records[key] = &models.OTPRecord{
			ID:         primitive.NewObjectID(),
			Email:      email,
			Purpose:    purpose,
			IssuedAt:   now,
			ExpiresAt:  now,
			LastSentAt: now,
		}
		return true, nil
	}
	if rec.LastSentAt.After(cutoff) {
		return false, nil
	}
	rec.LastSentAt = now
	return true, nil
}

func (r *fakeOTPRepo) ReleaseClaim(_ context.Context, email string, purpose models.OTPPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := otpKey{email, purpose}
	if rec, ok := r.records[key]; ok && rec.CodeHash == "" {
		delete(r.records, key)
	}
	return nil
}

func (r *fakeOTPRepo) Invalidate(_ context.Context, otpID primitive.ObjectID, codeHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, rec := range r.records {
		if rec.ID == otpID && rec.CodeHash == codeHash {
			delete(r.records, key)
		}
	}
	return nil
}

func (r *fakeOTPRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rec := range r.records {
		if rec.ExpiresAt.Before(before) {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}

type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[string]*models.User
	failUpdates error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Email]; ok {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	cp := *user
	r.users[user.Email] = &cp
	return user, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[email]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, userID primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID == userID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) MarkEmailVerified(_ context.Context, email string, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[email]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	if u.PendingName != "" {
		u.Name = u.PendingName
	}
	if u.PendingPassword != "" {
		u.Password = u.PendingPassword
	}
	u.PendingName, u.PendingPassword = "", ""
	u.EmailVerified = true
	u.VerifiedAt = &at
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) MarkVerifiedByProvider(_ context.Context, email, provider string, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[email]
	if !ok || u.EmailVerified {
		return nil, mongo.ErrNoDocuments
	}
	u.Password, u.PendingName, u.PendingPassword = "", "", ""
	u.Provider = provider
	u.EmailVerified = true
	u.VerifiedAt = &at
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) SetPendingRegistration(_ context.Context, email, name, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[email]
	if !ok || u.EmailVerified {
		return mongo.ErrNoDocuments
	}
	u.PendingName = name
	u.PendingPassword = passwordHash
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failUpdates != nil {
		return r.failUpdates
	}
	u, ok := r.users[email]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.Password = passwordHash
	u.PendingPassword = ""
	return nil
}

func (r *fakeUserRepo) CountAll(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

type fakeResetTokenRepo struct {
	mu     sync.Mutex
	tokens []*models.ResetToken
}

func (r *fakeResetTokenRepo) Create(_ context.Context, token *models.ResetToken) (*models.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.ID = primitive.NewObjectID()
	cp := *token
	r.tokens = append(r.tokens, &cp)
	return token, nil
}

func (r *fakeResetTokenRepo) FindByHash(_ context.Context, email, tokenHash string) (*models.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.Email == email && t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeResetTokenRepo) Consume(_ context.Context, email, tokenHash string, now time.Time) (*models.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.Email == email && t.TokenHash == tokenHash && !t.Consumed && !t.ExpiresAt.Before(now) {
			t.Consumed = true
			at := now
			t.ConsumedAt = &at
			cp := *t
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeResetTokenRepo) Release(_ context.Context, tokenID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.ID == tokenID && t.Consumed {
			t.Consumed = false
			t.ConsumedAt = nil
		}
	}
	return nil
}

func (r *fakeResetTokenRepo) InvalidateForEmail(_ context.Context, email string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.tokens {
		if t.Email == email && !t.Consumed {
			t.Consumed = true
			at := now
			t.ConsumedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *fakeResetTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.tokens[:0]
	var n int64
	for _, t := range r.tokens {
		if t.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	r.tokens = kept
	return n, nil
}

type sentCode struct {
	email   string
	purpose models.OTPPurpose
	code    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, email string, purpose models.OTPPurpose, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentCode{email, purpose, code})
	return nil
}

func (n *fakeNotifier) lastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.sent) == 0 {
		return ""
	}
	return n.sent[len(n.sent)-1].code
}

var errSMTPDown = errors.New("smtp: connection refused")
