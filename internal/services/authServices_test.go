package services

import (
	"context"
	"testing"
	"time"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoecreatify/internal/models"
	"shoecreatify/internal/utils"
)

func TestOAuthLoginCreatesVerifiedUser(t *testing.T) {
	users := newFakeUserRepo()
	jwt := utils.NewJWTIssuer("test-secret")
	svc := NewAuthService(users, jwt)

	token, user, err := svc.HandleLogin(context.Background(), goth.User{Email: "Ana@Gmail.com", Name: "Ana", Provider: "google"})
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, "ana@gmail.com", user.Email)

	claims, err := jwt.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.ID)

	again, err := users.FindByEmail(context.Background(), "ana@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "google", again.Provider)
}

func TestOAuthLoginVerifiesPendingAccount(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	f.register(t, "victim@x.com", "Attack3rPw")

	f.clock.Advance(time.Minute)
	_, err := f.userSvc.RegisterUser(ctx, &models.RegisterRequest{Name: "Eve", Email: "victim@x.com", Password: "Attack3rPw2"})
	require.NoError(t, err)

	_, user, err := NewAuthService(f.users, f.jwt).HandleLogin(ctx, goth.User{Email: "victim@x.com", Provider: "google"})
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.Empty(t, user.Password)

	for _, pw := range []string{"Attack3rPw", "Attack3rPw2"} {
		_, _, err = f.userSvc.LoginUser(ctx, &models.Login{Email: "victim@x.com", Password: pw})
		assert.ErrorIs(t, err, ErrInvalidCredentials, pw)
	}

	stored, err := f.users.FindByEmail(ctx, "victim@x.com")
	require.NoError(t, err)
	assert.Empty(t, stored.Password)
	assert.Empty(t, stored.PendingPassword)
	assert.Equal(t, "google", stored.Provider)
}

func TestOAuthLoginKeepsVerifiedPassword(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", "Passw0rdX")
	_, err := f.verification.VerifyRegistration(ctx, "a@x.com", f.notifier.lastCode())
	require.NoError(t, err)

	_, _, err = NewAuthService(f.users, f.jwt).HandleLogin(ctx, goth.User{Email: "a@x.com", Provider: "google"})
	require.NoError(t, err)

	_, _, err = f.userSvc.LoginUser(ctx, &models.Login{Email: "a@x.com", Password: "Passw0rdX"})
	assert.NoError(t, err)
}

func TestOAuthLoginRequiresEmail(t *testing.T) {
	_, _, err := NewAuthService(newFakeUserRepo(), utils.NewJWTIssuer("s")).HandleLogin(context.Background(), goth.User{Provider: "google"})
	assert.ErrorIs(t, err, ErrMissingEmail)
}
