package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop/internal/events"
	"github.com/Skotchmaster/shop/internal/hash"
	"github.com/Skotchmaster/shop/internal/models"
	"github.com/Skotchmaster/shop/internal/validation"
)

func signup(t *testing.T, f *fixture, email, password string) {
	t.Helper()
	_, err := f.auth.Signup(context.Background(), SignupInput{Email: email, Password: password, ConfirmPassword: password})
	require.NoError(t, err)
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.auth.Signup(ctx, SignupInput{Email: "  New@Test.com ", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "new@test.com", u.Email)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.True(t, hash.CheckPassword(u.PasswordHash, "secret1"))
	assert.True(t, u.Cart.IsEmpty())

	msg, ok := f.events.Last(events.TopicUsers)
	require.True(t, ok)
	assert.Equal(t, "user_signed_up", msg.Event["type"])
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)
	signup(t, f, "taken@test.com", "secret1")

	tests := []struct {
		name    string
		in      SignupInput
		field   string
		message string
	}{
		{name: "bad email", in: SignupInput{Email: "nope", Password: "secret1", ConfirmPassword: "secret1"}, field: "email", message: "Please enter a valid email."},
		{name: "short password", in: SignupInput{Email: "a@test.com", Password: "abc", ConfirmPassword: "abc"}, field: "password"},
		{name: "mismatch", in: SignupInput{Email: "a@test.com", Password: "secret1", ConfirmPassword: "secret2"}, field: "confirmPassword", message: "Passwords have to match!"},
		{name: "taken", in: SignupInput{Email: "TAKEN@test.com", Password: "secret1", ConfirmPassword: "secret1"}, field: "email", message: msgEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Signup(context.Background(), tt.in)
			require.ErrorIs(t, err, ErrValidation)

			var verrs validation.Errors
			require.True(t, errors.As(err, &verrs))
			require.True(t, verrs.Has(tt.field), "fields: %v", verrs)
			if tt.message != "" {
				assert.Equal(t, tt.message, verrs.First())
			}
		})
	}
}

func TestSignup_EmailTakenBetweenLookupAndInsert(t *testing.T) {
	f := newFixture(t)

	// Another signup for the same address lands right before the email lookup runs.
	inserted := false
	require.NoError(t, f.repo.DB.Callback().Query().Before("gorm:query").Register("rival_signup", func(*gorm.DB) {
		if inserted {
			return
		}
		inserted = true
		require.NoError(t, f.repo.DB.Create(&models.User{Email: "race@test.com", PasswordHash: "hash"}).Error)
	}))

	_, err := f.auth.Signup(context.Background(), SignupInput{Email: "race@test.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.True(t, inserted)
	require.ErrorIs(t, err, ErrValidation)

	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, msgEmailTaken, verrs.First())
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signup(t, f, "user@test.com", "secret1")

	u, err := f.auth.Login(ctx, LoginInput{Email: "User@test.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "user@test.com", u.Email)

	_, err = f.auth.Login(ctx, LoginInput{Email: "user@test.com", Password: "wrong11"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, LoginInput{Email: "ghost@test.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, LoginInput{Email: "not-an-email", Password: "secret1"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signup(t, f, "user@test.com", "secret1")

	token, err := f.auth.RequestReset(ctx, "user@test.com")
	require.NoError(t, err)
	require.Len(t, token, 64)

	msg, ok := f.events.Last(events.TopicUsers)
	require.True(t, ok)
	assert.Equal(t, "password_reset_requested", msg.Event["type"])
	assert.Equal(t, "http://localhost:3000/reset/"+token, msg.Event["resetURL"])

	u, err := f.auth.UserForReset(ctx, token)
	require.NoError(t, err)

	require.NoError(t, f.auth.NewPassword(ctx, NewPasswordInput{Password: "newpass1", UserID: u.ID.String(), Token: token}))

	_, err = f.auth.Login(ctx, LoginInput{Email: "user@test.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, LoginInput{Email: "user@test.com", Password: "newpass1"})
	require.NoError(t, err)

	err = f.auth.NewPassword(ctx, NewPasswordInput{Password: "another1", UserID: u.ID.String(), Token: token})
	require.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestPasswordReset_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.RequestReset(context.Background(), "ghost@test.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signup(t, f, "user@test.com", "secret1")

	now := time.Now().UTC()
	f.auth.Now = func() time.Time { return now }

	token, err := f.auth.RequestReset(ctx, "user@test.com")
	require.NoError(t, err)

	f.auth.Now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = f.auth.UserForReset(ctx, token)
	require.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestNewPassword_WrongUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signup(t, f, "a@test.com", "secret1")
	other, err := f.auth.Signup(ctx, SignupInput{Email: "b@test.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	token, err := f.auth.RequestReset(ctx, "a@test.com")
	require.NoError(t, err)

	err = f.auth.NewPassword(ctx, NewPasswordInput{Password: "newpass1", UserID: other.ID.String(), Token: token})
	require.ErrorIs(t, err, ErrInvalidResetToken)
}
