package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop/internal/events"
	"github.com/Skotchmaster/shop/internal/hash"
	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/models"
	"github.com/Skotchmaster/shop/internal/repo"
	"github.com/Skotchmaster/shop/internal/validation"
)

const msgEmailTaken = "E-Mail exists already, please pick a different one."

type AuthService struct {
	Repo     *repo.GormRepo
	Events   events.Publisher
	ResetTTL time.Duration
	BaseURL  string
	Now      func() time.Time
}

type SignupInput struct {
	Email           string `form:"email"           validate:"required,email"   msg:"Please enter a valid email."`
	Password        string `form:"password"        validate:"min=5,alphanum"   msg:"Please enter a password with only numbers and text and at least 5 characters."`
	ConfirmPassword string `form:"confirmPassword" validate:"eqfield=Password" msg:"Passwords have to match!"`
}

type LoginInput struct {
	Email    string `form:"email"    validate:"required,email"  msg:"Please enter a valid email address."`
	Password string `form:"password" validate:"min=5,alphanum"  msg:"Password has to be valid."`
}

type NewPasswordInput struct {
	Password string `form:"password"      validate:"min=5,alphanum" msg:"Please enter a password with only numbers and text and at least 5 characters."`
	UserID   string `form:"userId"        validate:"required,uuid"  msg:"Reset link is invalid or has expired."`
	Token    string `form:"passwordToken" validate:"required,hexadecimal" msg:"Reset link is invalid or has expired."`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) resetTTL() time.Duration {
	if s.ResetTTL <= 0 {
		return time.Hour
	}
	return s.ResetTTL
}

func check(in any) error {
	err := validation.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return invalid(verrs)
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	in.ConfirmPassword = strings.TrimSpace(in.ConfirmPassword)
	if err := check(&in); err != nil {
		return nil, err
	}

	if _, err := s.Repo.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, invalid(validation.Field("email", msgEmailTaken))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr("lookup email", err)
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("signup_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Email: in.Email, PasswordHash: pwHash}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid(validation.Field("email", msgEmailTaken))
		}
		return nil, storeErr("create user", err)
	}

	publish(ctx, s.Events, events.TopicUsers, user.ID.String(), map[string]any{
		"type":   "user_signed_up",
		"userID": user.ID.String(),
		"email":  user.Email,
	})
	l.Info("signup_success", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	if err := check(&in); err != nil {
		return nil, err
	}

	l := logging.FromContext(ctx).With("svc", "auth.login", "email", in.Email)

	user, err := s.Repo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "status", 422, "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr("lookup user", err)
	}

	if !hash.CheckPassword(user.PasswordHash, in.Password) {
		l.Warn("login_failed", "status", 422, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RequestReset issues a one-hour reset token. Delivery of the link is left to
// consumers of the password_reset_requested event.
func (s *AuthService) RequestReset(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", storeErr("reset lookup", err)
	}

	token, err := newResetToken()
	if err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}

	expiry := s.now().Add(s.resetTTL())
	if err := s.Repo.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return "", storeErr("store reset token", err)
	}

	publish(ctx, s.Events, events.TopicUsers, user.ID.String(), map[string]any{
		"type":      "password_reset_requested",
		"userID":    user.ID.String(),
		"email":     user.Email,
		"resetURL":  strings.TrimRight(s.BaseURL, "/") + "/reset/" + token,
		"expiresAt": expiry.Format(time.RFC3339),
	})
	return token, nil
}

// UserForReset returns the user a still valid token belongs to.
func (s *AuthService) UserForReset(ctx context.Context, token string) (*models.User, error) {
	user, err := s.Repo.GetUserByResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, storeErr("reset token lookup", err)
	}
	return user, nil
}

func (s *AuthService) NewPassword(ctx context.Context, in NewPasswordInput) error {
	in.Password = strings.TrimSpace(in.Password)
	if err := check(&in); err != nil {
		return err
	}

	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		return ErrInvalidResetToken
	}

	user, err := s.UserForReset(ctx, in.Token)
	if err != nil {
		return err
	}
	if user.ID != userID {
		return ErrInvalidResetToken
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Repo.UpdatePassword(ctx, user.ID, pwHash); err != nil {
		return storeErr("update password", err)
	}

	publish(ctx, s.Events, events.TopicUsers, user.ID.String(), map[string]any{
		"type":   "password_changed",
		"userID": user.ID.String(),
	})
	return nil
}
