package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop/internal/models"
	"github.com/Skotchmaster/shop/internal/session"
)

const identityKey = "identity"

// UserFinder loads the user a logged-in session points at.
type UserFinder interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Identity is resolved once per request by Middleware.Attach. User is nil for
// anonymous requests.
type Identity struct {
	Session *session.Session
	User    *models.User
}

func setUserContext(c echo.Context, s *session.Session, u *models.User) {
	c.Set(identityKey, Identity{Session: s, User: u})
}

func FromContext(c echo.Context) Identity {
	id, _ := c.Get(identityKey).(Identity)
	return id
}

func SessionFrom(c echo.Context) *session.Session {
	return FromContext(c).Session
}

func UserFrom(c echo.Context) *models.User {
	return FromContext(c).User
}

func IsAuthenticated(c echo.Context) bool {
	return UserFrom(c) != nil
}
