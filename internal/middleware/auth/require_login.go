package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/session"
)

const LoginPath = "/login"

type Middleware struct {
	Store *session.Store
	Users UserFinder

	// Skipper marks requests that are served without a session.
	Skipper middleware.Skipper
}

func NewMiddleware(store *session.Store, users UserFinder) *Middleware {
	return &Middleware{Store: store, Users: users}
}

// Attach loads the session on every request and, when it is logged in, the
// user it belongs to. A session whose user no longer exists is logged out.
// Modified sessions are saved just before the response header is written.
func (m *Middleware) Attach(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Skipper != nil && m.Skipper(c) {
			return next(c)
		}
		ctx := c.Request().Context()

		s, err := m.Store.Load(ctx, c.Request())
		if err != nil {
			return fmt.Errorf("attach session: %w", err)
		}

		res := c.Response()
		res.Before(func() {
			if !s.Dirty() {
				return
			}
			if err := m.Store.Save(ctx, res, s); err != nil {
				logging.FromContext(ctx).Error("session_save_failed", "error", err)
			}
		})

		if !s.Values.IsLoggedIn {
			setUserContext(c, s, nil)
			return next(c)
		}

		user, err := m.Users.GetUser(ctx, s.Values.UserID)
		switch {
		case err == nil:
			l := logging.FromContext(ctx).With("user_id", user.ID)
			c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))
			setUserContext(c, s, user)
		case errors.Is(err, gorm.ErrRecordNotFound):
			logging.FromContext(ctx).Warn("session_user_missing", "user_id", s.Values.UserID)
			s.LogOut()
			setUserContext(c, s, nil)
		default:
			return fmt.Errorf("attach user: %w", err)
		}
		return next(c)
	}
}

// RequireLogin redirects anonymous requests to the login page.
func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if UserFrom(c) == nil {
			return c.Redirect(http.StatusFound, LoginPath)
		}
		return next(c)
	}
}
