package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/middleware/auth"
	"github.com/Skotchmaster/shop/internal/service"
	"github.com/Skotchmaster/shop/internal/session"
)

const (
	msgInvalidLogin = "Invalid email or password."
	msgNoAccount    = "No account with that email found."
	msgResetInvalid = "Reset link is invalid or has expired."
)

type AuthHTTP struct {
	Svc      *service.AuthService
	Sessions *session.Store
}

func (h *AuthHTTP) GetLogin(c echo.Context) error {
	return render(c, http.StatusOK, "auth/login", echo.Map{
		"pageTitle": "Login",
		"path":      "/login",
		"form":      service.LoginInput{},
	})
}

func (h *AuthHTTP) PostLogin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "login")

	var in service.LoginInput
	if err := c.Bind(&in); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return err
	}

	user, err := h.Svc.Login(ctx, in)
	if err != nil {
		verrs, ok := formErrors(err)
		if !ok {
			l.Error("login_error", "status", 500, "error", err)
			return err
		}
		data := echo.Map{
			"pageTitle":        "Login",
			"path":             "/login",
			"form":             service.LoginInput{Email: in.Email},
			"errorMessage":     msgInvalidLogin,
			"validationErrors": verrs,
		}
		if len(verrs) > 0 {
			data["errorMessage"] = verrs.First()
		}
		return render(c, http.StatusUnprocessableEntity, "auth/login", data)
	}

	s := auth.SessionFrom(c)
	h.Sessions.Renew(s)
	s.LogIn(user.ID)

	l.Info("login_success", "user_id", user.ID)
	return c.Redirect(http.StatusFound, "/")
}

func (h *AuthHTTP) GetSignup(c echo.Context) error {
	return render(c, http.StatusOK, "auth/signup", echo.Map{
		"pageTitle": "Signup",
		"path":      "/signup",
		"form":      service.SignupInput{},
	})
}

func (h *AuthHTTP) PostSignup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "signup")

	var in service.SignupInput
	if err := c.Bind(&in); err != nil {
		l.Warn("signup_error", "status", 400, "error", err)
		return err
	}

	if _, err := h.Svc.Signup(ctx, in); err != nil {
		verrs, ok := formErrors(err)
		if !ok {
			l.Error("signup_error", "status", 500, "error", err)
			return err
		}
		l.Warn("signup_error", "status", 422, "error", err)
		return render(c, http.StatusUnprocessableEntity, "auth/signup", echo.Map{
			"pageTitle":        "Signup",
			"path":             "/signup",
			"form":             service.SignupInput{Email: in.Email},
			"errorMessage":     verrs.First(),
			"validationErrors": verrs,
		})
	}
	return c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHTTP) PostLogout(c echo.Context) error {
	ctx := c.Request().Context()

	if s := auth.SessionFrom(c); s != nil {
		if err := h.Sessions.Destroy(ctx, c.Response(), s); err != nil {
			logging.FromContext(ctx).Error("logout_error", "status", 500, "error", err)
			return err
		}
	}
	return c.Redirect(http.StatusFound, "/")
}

func (h *AuthHTTP) GetReset(c echo.Context) error {
	return render(c, http.StatusOK, "auth/reset", echo.Map{
		"pageTitle": "Reset Password",
		"path":      "/reset",
	})
}

func (h *AuthHTTP) PostReset(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reset")

	if _, err := h.Svc.RequestReset(ctx, c.FormValue("email")); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("reset_error", "status", 404, "error", err)
			return redirectWithFlash(c, "/reset", flashError, msgNoAccount)
		}
		l.Error("reset_error", "status", 500, "error", err)
		return err
	}
	return redirectWithFlash(c, "/", flashInfo, "Check your email for a link to reset your password.")
}

func (h *AuthHTTP) GetNewPassword(c echo.Context) error {
	ctx := c.Request().Context()
	token := c.Param("token")

	user, err := h.Svc.UserForReset(ctx, token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidResetToken) {
			logging.FromContext(ctx).Warn("new_password_error", "status", 302, "error", err)
			return redirectWithFlash(c, "/reset", flashError, msgResetInvalid)
		}
		return err
	}

	return render(c, http.StatusOK, "auth/new-password", echo.Map{
		"pageTitle":     "New Password",
		"path":          "/new-password",
		"userId":        user.ID.String(),
		"passwordToken": token,
	})
}

func (h *AuthHTTP) PostNewPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "new.password")

	var in service.NewPasswordInput
	if err := c.Bind(&in); err != nil {
		l.Warn("new_password_error", "status", 400, "error", err)
		return err
	}

	if err := h.Svc.NewPassword(ctx, in); err != nil {
		verrs, ok := formErrors(err)
		switch {
		case errors.Is(err, service.ErrInvalidResetToken), ok && !verrs.Has("password"):
			l.Warn("new_password_error", "status", 302, "error", err)
			return redirectWithFlash(c, "/reset", flashError, msgResetInvalid)
		case ok:
			return render(c, http.StatusUnprocessableEntity, "auth/new-password", echo.Map{
				"pageTitle":        "New Password",
				"path":             "/new-password",
				"userId":           in.UserID,
				"passwordToken":    in.Token,
				"errorMessage":     verrs.First(),
				"validationErrors": verrs,
			})
		}
		l.Error("new_password_error", "status", 500, "error", err)
		return err
	}
	return redirectWithFlash(c, "/login", flashInfo, "Your password has been updated.")
}
