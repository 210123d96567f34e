package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/middleware/auth"
	"github.com/Skotchmaster/shop/internal/middleware/csrf"
	"github.com/Skotchmaster/shop/internal/service"
	"github.com/Skotchmaster/shop/internal/validation"
)

const (
	flashError = "error"
	flashInfo  = "info"
)

// render fills the values every page expects and renders the named view.
func render(c echo.Context, code int, name string, data echo.Map) error {
	if data == nil {
		data = echo.Map{}
	}
	defaults := echo.Map{
		"pageTitle":        "Shop",
		"path":             "",
		"query":            "",
		"errorMessage":     "",
		"infoMessage":      "",
		"validationErrors": validation.Errors(nil),
	}
	for k, v := range defaults {
		if _, ok := data[k]; !ok {
			data[k] = v
		}
	}

	data["isAuthenticated"] = auth.IsAuthenticated(c)
	data["csrfToken"] = csrf.TokenFrom(c)

	if s := auth.SessionFrom(c); s != nil {
		if msg := s.FirstFlash(flashError); msg != "" && data["errorMessage"] == "" {
			data["errorMessage"] = msg
		}
		if msg := s.FirstFlash(flashInfo); msg != "" {
			data["infoMessage"] = msg
		}
	}

	return c.Render(code, name, data)
}

func flash(c echo.Context, key, msg string) {
	if s := auth.SessionFrom(c); s != nil {
		s.AddFlash(key, msg)
	}
}

// redirectWithFlash stores msg for the next page and redirects there.
func redirectWithFlash(c echo.Context, to, key, msg string) error {
	flash(c, key, msg)
	return c.Redirect(http.StatusFound, to)
}

// formErrors extracts the field errors of a validation failure.
func formErrors(err error) (validation.Errors, bool) {
	if !errors.Is(err, service.ErrValidation) {
		return nil, false
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, true
}

// ErrorHandler renders the 404 page for missing resources and the generic
// error page for everything else.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, service.ErrValidation):
		code = http.StatusUnprocessableEntity
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}

	var rerr error
	switch code {
	case http.StatusNotFound:
		rerr = render(c, code, "404", echo.Map{"pageTitle": "Page Not Found", "path": "/404"})
	case http.StatusForbidden:
		rerr = render(c, code, "error", echo.Map{
			"pageTitle": "Not Allowed",
			"path":      "/403",
			"heading":   "Not allowed!",
			"detail":    "You are not allowed to access this resource.",
		})
	default:
		rerr = render(c, code, "error", echo.Map{"pageTitle": "Error!", "path": "/500"})
	}
	if rerr != nil {
		logging.FromContext(c.Request().Context()).Error("error_page_failed", "status", code, "error", rerr)
		_ = c.String(code, http.StatusText(code))
	}
}
