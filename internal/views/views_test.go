package views

import (
	"bytes"
	"io/fs"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop/internal/validation"
)

func TestNewRenderer_ParsesEveryPage(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	for _, name := range []string{
		"404", "error",
		"shop/index", "shop/product-list", "shop/product-detail", "shop/cart", "shop/checkout", "shop/orders",
		"admin/edit-product", "admin/products",
		"auth/login", "auth/signup", "auth/reset", "auth/new-password",
	} {
		assert.Contains(t, r.pages, name)
	}
}

func TestRender_UnknownView(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	err = r.Render(&bytes.Buffer{}, "missing", nil, nil)
	assert.Error(t, err)
}

func TestRender_Layout(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = r.Render(&buf, "auth/reset", map[string]any{
		"pageTitle":       "Reset Password",
		"path":            "/reset",
		"query":           "",
		"errorMessage":    "No account with that email found.",
		"infoMessage":     "",
		"isAuthenticated": false,
		"csrfToken":       "tok123",
	}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<title>Reset Password</title>")
	assert.Contains(t, out, "No account with that email found.")
	assert.Contains(t, out, `value="tok123"`)
	assert.Contains(t, out, `href="/login"`)
	assert.Contains(t, out, `id="side-menu-toggle"`)
	assert.Contains(t, out, `class="mobile-nav__item"`)
	assert.Contains(t, out, `src="/public/js/main.js"`)
}

func TestFuncs(t *testing.T) {
	money := funcs["money"].(func(decimal.Decimal) string)
	assert.Equal(t, "12.50", money(decimal.RequireFromString("12.5")))

	invalid := funcs["fieldInvalid"].(func(validation.Errors, string) bool)
	assert.True(t, invalid(validation.Field("title", "x"), "title"))
	assert.False(t, invalid(nil, "title"))

	m, err := dict("a", 1, "b", "two")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m)

	_, err = dict("odd")
	assert.Error(t, err)
}

func TestPublic(t *testing.T) {
	_, err := fs.Stat(Public(), "js/admin.js")
	require.NoError(t, err)
	_, err = fs.Stat(Public(), "js/main.js")
	require.NoError(t, err)
	_, err = fs.Stat(Public(), "css/main.css")
	require.NoError(t, err)
}
