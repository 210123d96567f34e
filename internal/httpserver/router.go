package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/middleware/auth"
	"github.com/Skotchmaster/shop/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/shop/internal/middleware/logging"
	"github.com/Skotchmaster/shop/internal/repo"
	"github.com/Skotchmaster/shop/internal/session"
	"github.com/Skotchmaster/shop/internal/views"
)

type Deps struct {
	Logger   *slog.Logger
	Repo     *repo.GormRepo
	Redis    *redis.Client
	Sessions *session.Store
	Renderer echo.Renderer

	ShopHandler  *ShopHTTP
	AdminHandler *AdminHTTP
	AuthHandler  *AuthHTTP

	// ImageDir is served under /images when product images live on disk.
	ImageDir     string
	CookieSecure bool
}

// New builds the echo instance with the middleware chain and all routes.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = d.Renderer
	e.HTTPErrorHandler = ErrorHandler

	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	attach := auth.NewMiddleware(d.Sessions, d.Repo)
	attach.Skipper = sessionless

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(logger),
		middleware.Secure(),
		middleware.Gzip(),
		middleware.BodyLimit("10M"),
		csrf.Middleware(csrf.Config{
			Secure:    d.CookieSecure,
			SkipPaths: []string{"/create-order", "/health/live", "/health/ready"},
		}),
		attach.Attach,
	)

	Register(e, d)
	return e
}

// sessionless covers probes and static assets, which must answer even when Redis is down.
func sessionless(c echo.Context) bool {
	p := c.Request().URL.Path
	return strings.HasPrefix(p, "/health/") || strings.HasPrefix(p, "/public/") || strings.HasPrefix(p, "/images/")
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)

	e.StaticFS("/public", views.Public())
	if d.ImageDir != "" {
		e.Static("/images", d.ImageDir)
	}

	requireLogin := auth.NewMiddleware(d.Sessions, d.Repo).RequireLogin

	shop := d.ShopHandler
	e.GET("/", shop.GetIndex)
	e.GET("/products", shop.GetProducts)
	e.GET("/products/search", shop.SearchProducts)
	e.GET("/products/:id", shop.GetProduct)
	e.GET("/cart", shop.GetCart, requireLogin)
	e.POST("/cart", shop.PostCart, requireLogin)
	e.POST("/cart-delete-item", shop.PostCartDeleteItem, requireLogin)
	e.GET("/checkout", shop.GetCheckout, requireLogin)
	e.POST("/create-order", shop.PostOrder, requireLogin)
	e.GET("/orders", shop.GetOrders, requireLogin)
	e.GET("/orders/:id", shop.GetInvoice, requireLogin)

	admin := e.Group("/admin", requireLogin)
	admin.GET("/add-product", d.AdminHandler.GetAddProduct)
	admin.POST("/add-product", d.AdminHandler.PostAddProduct)
	admin.GET("/products", d.AdminHandler.GetProducts)
	admin.GET("/edit-product/:id", d.AdminHandler.GetEditProduct)
	admin.POST("/edit-product", d.AdminHandler.PostEditProduct)
	admin.DELETE("/product/:id", d.AdminHandler.DeleteProduct)

	a := d.AuthHandler
	e.GET("/login", a.GetLogin)
	e.POST("/login", a.PostLogin)
	e.GET("/signup", a.GetSignup)
	e.POST("/signup", a.PostSignup)
	e.POST("/logout", a.PostLogout)
	e.GET("/reset", a.GetReset)
	e.POST("/reset", a.PostReset)
	e.GET("/reset/:token", a.GetNewPassword)
	e.POST("/new-password", a.PostNewPassword)

	e.GET("/500", func(c echo.Context) error {
		return render(c, http.StatusInternalServerError, "error", echo.Map{"pageTitle": "Error!", "path": "/500"})
	})
}

func (d *Deps) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	l := logging.FromContext(ctx)
	if err := d.Repo.Ping(ctx); err != nil {
		l.Error("readiness_failed", "component", "postgres", "error", err)
		return c.NoContent(http.StatusServiceUnavailable)
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			l.Error("readiness_failed", "component", "redis", "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
	}
	return c.NoContent(http.StatusOK)
}
