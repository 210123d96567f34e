package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shop/internal/invoice"
	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/middleware/auth"
	"github.com/Skotchmaster/shop/internal/models"
	"github.com/Skotchmaster/shop/internal/service"
	"github.com/Skotchmaster/shop/internal/util"
)

type ShopHTTP struct {
	Catalog   *service.CatalogService
	Svc       *service.ShopService
	StripeKey string
}

func pageParam(c echo.Context) int {
	return util.ParseIntDefault(c.QueryParam("page"), 1)
}

func idParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "unknown id")
	}
	return id, nil
}

func (h *ShopHTTP) GetIndex(c echo.Context) error {
	return h.listProducts(c, "shop/index", "Shop", "/")
}

func (h *ShopHTTP) GetProducts(c echo.Context) error {
	return h.listProducts(c, "shop/product-list", "Products", "/products")
}

func (h *ShopHTTP) listProducts(c echo.Context, view, title, path string) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.products")

	page, err := h.Catalog.ListProducts(ctx, pageParam(c))
	if err != nil {
		l.Error("list_products_error", "status", 500, "error", err)
		return err
	}

	return render(c, http.StatusOK, view, echo.Map{
		"pageTitle": title,
		"path":      path,
		"prods":     page.Products,
		"page":      page.Page,
	})
}

func (h *ShopHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search.products")

	page, err := h.Catalog.SearchProducts(ctx, c.QueryParam("q"), pageParam(c))
	if err != nil {
		l.Error("search_products_error", "status", 500, "error", err)
		return err
	}

	return render(c, http.StatusOK, "shop/product-list", echo.Map{
		"pageTitle": "Search",
		"path":      "/products",
		"prods":     page.Products,
		"page":      page.Page,
		"query":     page.Query,
	})
}

func (h *ShopHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.product")

	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	p, err := h.Catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("get_product_error", "status", 404, "product_id", id)
		}
		return err
	}

	return render(c, http.StatusOK, "shop/product-detail", echo.Map{
		"pageTitle": p.Title,
		"path":      "/products",
		"product":   p,
	})
}

func (h *ShopHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.UserFrom(c)

	view, err := h.Svc.Cart(ctx, user)
	if err != nil {
		logging.FromContext(ctx).Error("get_cart_error", "status", 500, "error", err)
		return err
	}

	return render(c, http.StatusOK, "shop/cart", echo.Map{
		"pageTitle": "Your Cart",
		"path":      "/cart",
		"cart":      view,
	})
}

func (h *ShopHTTP) PostCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart")

	productID, err := uuid.Parse(c.FormValue("productId"))
	if err != nil {
		l.Warn("add_to_cart_error", "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "unknown product")
	}

	if err := h.Svc.AddToCart(ctx, auth.UserFrom(c), productID); err != nil {
		l.Warn("add_to_cart_error", "product_id", productID, "error", err)
		return err
	}
	return c.Redirect(http.StatusFound, "/cart")
}

func (h *ShopHTTP) PostCartDeleteItem(c echo.Context) error {
	ctx := c.Request().Context()

	productID, err := uuid.Parse(c.FormValue("productId"))
	if err != nil {
		return c.Redirect(http.StatusFound, "/cart")
	}

	if err := h.Svc.RemoveFromCart(ctx, auth.UserFrom(c), productID); err != nil {
		logging.FromContext(ctx).Error("delete_from_cart_error", "status", 500, "error", err)
		return err
	}
	return c.Redirect(http.StatusFound, "/cart")
}

func (h *ShopHTTP) GetCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	view, err := h.Svc.Cart(ctx, auth.UserFrom(c))
	if err != nil {
		logging.FromContext(ctx).Error("get_checkout_error", "status", 500, "error", err)
		return err
	}
	if len(view.Lines) == 0 {
		return redirectWithFlash(c, "/cart", flashError, "Your cart is empty.")
	}

	return render(c, http.StatusOK, "shop/checkout", echo.Map{
		"pageTitle":   "Checkout",
		"path":        "/checkout",
		"cart":        view,
		"stripeKey":   h.StripeKey,
		"amountMinor": view.Total.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
	})
}

func (h *ShopHTTP) PostOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create.order")

	_, err := h.Svc.Checkout(ctx, auth.UserFrom(c), c.FormValue("stripeToken"))
	if err != nil {
		if errors.Is(err, service.ErrEmptyCart) {
			l.Warn("create_order_error", "status", 302, "error", err)
			return redirectWithFlash(c, "/cart", flashError, "Your cart is empty.")
		}
		l.Error("create_order_error", "status", 500, "error", err)
		return err
	}
	return c.Redirect(http.StatusFound, "/orders")
}

func (h *ShopHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.Svc.Orders(ctx, auth.UserFrom(c).ID)
	if err != nil {
		logging.FromContext(ctx).Error("get_orders_error", "status", 500, "error", err)
		return err
	}

	return render(c, http.StatusOK, "shop/orders", echo.Map{
		"pageTitle": "Your Orders",
		"path":      "/orders",
		"orders":    orders,
	})
}

func (h *ShopHTTP) GetInvoice(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.invoice")

	orderID, err := idParam(c, "id")
	if err != nil {
		return err
	}

	w := &inlinePDF{res: c.Response(), name: invoice.FileName(&models.Order{ID: orderID})}
	if err := h.Svc.Invoice(ctx, orderID, auth.UserFrom(c).ID, w); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			l.Warn("get_invoice_error", "status", 404, "order_id", orderID)
		case errors.Is(err, service.ErrUnauthorized):
			l.Warn("get_invoice_error", "status", 403, "order_id", orderID)
		default:
			l.Error("get_invoice_error", "status", 500, "order_id", orderID, "error", err)
		}
		return err
	}
	return nil
}

// inlinePDF sends the PDF headers with the first byte, so a failure before
// rendering starts can still produce an error page.
type inlinePDF struct {
	res     *echo.Response
	name    string
	started bool
}

func (w *inlinePDF) Write(p []byte) (int, error) {
	if !w.started {
		h := w.res.Header()
		h.Set(echo.HeaderContentType, "application/pdf")
		h.Set(echo.HeaderContentDisposition, `inline; filename="`+w.name+`"`)
		w.res.WriteHeader(http.StatusOK)
		w.started = true
	}
	return w.res.Write(p)
}
