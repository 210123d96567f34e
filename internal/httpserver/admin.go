package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shop/internal/images"
	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/middleware/auth"
	"github.com/Skotchmaster/shop/internal/service"
)

type AdminHTTP struct {
	Svc *service.CatalogService
}

// upload opens the optional "image" part of a multipart form. The caller
// closes the returned closer once the upload has been stored.
func upload(c echo.Context) (*images.Upload, io.Closer, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, io.NopCloser(nil), nil
		}
		return nil, nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &images.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

func (h *AdminHTTP) renderForm(c echo.Context, code int, editing bool, productID uuid.UUID, in service.ProductInput, err error) error {
	data := echo.Map{
		"pageTitle": "Add Product",
		"path":      "/admin/add-product",
		"editing":   editing,
		"form":      in,
	}
	if editing {
		data["pageTitle"] = "Edit Product"
		data["path"] = "/admin/edit-product"
		data["productId"] = productID
	}
	if verrs, ok := formErrors(err); ok {
		data["errorMessage"] = verrs.First()
		data["validationErrors"] = verrs
	}
	return render(c, code, "admin/edit-product", data)
}

func (h *AdminHTTP) GetAddProduct(c echo.Context) error {
	return h.renderForm(c, http.StatusOK, false, uuid.Nil, service.ProductInput{}, nil)
}

func (h *AdminHTTP) PostAddProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.product")

	var in service.ProductInput
	if err := c.Bind(&in); err != nil {
		l.Warn("add_product_error", "status", 400, "error", err)
		return err
	}

	img, closer, err := upload(c)
	if err != nil {
		l.Warn("add_product_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload")
	}
	defer closer.Close()

	if _, err := h.Svc.CreateProduct(ctx, auth.UserFrom(c).ID, in, img); err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("add_product_error", "status", 422, "error", err)
			return h.renderForm(c, http.StatusUnprocessableEntity, false, uuid.Nil, in, err)
		}
		l.Error("add_product_error", "status", 500, "error", err)
		return err
	}
	return c.Redirect(http.StatusFound, "/admin/products")
}

func (h *AdminHTTP) GetEditProduct(c echo.Context) error {
	ctx := c.Request().Context()

	if c.QueryParam("edit") != "true" {
		return c.Redirect(http.StatusFound, "/")
	}

	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	p, err := h.Svc.ProductForEdit(ctx, auth.UserFrom(c).ID, id)
	if err != nil {
		logging.FromContext(ctx).Warn("edit_product_error", "product_id", id, "error", err)
		return err
	}

	in := service.ProductInput{Title: p.Title, Price: p.Price.StringFixed(2), Description: p.Description}
	return h.renderForm(c, http.StatusOK, true, p.ID, in, nil)
}

func (h *AdminHTTP) PostEditProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "edit.product")

	id, err := uuid.Parse(c.FormValue("productId"))
	if err != nil {
		l.Warn("edit_product_error", "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "unknown product")
	}

	var in service.ProductInput
	if err := c.Bind(&in); err != nil {
		l.Warn("edit_product_error", "status", 400, "error", err)
		return err
	}

	img, closer, err := upload(c)
	if err != nil {
		l.Warn("edit_product_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload")
	}
	defer closer.Close()

	if _, err := h.Svc.UpdateProduct(ctx, auth.UserFrom(c).ID, id, in, img); err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("edit_product_error", "status", 422, "error", err)
			return h.renderForm(c, http.StatusUnprocessableEntity, true, id, in, err)
		}
		l.Warn("edit_product_error", "product_id", id, "error", err)
		return err
	}
	return c.Redirect(http.StatusFound, "/admin/products")
}

func (h *AdminHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()

	items, err := h.Svc.OwnerProducts(ctx, auth.UserFrom(c).ID)
	if err != nil {
		logging.FromContext(ctx).Error("admin_products_error", "status", 500, "error", err)
		return err
	}

	return render(c, http.StatusOK, "admin/products", echo.Map{
		"pageTitle": "Admin Products",
		"path":      "/admin/products",
		"prods":     items,
	})
}

// DeleteProduct answers the admin page's fetch call with JSON.
func (h *AdminHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete.product")

	id, err := uuid.Parse(c.Param("id"))
	if err == nil {
		err = h.Svc.DeleteProduct(ctx, auth.UserFrom(c).ID, id)
	}
	if err != nil {
		l.Warn("delete_product_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Deleting product failed."})
	}

	l.Info("product deleted", "product_id", id)
	return c.JSON(http.StatusOK, echo.Map{"message": "Success!"})
}
