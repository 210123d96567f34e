package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shop/internal/events"
	"github.com/Skotchmaster/shop/internal/images"
	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/models"
	"github.com/Skotchmaster/shop/internal/repo"
	"github.com/Skotchmaster/shop/internal/util"
	"github.com/Skotchmaster/shop/internal/validation"
)

const msgNotImage = "Attached file is not an image."

// Searcher is the product search index kept in sync with admin writes.
type Searcher interface {
	Put(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, from, size int) (int64, []uuid.UUID, error)
}

type CatalogService struct {
	Repo    *repo.GormRepo
	Images  images.Store
	Search  Searcher
	Events  events.Publisher
	PerPage int
}

type ProductInput struct {
	Title       string `form:"title"       validate:"min=3"         msg:"Title must be at least 3 characters long."`
	Price       string `form:"price"       validate:"required,numeric" msg:"Price must be a valid number."`
	Description string `form:"description" validate:"min=5,max=400" msg:"Description must be between 5 and 400 characters."`
}

func (in *ProductInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Price = strings.TrimSpace(in.Price)
	in.Description = strings.TrimSpace(in.Description)
}

// parse validates the form and returns the price it carries.
func (in *ProductInput) parse() (decimal.Decimal, validation.Errors) {
	in.normalize()

	var verrs validation.Errors
	if err := validation.Struct(in); err != nil {
		if !errors.As(err, &verrs) {
			verrs = validation.Field("form", err.Error())
		}
	}
	if verrs.Has("price") {
		return decimal.Zero, verrs
	}

	price, err := decimal.NewFromString(in.Price)
	if err != nil || price.IsNegative() {
		verrs = append(verrs, validation.FieldError{Field: "price", Message: "Price must be a valid number."})
		return decimal.Zero, verrs
	}
	return price.Round(2), verrs
}

func invalid(verrs validation.Errors) error {
	return fmt.Errorf("%w: %w", ErrValidation, verrs)
}

type ProductPage struct {
	Products []models.Product
	Page     util.Page
	Query    string
}

func (s *CatalogService) perPage() int {
	if s.PerPage <= 0 {
		return 2
	}
	return s.PerPage
}

func (s *CatalogService) ListProducts(ctx context.Context, page int) (*ProductPage, error) {
	offset, limit := util.Calculate(page, s.perPage())
	total, items, err := s.Repo.GetProducts(ctx, offset, limit)
	if err != nil {
		return nil, storeErr("list products", err)
	}
	return &ProductPage{Products: items, Page: util.NewPage(page, limit, total)}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, storeErr("get product", err)
	}
	return p, nil
}

// SearchProducts queries the search index, falling back to the database when
// no index is configured or the index is unavailable.
func (s *CatalogService) SearchProducts(ctx context.Context, query string, page int) (*ProductPage, error) {
	query = strings.TrimSpace(query)
	offset, limit := util.Calculate(page, s.perPage())
	if query == "" {
		return &ProductPage{Page: util.NewPage(page, limit, 0)}, nil
	}

	if s.Search != nil {
		total, ids, err := s.Search.Search(ctx, query, offset, limit)
		if err == nil {
			found, err := s.Repo.ProductsByIDs(ctx, ids)
			if err != nil {
				return nil, storeErr("load search hits", err)
			}
			items := make([]models.Product, 0, len(ids))
			for _, id := range ids {
				if p, ok := found[id]; ok {
					items = append(items, p)
				}
			}
			return &ProductPage{Products: items, Page: util.NewPage(page, limit, total), Query: query}, nil
		}
		logging.FromContext(ctx).Warn("search_index_failed", "reason", "falling back to database", "error", err)
	}

	total, items, err := s.Repo.SearchProducts(ctx, query, offset, limit)
	if err != nil {
		return nil, storeErr("search products", err)
	}
	return &ProductPage{Products: items, Page: util.NewPage(page, limit, total), Query: query}, nil
}

func (s *CatalogService) OwnerProducts(ctx context.Context, owner uuid.UUID) ([]models.Product, error) {
	items, err := s.Repo.ProductsByOwner(ctx, owner)
	if err != nil {
		return nil, storeErr("owner products", err)
	}
	return items, nil
}

// ProductForEdit returns the product if owner may edit it.
func (s *CatalogService) ProductForEdit(ctx context.Context, owner, id uuid.UUID) (*models.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != owner {
		return nil, fmt.Errorf("edit product %s: %w", id, ErrUnauthorized)
	}
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, owner uuid.UUID, in ProductInput, img *images.Upload) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.create_product")

	price, verrs := in.parse()
	if img == nil || !images.Allowed(img.ContentType) {
		verrs = append(validation.Field("image", msgNotImage), verrs...)
	}
	if len(verrs) > 0 {
		return nil, invalid(verrs)
	}

	url, err := s.Images.Save(ctx, *img)
	if err != nil {
		if errors.Is(err, images.ErrNotImage) {
			return nil, invalid(validation.Field("image", msgNotImage))
		}
		return nil, fmt.Errorf("save image: %w: %w", ErrPersistence, err)
	}

	p := &models.Product{
		Title:       in.Title,
		Price:       price,
		Description: in.Description,
		ImageURL:    url,
		UserID:      owner,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		if derr := s.Images.Delete(ctx, url); derr != nil {
			l.Warn("image_cleanup_failed", "url", url, "error", derr)
		}
		return nil, storeErr("create product", err)
	}

	s.index(ctx, *p)
	publish(ctx, s.Events, events.TopicProducts, p.ID.String(), map[string]any{
		"type":      "product_created",
		"productID": p.ID.String(),
		"title":     p.Title,
		"price":     p.Price.StringFixed(2),
	})
	l.Info("create_product_success", "product_id", p.ID)
	return p, nil
}

// UpdateProduct edits the owner's product. img is optional; a new image
// replaces and removes the old one.
func (s *CatalogService) UpdateProduct(ctx context.Context, owner, id uuid.UUID, in ProductInput, img *images.Upload) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.update_product")

	price, verrs := in.parse()
	if img != nil && !images.Allowed(img.ContentType) {
		verrs = append(validation.Field("image", msgNotImage), verrs...)
	}
	if len(verrs) > 0 {
		return nil, invalid(verrs)
	}

	p, err := s.ProductForEdit(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	oldImage := ""
	if img != nil {
		url, err := s.Images.Save(ctx, *img)
		if err != nil {
			return nil, fmt.Errorf("save image: %w: %w", ErrPersistence, err)
		}
		oldImage, p.ImageURL = p.ImageURL, url
	}

	p.Title = in.Title
	p.Price = price
	p.Description = in.Description
	if err := s.Repo.SaveProduct(ctx, p); err != nil {
		if oldImage != "" {
			if derr := s.Images.Delete(ctx, p.ImageURL); derr != nil {
				l.Warn("image_cleanup_failed", "url", p.ImageURL, "error", derr)
			}
		}
		return nil, storeErr("update product", err)
	}

	if oldImage != "" {
		if err := s.Images.Delete(ctx, oldImage); err != nil {
			l.Warn("image_cleanup_failed", "url", oldImage, "error", err)
		}
	}

	s.index(ctx, *p)
	publish(ctx, s.Events, events.TopicProducts, p.ID.String(), map[string]any{
		"type":      "product_updated",
		"productID": p.ID.String(),
		"title":     p.Title,
		"price":     p.Price.StringFixed(2),
	})
	l.Info("update_product_success", "product_id", p.ID)
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, owner, id uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "catalog.delete_product")

	p, err := s.ProductForEdit(ctx, owner, id)
	if err != nil {
		return err
	}

	if err := s.Repo.DeleteProduct(ctx, id, owner); err != nil {
		return storeErr("delete product", err)
	}

	if err := s.Images.Delete(ctx, p.ImageURL); err != nil {
		l.Warn("image_cleanup_failed", "url", p.ImageURL, "error", err)
	}
	if s.Search != nil {
		if err := s.Search.Delete(ctx, id); err != nil {
			l.Warn("search_delete_failed", "product_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, events.TopicProducts, id.String(), map[string]any{
		"type":      "product_deleted",
		"productID": id.String(),
	})
	l.Info("delete_product_success", "product_id", id)
	return nil
}

func (s *CatalogService) index(ctx context.Context, p models.Product) {
	if s.Search == nil {
		return
	}
	if err := s.Search.Put(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "product_id", p.ID, "error", err)
	}
}
