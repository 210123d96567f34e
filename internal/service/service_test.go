package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop/internal/events"
	"github.com/Skotchmaster/shop/internal/images"
	"github.com/Skotchmaster/shop/internal/models"
	"github.com/Skotchmaster/shop/internal/payment"
	"github.com/Skotchmaster/shop/internal/repo"
	"github.com/Skotchmaster/shop/internal/testutil"
)

type fakeGateway struct {
	mu      sync.Mutex
	err     error
	charges []payment.Charge
}

func (g *fakeGateway) Charge(_ context.Context, ch payment.Charge) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, ch)
	if g.err != nil {
		return "", g.err
	}
	return "ch_" + ch.OrderID, nil
}

type fakeRenderer struct {
	calls int
}

func (r *fakeRenderer) Render(order *models.Order, w io.Writer) error {
	r.calls++
	_, err := io.WriteString(w, "invoice "+order.ID.String())
	return err
}

type fakeSearcher struct {
	err  error
	docs map[uuid.UUID]models.Product
	hits []uuid.UUID
}

func (f *fakeSearcher) Put(_ context.Context, p models.Product) error {
	if f.docs == nil {
		f.docs = map[uuid.UUID]models.Product{}
	}
	f.docs[p.ID] = p
	return nil
}

func (f *fakeSearcher) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _, _ int) (int64, []uuid.UUID, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	return int64(len(f.hits)), f.hits, nil
}

type fixture struct {
	repo     *repo.GormRepo
	events   *events.Memory
	gateway  *fakeGateway
	renderer *fakeRenderer
	search   *fakeSearcher
	images   *images.DiskStore
	catalog  *CatalogService
	shop     *ShopService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:     &repo.GormRepo{DB: testutil.NewDB(t)},
		events:   &events.Memory{},
		gateway:  &fakeGateway{},
		renderer: &fakeRenderer{},
		search:   &fakeSearcher{},
		images:   &images.DiskStore{Dir: t.TempDir(), URLPrefix: "/images"},
	}
	f.catalog = &CatalogService{Repo: f.repo, Images: f.images, Search: f.search, Events: f.events, PerPage: 2}
	f.shop = &ShopService{Repo: f.repo, Payments: f.gateway, Invoices: f.renderer, Events: f.events}
	f.auth = &AuthService{Repo: f.repo, Events: f.events, BaseURL: "http://localhost:3000"}
	return f
}

func (f *fixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "hash"}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) product(t *testing.T, owner uuid.UUID, title, price string) *models.Product {
	t.Helper()
	p := &models.Product{
		Title:       title,
		Price:       decimal.RequireFromString(price),
		Description: "a product for tests",
		ImageURL:    "/images/test.png",
		UserID:      owner,
	}
	require.NoError(t, f.repo.CreateProduct(context.Background(), p))
	return p
}

// reload reads the user back so cart assertions see what was persisted.
func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	u, err := f.repo.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func pngUpload(name string) *images.Upload {
	body := []byte("\x89PNG\r\n\x1a\n")
	return &images.Upload{Filename: name, ContentType: "image/png", Size: int64(len(body)), Body: bytes.NewReader(body)}
}
