package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shop/internal/events"
	"github.com/Skotchmaster/shop/internal/models"
	"github.com/Skotchmaster/shop/internal/payment"
)

func TestAddToCart_TwiceIncrementsQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@test.com")
	p := f.product(t, u.ID, "Book", "10.00")

	require.NoError(t, f.shop.AddToCart(ctx, u, p.ID))
	require.NoError(t, f.shop.AddToCart(ctx, u, p.ID))

	stored := f.reload(t, u.ID)
	require.Equal(t, 1, stored.Cart.Len())
	assert.Equal(t, 2, stored.Cart.Quantity(p.ID))

	msg, ok := f.events.Last(events.TopicCart)
	require.True(t, ok)
	assert.Equal(t, "cart_item_added", msg.Event["type"])
	assert.EqualValues(t, 2, msg.Event["quantity"])
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "buyer@test.com")

	err := f.shop.AddToCart(context.Background(), u, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, f.reload(t, u.ID).Cart.IsEmpty())
}

func TestRemoveFromCart_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@test.com")
	keep := f.product(t, u.ID, "Keep", "1.00")
	drop := f.product(t, u.ID, "Drop", "2.00")

	require.NoError(t, f.shop.AddToCart(ctx, u, keep.ID))
	require.NoError(t, f.shop.AddToCart(ctx, u, drop.ID))

	require.NoError(t, f.shop.RemoveFromCart(ctx, u, drop.ID))
	require.NoError(t, f.shop.RemoveFromCart(ctx, u, drop.ID))
	require.NoError(t, f.shop.RemoveFromCart(ctx, u, uuid.New()))

	stored := f.reload(t, u.ID)
	assert.Equal(t, []uuid.UUID{keep.ID}, stored.Cart.ProductIDs())
	assert.Len(t, f.events.Messages(events.TopicCart), 3)
}

func TestCart_SkipsDeletedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@test.com")
	a := f.product(t, u.ID, "A", "10.00")
	b := f.product(t, u.ID, "B", "5.00")

	require.NoError(t, f.shop.AddToCart(ctx, u, a.ID))
	require.NoError(t, f.shop.AddToCart(ctx, u, b.ID))
	require.NoError(t, f.repo.DeleteProduct(ctx, b.ID, u.ID))

	view, err := f.shop.Cart(ctx, u)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, a.ID, view.Lines[0].Product.ID)
	assert.True(t, decimal.NewFromInt(10).Equal(view.Total))
}

func TestCheckout_CreatesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@test.com")
	a := f.product(t, u.ID, "A", "10.00")
	b := f.product(t, u.ID, "B", "5.00")

	require.NoError(t, f.shop.AddToCart(ctx, u, a.ID))
	require.NoError(t, f.shop.AddToCart(ctx, u, a.ID))
	require.NoError(t, f.shop.AddToCart(ctx, u, b.ID))

	order, err := f.shop.Checkout(ctx, u, "tok_visa")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(order.Total()))
	assert.Equal(t, u.Email, order.User.Email)
	assert.Equal(t, u.ID, order.User.UserID)

	require.Len(t, f.gateway.charges, 1)
	ch := f.gateway.charges[0]
	assert.EqualValues(t, 2500, ch.AmountMinor)
	assert.Equal(t, "usd", ch.Currency)
	assert.Equal(t, "Demo Order", ch.Description)
	assert.Equal(t, "tok_visa", ch.Token)
	assert.Equal(t, order.ID.String(), ch.OrderID)

	assert.True(t, u.Cart.IsEmpty())
	assert.True(t, f.reload(t, u.ID).Cart.IsEmpty())

	orders, err := f.shop.Orders(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	require.Len(t, orders[0].Items, 2)

	msg, ok := f.events.Last(events.TopicOrders)
	require.True(t, ok)
	assert.Equal(t, "order_created", msg.Event["type"])
	assert.Equal(t, "25.00", msg.Event["total"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "buyer@test.com")

	_, err := f.shop.Checkout(context.Background(), u, "tok_visa")
	require.ErrorIs(t, err, ErrEmptyCart)
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.gateway.charges)
}

func TestCheckout_FailedChargeKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@test.com")
	p := f.product(t, u.ID, "A", "10.00")
	require.NoError(t, f.shop.AddToCart(ctx, u, p.ID))

	f.gateway.err = payment.ErrDeclined

	_, err := f.shop.Checkout(ctx, u, "tok_chargeDeclined")
	require.ErrorIs(t, err, ErrPayment)
	require.ErrorIs(t, err, payment.ErrDeclined)

	assert.Equal(t, 1, f.reload(t, u.ID).Cart.Quantity(p.ID))
	orders, err := f.shop.Orders(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	_, ok := f.events.Last(events.TopicOrders)
	assert.False(t, ok)
}

func TestCheckout_SnapshotSurvivesPriceEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@test.com")
	p := f.product(t, u.ID, "Lamp", "10.00")
	require.NoError(t, f.shop.AddToCart(ctx, u, p.ID))

	order, err := f.shop.Checkout(ctx, u, "tok_visa")
	require.NoError(t, err)

	p.Price = decimal.RequireFromString("99.00")
	p.Title = "Renamed"
	require.NoError(t, f.repo.SaveProduct(ctx, p))

	stored, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Lamp", stored.Items[0].Product.Title)
	assert.True(t, decimal.NewFromInt(10).Equal(stored.Total()))
}

func TestCheckout_UsesCurrentPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "buyer@test.com")
	a := f.product(t, u.ID, "A", "10.00")
	b := f.product(t, u.ID, "B", "5.00")

	require.NoError(t, f.shop.AddToCart(ctx, u, a.ID))
	require.NoError(t, f.shop.AddToCart(ctx, u, a.ID))
	require.NoError(t, f.shop.AddToCart(ctx, u, b.ID))

	a.Price = decimal.RequireFromString("12.00")
	require.NoError(t, f.repo.SaveProduct(ctx, a))

	order, err := f.shop.Checkout(ctx, u, "tok_visa")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(29).Equal(order.Total()))

	require.Len(t, f.gateway.charges, 1)
	assert.EqualValues(t, 2900, f.gateway.charges[0].AmountMinor)

	stored, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	for _, li := range stored.Items {
		if li.Product.ID == a.ID {
			assert.Equal(t, 2, li.Quantity)
			assert.True(t, decimal.RequireFromString("12.00").Equal(li.Product.Price))
		}
	}
}

func TestInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@test.com")
	other := f.user(t, "other@test.com")
	p := f.product(t, owner.ID, "A", "3.00")
	require.NoError(t, f.shop.AddToCart(ctx, owner, p.ID))
	order, err := f.shop.Checkout(ctx, owner, "tok_visa")
	require.NoError(t, err)

	tests := []struct {
		name    string
		orderID uuid.UUID
		userID  uuid.UUID
		wantErr error
	}{
		{name: "owner", orderID: order.ID, userID: owner.ID},
		{name: "other user", orderID: order.ID, userID: other.ID, wantErr: ErrUnauthorized},
		{name: "missing order", orderID: uuid.New(), userID: owner.ID, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.renderer.calls = 0
			var buf bytes.Buffer

			err := f.shop.Invoice(ctx, tt.orderID, tt.userID, &buf)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Zero(t, f.renderer.calls)
				assert.Zero(t, buf.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, f.renderer.calls)
			assert.Contains(t, buf.String(), order.ID.String())
		})
	}
}

func TestOrders_OnlyOwn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a@test.com")
	b := f.user(t, "b@test.com")
	p := f.product(t, a.ID, "A", "1.00")

	for _, u := range []*models.User{a, b} {
		require.NoError(t, f.shop.AddToCart(ctx, u, p.ID))
		_, err := f.shop.Checkout(ctx, u, "tok_visa")
		require.NoError(t, err)
	}

	orders, err := f.shop.Orders(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, a.ID, orders[0].User.UserID)
}
