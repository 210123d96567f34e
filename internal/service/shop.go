package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shop/internal/cart"
	"github.com/Skotchmaster/shop/internal/events"
	"github.com/Skotchmaster/shop/internal/invoice"
	"github.com/Skotchmaster/shop/internal/logging"
	"github.com/Skotchmaster/shop/internal/models"
	"github.com/Skotchmaster/shop/internal/payment"
	"github.com/Skotchmaster/shop/internal/repo"
)

const orderDescription = "Demo Order"

type ShopService struct {
	Repo     *repo.GormRepo
	Payments payment.Gateway
	Invoices invoice.Renderer
	Events   events.Publisher
	Currency string
}

type CartLine struct {
	Product  models.Product
	Quantity int
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartView struct {
	Lines []CartLine
	Total decimal.Decimal
}

func (s *ShopService) currency() string {
	if s.Currency == "" {
		return "usd"
	}
	return s.Currency
}

// Cart expands the user's cart with current product data. Lines whose product
// no longer exists are left out.
func (s *ShopService) Cart(ctx context.Context, user *models.User) (*CartView, error) {
	items := user.Cart.Items()
	found, err := s.Repo.ProductsByIDs(ctx, user.Cart.ProductIDs())
	if err != nil {
		return nil, storeErr("load cart products", err)
	}

	view := &CartView{Lines: make([]CartLine, 0, len(items)), Total: decimal.Zero}
	for _, it := range items {
		p, ok := found[it.ProductID]
		if !ok {
			continue
		}
		line := CartLine{Product: p, Quantity: it.Quantity}
		view.Lines = append(view.Lines, line)
		view.Total = view.Total.Add(line.Subtotal())
	}
	return view, nil
}

func (s *ShopService) AddToCart(ctx context.Context, user *models.User, productID uuid.UUID) error {
	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		return storeErr("add to cart", err)
	}

	next := user.Cart.Clone()
	next.Add(productID)
	if err := s.Repo.SaveCart(ctx, user.ID, next); err != nil {
		return storeErr("save cart", err)
	}
	user.Cart = next

	publish(ctx, s.Events, events.TopicCart, user.ID.String(), map[string]any{
		"type":      "cart_item_added",
		"userID":    user.ID.String(),
		"productID": productID.String(),
		"quantity":  next.Quantity(productID),
	})
	return nil
}

// RemoveFromCart drops the product's line. Removing an absent product succeeds
// without writing.
func (s *ShopService) RemoveFromCart(ctx context.Context, user *models.User, productID uuid.UUID) error {
	next := user.Cart.Clone()
	if !next.Remove(productID) {
		return nil
	}
	if err := s.Repo.SaveCart(ctx, user.ID, next); err != nil {
		return storeErr("save cart", err)
	}
	user.Cart = next

	publish(ctx, s.Events, events.TopicCart, user.ID.String(), map[string]any{
		"type":      "cart_item_removed",
		"userID":    user.ID.String(),
		"productID": productID.String(),
	})
	return nil
}

// Checkout turns the cart into an order priced at current product prices.
// Order insert, cart clear and charge share one transaction; a failed charge
// rolls back the other two.
func (s *ShopService) Checkout(ctx context.Context, user *models.User, token string) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "shop.checkout", "user_id", user.ID)

	view, err := s.Cart(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(view.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	order := &models.Order{
		ID:    uuid.New(),
		User:  models.OrderUser{Email: user.Email, UserID: user.ID},
		Items: make(models.LineItems, 0, len(view.Lines)),
	}
	for _, line := range view.Lines {
		order.Items = append(order.Items, models.LineItem{
			Product:  models.SnapshotOf(line.Product),
			Quantity: line.Quantity,
		})
	}
	total := order.Total()
	amount := total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	chargeID := ""
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return storeErr("create order", err)
		}

		var cleared cart.Cart
		if err := tx.SaveCart(ctx, user.ID, cleared); err != nil {
			return storeErr("clear cart", err)
		}

		id, err := s.Payments.Charge(ctx, payment.Charge{
			AmountMinor: amount,
			Currency:    s.currency(),
			Description: orderDescription,
			Token:       token,
			OrderID:     order.ID.String(),
		})
		if err != nil {
			return fmt.Errorf("charge order %s: %w: %w", order.ID, ErrPayment, err)
		}
		chargeID = id
		return nil
	})
	if err != nil {
		if chargeID != "" {
			l.Error("order_commit_failed_after_charge", "order_id", order.ID, "charge_id", chargeID, "error", err)
		}
		if errors.Is(err, ErrPayment) || errors.Is(err, ErrPersistence) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, storeErr("checkout", err)
	}

	user.Cart.Clear()

	publish(ctx, s.Events, events.TopicOrders, order.ID.String(), map[string]any{
		"type":     "order_created",
		"orderID":  order.ID.String(),
		"userID":   user.ID.String(),
		"total":    total.StringFixed(2),
		"chargeID": chargeID,
	})
	l.Info("checkout_success", "order_id", order.ID, "amount_minor", amount)
	return order, nil
}

func (s *ShopService) Orders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.Repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, storeErr("list orders", err)
	}
	return orders, nil
}

// Invoice renders the order's invoice into w after checking that userID owns it.
func (s *ShopService) Invoice(ctx context.Context, orderID, userID uuid.UUID, w io.Writer) error {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return storeErr("get order", err)
	}
	if !order.OwnedBy(userID) {
		return fmt.Errorf("invoice %s: %w", orderID, ErrUnauthorized)
	}
	if err := s.Invoices.Render(order, w); err != nil {
		return fmt.Errorf("render invoice %s: %w", orderID, err)
	}
	return nil
}
