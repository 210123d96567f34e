package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var ErrDeclined = errors.New("payment declined")

type Charge struct {
	AmountMinor int64
	Currency    string
	Description string
	Token       string
	OrderID     string
}

type Gateway interface {
	Charge(ctx context.Context, ch Charge) (string, error)
}

type StripeGateway struct {
	API *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{API: client.New(secretKey, nil)}
}

func (g *StripeGateway) Charge(ctx context.Context, ch Charge) (string, error) {
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(ch.AmountMinor),
		Currency:    stripe.String(ch.Currency),
		Description: stripe.String(ch.Description),
		Source:      &stripe.PaymentSourceSourceParams{Token: stripe.String(ch.Token)},
	}
	params.Context = ctx
	params.AddMetadata("order_id", ch.OrderID)

	res, err := g.API.Charges.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			return "", fmt.Errorf("%w: %s", ErrDeclined, serr.Msg)
		}
		return "", fmt.Errorf("stripe charge: %w", err)
	}
	return res.ID, nil
}

// Offline accepts every charge without contacting a processor. Used when no
// processor key is configured.
type Offline struct{}

func (Offline) Charge(_ context.Context, ch Charge) (string, error) {
	if ch.AmountMinor < 0 {
		return "", fmt.Errorf("%w: negative amount", ErrDeclined)
	}
	return "offline_" + ch.OrderID, nil
}
