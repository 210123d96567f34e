package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/shop/internal/events"
	"github.com/Skotchmaster/shop/internal/logging"
)

var (
	ErrValidation   = errors.New("validation")     // 422
	ErrNotFound     = errors.New("not found")      // 404
	ErrUnauthorized = errors.New("unauthorized")   // 403
	ErrPersistence  = errors.New("persistence")    // 500
	ErrPayment      = errors.New("payment failed") // 500

	ErrEmptyCart          = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrValidation)
	ErrInvalidResetToken  = fmt.Errorf("%w: reset token is invalid or expired", ErrValidation)
)

// storeErr classifies a repository error as not found or a generic persistence failure.
func storeErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// publish sends an event without failing the caller; delivery problems are logged.
func publish(ctx context.Context, p events.Publisher, topic, key string, event map[string]any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.Publish(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "topic", topic, "type", event["type"], "error", err)
	}
}
