package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// CheckoutClient is the outbound processor API.
type CheckoutClient interface {
	CheckoutURL(ctx context.Context, params models.PaymentParams) (string, error)
	CheckoutToken(ctx context.Context, params models.PaymentParams) (string, error)
}

// Locker serializes work on a single key across callbacks.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// TransitionPublisher receives state machine transitions after they are applied.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, evt models.TransitionEvent) error
}
