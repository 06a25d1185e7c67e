package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// Resolution is the result of correlating a callback with a local order.
// Acknowledged means the callback needs no processing and Order is nil.
type Resolution struct {
	Order        *models.Order
	Acknowledged bool
}

type Correlator struct {
	orders interfaces.OrderStore
	logger *zap.Logger
}

func NewCorrelator(orders interfaces.OrderStore, logger *zap.Logger) *Correlator {
	return &Correlator{orders: orders, logger: logger}
}

// ParseReference extracts the local order id from a payment reference.
func ParseReference(ref string) (string, error) {
	orderID, _, ok := models.ParseReference(ref)
	if !ok {
		return "", fmt.Errorf("%w: malformed payment reference %q", callback.ErrUnknownOrder, ref)
	}
	return orderID, nil
}

// Resolve finds the order a callback refers to. Reversal notices are
// acknowledged without touching the store.
func (c *Correlator) Resolve(ctx context.Context, p *models.CallbackPayload) (Resolution, error) {
	if p.IsReversal() {
		c.logger.Info("Reversal callback acknowledged",
			zap.String("payment_reference", p.PaymentReference),
			zap.String("reversal_amount", p.ReversalAmount),
		)
		return Resolution{Acknowledged: true}, nil
	}

	orderID, err := ParseReference(p.PaymentReference)
	if err != nil {
		return Resolution{}, err
	}

	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: load order %s: %v", callback.ErrDependencyFailure, orderID, err)
	}
	if order == nil {
		return Resolution{}, fmt.Errorf("%w: order %s", callback.ErrUnknownOrder, orderID)
	}

	if order.PaymentReference != "" && order.PaymentReference != p.PaymentReference {
		c.logger.Warn("Callback for a superseded payment reference",
			zap.String("order_id", orderID),
			zap.String("stored_reference", order.PaymentReference),
			zap.String("callback_reference", p.PaymentReference),
		)
	}

	return Resolution{Order: order}, nil
}
