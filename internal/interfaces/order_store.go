package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// OrderStore defines the contract for the external order-management system.
// GetOrder returns (nil, nil) when the order does not exist.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// MarkPaid records the settlement reference and reports whether this call
	// flipped the order from unpaid to paid.
	MarkPaid(ctx context.Context, id, transactionID string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus, note string) error
	AddNote(ctx context.Context, id, note string) error
	ClearActiveCart(ctx context.Context, customerID string) error
	SetPaymentReference(ctx context.Context, id, reference string) error
}
