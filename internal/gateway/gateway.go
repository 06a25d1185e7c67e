// Package gateway exposes payment methods as PaymentGateway implementations that
// share the checkout and callback engines by delegation.
package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// PaymentGateway is one payment method offered at checkout.
type PaymentGateway interface {
	ID() string
	Title() string
	IntegrationTypes() []models.IntegrationType
	Integration() models.IntegrationType
	CallbackPath() string
	ProcessPayment(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResult, error)
	HandleCallback(ctx context.Context, req callback.Request) callback.Outcome
	TransactionURL(transactionID string) string
}

// Initiator starts a checkout attempt for an order.
type Initiator interface {
	Initiate(ctx context.Context, req models.CheckoutRequest, integration models.IntegrationType) (*models.CheckoutResult, error)
}

// CallbackHandler runs the callback reconciliation pipeline.
type CallbackHandler interface {
	Handle(ctx context.Context, req callback.Request) callback.Outcome
}

const transactionURLFormat = "https://portal.hutko.org/#/transactions/payments/info/%s/general"

// CallbackPathFor is the route a gateway receives processor callbacks on.
func CallbackPathFor(id string) string {
	return "/api/gateways/" + id + "/callback"
}

// Registry holds the gateways available to the storefront.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]PaymentGateway
}

func NewRegistry(gateways ...PaymentGateway) *Registry {
	r := &Registry{gateways: make(map[string]PaymentGateway)}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

func (r *Registry) Register(g PaymentGateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.ID()] = g
}

func (r *Registry) Get(id string) (PaymentGateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[id]
	return g, ok
}

// All returns the gateways ordered by id.
func (r *Registry) All() []PaymentGateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PaymentGateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func transactionURL(transactionID string) string {
	if transactionID == "" {
		return ""
	}
	return fmt.Sprintf(transactionURLFormat, transactionID)
}
