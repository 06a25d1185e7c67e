package gateway

import (
	"context"
	"fmt"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

const CardID = "hutko"

// Card is the bank card payment method.
type Card struct {
	integration models.IntegrationType
	checkout    Initiator
	callbacks   CallbackHandler
}

func NewCard(integration models.IntegrationType, checkout Initiator, callbacks CallbackHandler) (*Card, error) {
	switch integration {
	case models.IntegrationEmbedded, models.IntegrationHosted:
	default:
		return nil, fmt.Errorf("unsupported integration type %q", integration)
	}
	return &Card{integration: integration, checkout: checkout, callbacks: callbacks}, nil
}

func (c *Card) ID() string    { return CardID }
func (c *Card) Title() string { return "Bank card (hutko)" }

func (c *Card) IntegrationTypes() []models.IntegrationType {
	return []models.IntegrationType{models.IntegrationEmbedded, models.IntegrationHosted}
}

func (c *Card) Integration() models.IntegrationType { return c.integration }

func (c *Card) CallbackPath() string { return CallbackPathFor(CardID) }

func (c *Card) ProcessPayment(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	return c.checkout.Initiate(ctx, req, c.integration)
}

func (c *Card) HandleCallback(ctx context.Context, req callback.Request) callback.Outcome {
	return c.callbacks.Handle(ctx, req)
}

func (c *Card) TransactionURL(transactionID string) string {
	return transactionURL(transactionID)
}
