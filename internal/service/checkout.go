package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/gateway"
	"github.com/akylbek/payment-system/hutko-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
	"github.com/akylbek/payment-system/hutko-gateway/internal/telemetry"
	"github.com/akylbek/payment-system/hutko-gateway/internal/tokencache"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderPaid       = errors.New("order already paid")
	ErrCheckoutFailed  = errors.New("checkout initiation failed")
	ErrUnsupportedMode = errors.New("unsupported integration type")
)

// Checkout starts payment sessions with the processor.
type Checkout struct {
	merchantID string
	orders     interfaces.OrderStore
	client     interfaces.CheckoutClient
	tokens     *tokencache.Cache
	params     *gateway.ParamsBuilder
	metrics    *telemetry.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewCheckout(
	merchantID string,
	orders interfaces.OrderStore,
	client interfaces.CheckoutClient,
	tokens *tokencache.Cache,
	params *gateway.ParamsBuilder,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *Checkout {
	return &Checkout{
		merchantID: merchantID,
		orders:     orders,
		client:     client,
		tokens:     tokens,
		params:     params,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Checkout) Initiate(ctx context.Context, req models.CheckoutRequest, integration models.IntegrationType) (*models.CheckoutResult, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "checkout.initiate")
	defer span.End()

	res, err := s.initiate(ctx, req, integration)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveCheckout(string(integration), "error")
		s.logger.Error("Checkout initiation failed",
			zap.String("order_id", req.OrderID),
			zap.String("integration", string(integration)),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.ObserveCheckout(string(integration), "ok")
	s.logger.Info("Checkout initiated",
		zap.String("order_id", req.OrderID),
		zap.String("integration", string(integration)),
		zap.String("payment_reference", res.Reference),
	)
	return res, nil
}

func (s *Checkout) initiate(ctx context.Context, req models.CheckoutRequest, integration models.IntegrationType) (*models.CheckoutResult, error) {
	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: load order: %v", ErrCheckoutFailed, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, req.OrderID)
	}
	if order.IsPaid() {
		return nil, fmt.Errorf("%w: %s", ErrOrderPaid, order.ID)
	}

	switch integration {
	case models.IntegrationHosted:
		return s.hosted(ctx, order, req.Referer)
	case models.IntegrationEmbedded:
		return s.embedded(ctx, order, req.Referer)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, integration)
	}
}

// hosted mints a fresh reference for every attempt and returns the
// processor-hosted payment page.
func (s *Checkout) hosted(ctx context.Context, order *models.Order, referer string) (*models.CheckoutResult, error) {
	reference, params, err := s.prepare(ctx, order, referer)
	if err != nil {
		return nil, err
	}

	url, err := s.client.CheckoutURL(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}

	return &models.CheckoutResult{
		OrderID:     order.ID,
		Reference:   reference,
		Integration: models.IntegrationHosted,
		RedirectURL: url,
	}, nil
}

// embedded reuses the cached token for the same order, amount and currency
// until a callback invalidates it.
func (s *Checkout) embedded(ctx context.Context, order *models.Order, referer string) (*models.CheckoutResult, error) {
	amount := strconv.FormatInt(gateway.AmountMinor(order.Total), 10)
	key := tokencache.Key(s.merchantID, order.ID, amount, order.Currency)

	reference := order.PaymentReference
	token, err := s.tokens.Acquire(ctx, key, func(ctx context.Context) (string, error) {
		ref, params, err := s.prepare(ctx, order, referer)
		if err != nil {
			return "", err
		}
		token, err := s.client.CheckoutToken(ctx, params)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
		}
		reference = ref
		return token, nil
	})
	if err != nil {
		return nil, err
	}

	return &models.CheckoutResult{
		OrderID:     order.ID,
		Reference:   reference,
		Integration: models.IntegrationEmbedded,
		RedirectURL: s.params.PayURL(order),
		Token:       token,
	}, nil
}

func (s *Checkout) prepare(ctx context.Context, order *models.Order, referer string) (string, models.PaymentParams, error) {
	reference := models.NewReference(order.ID, s.now())
	if err := s.orders.SetPaymentReference(ctx, order.ID, reference); err != nil {
		return "", models.PaymentParams{}, fmt.Errorf("%w: store payment reference: %v", ErrCheckoutFailed, err)
	}

	params, err := s.params.Build(order, reference, referer)
	if err != nil {
		return "", models.PaymentParams{}, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}
	return reference, params, nil
}
