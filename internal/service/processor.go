package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/failures"
	"github.com/akylbek/payment-system/hutko-gateway/internal/gateway"
	"github.com/akylbek/payment-system/hutko-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
	"github.com/akylbek/payment-system/hutko-gateway/internal/telemetry"
	"github.com/akylbek/payment-system/hutko-gateway/internal/tokencache"
)

const markFailedTimeout = 5 * time.Second

// ProcessorDeps wires the callback pipeline. Locker, Tokens, Recorder and
// Metrics are optional.
type ProcessorDeps struct {
	MerchantID    string
	Authenticator *callback.Authenticator
	Correlator    *Correlator
	Machine       *StateMachine
	Orders        interfaces.OrderStore
	Locker        interfaces.Locker
	Tokens        *tokencache.Cache
	Recorder      *failures.Recorder
	Metrics       *telemetry.Metrics
	Logger        *zap.Logger
}

// Processor reconciles processor callbacks with local orders.
type Processor struct {
	deps ProcessorDeps
}

func NewProcessor(deps ProcessorDeps) *Processor {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Processor{deps: deps}
}

type callbackState struct {
	fields       callback.Fields
	payload      *models.CallbackPayload
	orderID      string
	order        *models.Order
	acknowledged bool
	applied      bool
}

// Handle runs one callback through the pipeline. It never panics on bad input
// and every failure is recorded before it is returned.
func (p *Processor) Handle(ctx context.Context, req callback.Request) callback.Outcome {
	ctx, span := telemetry.Tracer.Start(ctx, "callback.process")
	defer span.End()

	st := &callbackState{}
	err := p.process(ctx, req, st)

	outcome := callback.Outcome{
		Kind:         callback.KindOf(err),
		Err:          err,
		OrderID:      st.orderID,
		Acknowledged: st.acknowledged,
	}
	span.SetAttributes(
		attribute.String("hutko.order_id", st.orderID),
		attribute.String("hutko.outcome", outcomeLabel(outcome, st)),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome.Kind))
		p.fail(ctx, req, st, outcome)
	}

	p.deps.Metrics.ObserveCallback(outcomeLabel(outcome, st))
	return outcome
}

func (p *Processor) process(ctx context.Context, req callback.Request, st *callbackState) error {
	fields, err := callback.Normalize(req.Body, req.Form, req.Query)
	if err != nil {
		return err
	}
	st.fields = fields

	if err := p.deps.Authenticator.Authenticate(fields); err != nil {
		return err
	}

	payload, err := callback.Parse(fields)
	if err != nil {
		return err
	}
	st.payload = payload

	if !payload.IsReversal() && p.deps.Locker != nil {
		orderID, err := ParseReference(payload.PaymentReference)
		if err != nil {
			return err
		}
		st.orderID = orderID

		unlock, err := p.deps.Locker.Lock(ctx, orderID)
		if err != nil {
			return fmt.Errorf("%w: lock order %s: %v", callback.ErrDependencyFailure, orderID, err)
		}
		defer unlock()
	}

	res, err := p.deps.Correlator.Resolve(ctx, payload)
	if err != nil {
		return err
	}
	if res.Acknowledged {
		st.acknowledged = true
		return nil
	}
	st.order = res.Order
	st.orderID = res.Order.ID

	p.invalidateToken(ctx, res.Order)

	evt, err := p.deps.Machine.Apply(ctx, res.Order, payload)
	st.applied = evt.Applied
	return err
}

// invalidateToken drops the cached checkout token for the order. Failures are
// logged and do not stop the callback.
func (p *Processor) invalidateToken(ctx context.Context, order *models.Order) {
	if p.deps.Tokens == nil {
		return
	}
	amount := strconv.FormatInt(gateway.AmountMinor(order.Total), 10)
	key := tokencache.Key(p.deps.MerchantID, order.ID, amount, order.Currency)
	if err := p.deps.Tokens.Invalidate(ctx, key); err != nil {
		p.deps.Logger.Warn("Failed to invalidate checkout token",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}

func (p *Processor) fail(ctx context.Context, req callback.Request, st *callbackState, outcome callback.Outcome) {
	p.deps.Logger.Warn("Callback rejected",
		zap.String("kind", string(outcome.Kind)),
		zap.String("order_id", st.orderID),
		zap.Error(outcome.Err),
	)

	p.deps.Recorder.Record(failures.Record{
		Kind:       string(outcome.Kind),
		Message:    outcome.Err.Error(),
		Method:     req.Method,
		URI:        req.URI,
		RemoteAddr: req.RemoteAddr,
		OrderID:    st.orderID,
		Fields:     st.fields,
		RawInput:   string(req.Body),
		Form:       req.Form,
		Query:      req.Query,
	})

	if st.order == nil || outcome.Kind == callback.KindUnrecognizedStatus {
		return
	}

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markFailedTimeout)
	defer cancel()
	if err := p.deps.Orders.UpdateStatus(markCtx, st.order.ID, models.OrderFailed, outcome.Err.Error()); err != nil {
		p.deps.Logger.Error("Failed to mark order failed",
			zap.String("order_id", st.order.ID),
			zap.Error(err),
		)
	}
}

func outcomeLabel(o callback.Outcome, st *callbackState) string {
	switch {
	case o.Kind != callback.KindNone:
		return string(o.Kind)
	case st.acknowledged:
		return "acknowledged"
	case st.applied:
		return "applied"
	default:
		return "noop"
	}
}
