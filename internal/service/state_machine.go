package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// StatusOverrides are the configured target statuses for terminal callbacks.
// Empty or "default" means the built-in target.
type StatusOverrides struct {
	Completed string
	Declined  string
	Expired   string
}

func (o StatusOverrides) completed() (models.OrderStatus, bool) {
	if o.Completed == "" || o.Completed == models.DefaultStatus {
		return "", false
	}
	return models.OrderStatus(o.Completed), true
}

func (o StatusOverrides) declined() models.OrderStatus {
	return overrideOr(o.Declined, models.OrderFailed)
}

func (o StatusOverrides) expired() models.OrderStatus {
	return overrideOr(o.Expired, models.OrderCancelled)
}

func overrideOr(v string, fallback models.OrderStatus) models.OrderStatus {
	if v == "" || v == models.DefaultStatus {
		return fallback
	}
	return models.OrderStatus(v)
}

// PreTransitionHook runs before a callback is applied. A non-nil error vetoes
// the transition and fails the callback.
type PreTransitionHook func(ctx context.Context, order *models.Order, p *models.CallbackPayload) error

// PostTransitionHook observes applied transitions.
type PostTransitionHook func(ctx context.Context, evt models.TransitionEvent)

type StateMachine struct {
	orders    interfaces.OrderStore
	overrides StatusOverrides
	logger    *zap.Logger
	now       func() time.Time
	pre       []PreTransitionHook
	post      []PostTransitionHook
}

func NewStateMachine(orders interfaces.OrderStore, overrides StatusOverrides, logger *zap.Logger) *StateMachine {
	return &StateMachine{
		orders:    orders,
		overrides: overrides,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *StateMachine) OnPreTransition(fn PreTransitionHook) {
	m.pre = append(m.pre, fn)
}

func (m *StateMachine) OnPostTransition(fn PostTransitionHook) {
	m.post = append(m.post, fn)
}

// Publish forwards applied transitions to pub. Publish errors are logged.
func (m *StateMachine) Publish(pub interfaces.TransitionPublisher) {
	m.OnPostTransition(func(ctx context.Context, evt models.TransitionEvent) {
		if err := pub.PublishTransition(ctx, evt); err != nil {
			m.logger.Error("Failed to publish transition",
				zap.String("order_id", evt.OrderID),
				zap.String("to", string(evt.To)),
				zap.Error(err),
			)
		}
	})
}

// Apply moves order according to the callback status.
func (m *StateMachine) Apply(ctx context.Context, order *models.Order, p *models.CallbackPayload) (models.TransitionEvent, error) {
	evt := models.TransitionEvent{
		OrderID:       order.ID,
		Reference:     p.PaymentReference,
		TransactionID: p.ProcessorTransactionID,
		Callback:      p.Status,
		From:          order.Status,
		To:            order.Status,
		OccurredAt:    m.now().UTC(),
	}

	for _, hook := range m.pre {
		if err := hook(ctx, order, p); err != nil {
			return evt, fmt.Errorf("transition vetoed: %w", err)
		}
	}

	var err error
	switch p.Status {
	case models.CallbackCreated, models.CallbackProcessing:
		return evt, nil
	case models.CallbackApproved:
		err = m.approve(ctx, order, p, &evt)
	case models.CallbackDeclined:
		err = m.decline(ctx, order, p, &evt)
	case models.CallbackExpired:
		err = m.expire(ctx, order, p, &evt)
	default:
		return evt, fmt.Errorf("%w: %q", callback.ErrUnrecognizedStatus, p.Status)
	}
	if err != nil {
		return evt, err
	}

	if evt.Applied {
		m.logger.Info("Order transitioned",
			zap.String("order_id", evt.OrderID),
			zap.String("callback_status", string(evt.Callback)),
			zap.String("from", string(evt.From)),
			zap.String("to", string(evt.To)),
		)
		for _, hook := range m.post {
			hook(ctx, evt)
		}
	}
	return evt, nil
}

func (m *StateMachine) approve(ctx context.Context, order *models.Order, p *models.CallbackPayload, evt *models.TransitionEvent) error {
	if order.IsPaid() {
		m.logger.Debug("Duplicate approval ignored", zap.String("order_id", order.ID))
		return nil
	}

	applied, err := m.orders.MarkPaid(ctx, order.ID, p.ProcessorTransactionID)
	if err != nil {
		return dependencyError("mark paid", order.ID, err)
	}
	if !applied {
		m.logger.Debug("Approval already applied concurrently", zap.String("order_id", order.ID))
		return nil
	}

	evt.Applied = true
	evt.To = models.OrderPaid
	evt.Note = fmt.Sprintf("hutko payment successful.\nhutko ID: %s", p.ProcessorTransactionID)

	completed, ok := m.overrides.completed()
	if !ok {
		if err := m.orders.AddNote(ctx, order.ID, evt.Note); err != nil {
			return dependencyError("add note", order.ID, err)
		}
		return nil
	}

	if err := m.orders.ClearActiveCart(ctx, order.Customer.ID); err != nil {
		return dependencyError("clear cart", order.ID, err)
	}
	if err := m.orders.UpdateStatus(ctx, order.ID, completed, evt.Note); err != nil {
		return dependencyError("update status", order.ID, err)
	}
	evt.To = completed
	return nil
}

func (m *StateMachine) decline(ctx context.Context, order *models.Order, p *models.CallbackPayload, evt *models.TransitionEvent) error {
	reason := p.ResponseDescription
	if reason == "" {
		reason = p.ResponseCode
	}
	if reason == "" {
		reason = string(p.Status)
	}

	evt.To = m.overrides.declined()
	evt.Note = fmt.Sprintf("Transaction ERROR: %s\nhutko ID: %s", reason, p.ProcessorTransactionID)
	if err := m.orders.UpdateStatus(ctx, order.ID, evt.To, evt.Note); err != nil {
		return dependencyError("update status", order.ID, err)
	}
	evt.Applied = true
	return nil
}

func (m *StateMachine) expire(ctx context.Context, order *models.Order, p *models.CallbackPayload, evt *models.TransitionEvent) error {
	evt.To = m.overrides.expired()
	evt.Note = fmt.Sprintf("Payment expired.\nhutko ID: %s", p.ProcessorTransactionID)
	if err := m.orders.UpdateStatus(ctx, order.ID, evt.To, evt.Note); err != nil {
		return dependencyError("update status", order.ID, err)
	}
	evt.Applied = true
	return nil
}

func dependencyError(op, orderID string, err error) error {
	return fmt.Errorf("%w: %s for order %s: %v", callback.ErrDependencyFailure, op, orderID, err)
}
