package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

func payload(status models.CallbackStatus) *models.CallbackPayload {
	return &models.CallbackPayload{
		PaymentReference:       "100_1",
		ProcessorTransactionID: "TX1",
		Status:                 status,
	}
}

func TestStateMachine_Table(t *testing.T) {
	tests := []struct {
		name       string
		overrides  StatusOverrides
		status     models.CallbackStatus
		wantStatus models.OrderStatus
		wantNote   string
		wantCart   bool
	}{
		{name: "created is a no-op", status: models.CallbackCreated, wantStatus: models.OrderCreated},
		{name: "processing is a no-op", status: models.CallbackProcessing, wantStatus: models.OrderCreated},
		{name: "approved marks paid", status: models.CallbackApproved, wantStatus: models.OrderPaid, wantNote: "hutko ID: TX1"},
		{
			name:       "approved with completed status clears cart",
			overrides:  StatusOverrides{Completed: "completed"},
			status:     models.CallbackApproved,
			wantStatus: models.OrderCompleted,
			wantNote:   "payment successful",
			wantCart:   true,
		},
		{
			name:       "default completed status only annotates",
			overrides:  StatusOverrides{Completed: models.DefaultStatus},
			status:     models.CallbackApproved,
			wantStatus: models.OrderPaid,
			wantNote:   "payment successful",
		},
		{name: "declined defaults to failed", status: models.CallbackDeclined, wantStatus: models.OrderFailed, wantNote: "Transaction ERROR"},
		{
			name:       "declined uses configured status",
			overrides:  StatusOverrides{Declined: "on-hold"},
			status:     models.CallbackDeclined,
			wantStatus: models.OrderStatus("on-hold"),
			wantNote:   "hutko ID: TX1",
		},
		{name: "expired defaults to cancelled", status: models.CallbackExpired, wantStatus: models.OrderCancelled, wantNote: "expired"},
		{
			name:       "expired uses configured status",
			overrides:  StatusOverrides{Expired: "failed"},
			status:     models.CallbackExpired,
			wantStatus: models.OrderFailed,
			wantNote:   "expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(newOrder("100"))
			m := NewStateMachine(store, tt.overrides, zap.NewNop())

			order, _ := store.GetOrder(context.Background(), "100")
			_, err := m.Apply(context.Background(), order, payload(tt.status))
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, store.order("100").Status)
			notes := store.notesFor("100")
			if tt.wantNote == "" {
				assert.Empty(t, notes)
			} else {
				require.Len(t, notes, 1)
				assert.Contains(t, notes[0], tt.wantNote)
			}
			assert.Equal(t, tt.wantCart, len(store.clearedFor) == 1)
		})
	}
}

func TestStateMachine_DeclineNoteCarriesReason(t *testing.T) {
	store := newMemStore(newOrder("100"))
	m := NewStateMachine(store, StatusOverrides{}, zap.NewNop())

	p := payload(models.CallbackDeclined)
	p.ResponseDescription = "Insufficient funds"
	order, _ := store.GetOrder(context.Background(), "100")
	_, err := m.Apply(context.Background(), order, p)
	require.NoError(t, err)

	assert.Equal(t, []string{"Transaction ERROR: Insufficient funds\nhutko ID: TX1"}, store.notesFor("100"))
}

func TestStateMachine_ApprovedTwiceIsIdempotent(t *testing.T) {
	store := newMemStore(newOrder("100"))
	m := NewStateMachine(store, StatusOverrides{Completed: "completed"}, zap.NewNop())

	for i := 0; i < 2; i++ {
		order, _ := store.GetOrder(context.Background(), "100")
		_, err := m.Apply(context.Background(), order, payload(models.CallbackApproved))
		require.NoError(t, err)
	}

	assert.Len(t, store.notesFor("100"), 1)
	assert.Len(t, store.clearedFor, 1)
}

func TestStateMachine_StaleReadLosesConditionalUpdate(t *testing.T) {
	store := newMemStore(newOrder("100"))
	m := NewStateMachine(store, StatusOverrides{}, zap.NewNop())

	stale, _ := store.GetOrder(context.Background(), "100")
	fresh, _ := store.GetOrder(context.Background(), "100")

	evt, err := m.Apply(context.Background(), fresh, payload(models.CallbackApproved))
	require.NoError(t, err)
	assert.True(t, evt.Applied)

	evt, err = m.Apply(context.Background(), stale, payload(models.CallbackApproved))
	require.NoError(t, err)
	assert.False(t, evt.Applied)
	assert.Len(t, store.notesFor("100"), 1)
}

func TestStateMachine_Hooks(t *testing.T) {
	store := newMemStore(newOrder("100"))
	m := NewStateMachine(store, StatusOverrides{}, zap.NewNop())

	var events []models.TransitionEvent
	m.OnPostTransition(func(_ context.Context, evt models.TransitionEvent) {
		events = append(events, evt)
	})

	order, _ := store.GetOrder(context.Background(), "100")
	_, err := m.Apply(context.Background(), order, payload(models.CallbackProcessing))
	require.NoError(t, err)
	assert.Empty(t, events, "no-op transitions are not published")

	_, err = m.Apply(context.Background(), order, payload(models.CallbackApproved))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.OrderCreated, events[0].From)
	assert.Equal(t, models.OrderPaid, events[0].To)
	assert.Equal(t, "TX1", events[0].TransactionID)

	veto := errors.New("manual review")
	m.OnPreTransition(func(context.Context, *models.Order, *models.CallbackPayload) error { return veto })
	_, err = m.Apply(context.Background(), order, payload(models.CallbackDeclined))
	assert.ErrorIs(t, err, veto)
	assert.Equal(t, callback.KindDependencyFailure, callback.KindOf(err))
	assert.Equal(t, models.OrderPaid, store.order("100").Status)
}

type recordingPublisher struct {
	events []models.TransitionEvent
	err    error
}

func (p *recordingPublisher) PublishTransition(_ context.Context, evt models.TransitionEvent) error {
	p.events = append(p.events, evt)
	return p.err
}

func TestStateMachine_PublishErrorsDoNotFailCallback(t *testing.T) {
	store := newMemStore(newOrder("100"))
	m := NewStateMachine(store, StatusOverrides{}, zap.NewNop())
	pub := &recordingPublisher{err: errors.New("broker down")}
	m.Publish(pub)

	order, _ := store.GetOrder(context.Background(), "100")
	_, err := m.Apply(context.Background(), order, payload(models.CallbackExpired))
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestStateMachine_ReversedIsNotAState(t *testing.T) {
	store := newMemStore(newOrder("100"))
	m := NewStateMachine(store, StatusOverrides{}, zap.NewNop())

	order, _ := store.GetOrder(context.Background(), "100")
	_, err := m.Apply(context.Background(), order, payload(models.CallbackReversed))
	assert.ErrorIs(t, err, callback.ErrUnrecognizedStatus)
}
