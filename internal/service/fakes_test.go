package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/failures"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
	"github.com/akylbek/payment-system/hutko-gateway/internal/signature"
	"github.com/akylbek/payment-system/hutko-gateway/internal/tokencache"
)

const (
	testMerchant = "1396424"
	testSecret   = "test"
)

type memStore struct {
	mu          sync.Mutex
	orders      map[string]*models.Order
	notes       map[string][]string
	clearedFor  []string
	calls       int
	markPaidErr error
}

func newMemStore(orders ...*models.Order) *memStore {
	s := &memStore{orders: make(map[string]*models.Order), notes: make(map[string][]string)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) MarkPaid(_ context.Context, id, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.markPaidErr != nil {
		return false, s.markPaidErr
	}
	o := s.orders[id]
	if o.PaidAt != nil {
		return false, nil
	}
	now := time.Now()
	o.PaidAt = &now
	o.TransactionID = transactionID
	o.Status = models.OrderPaid
	return true, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status models.OrderStatus, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.orders[id].Status = status
	if note != "" {
		s.notes[id] = append(s.notes[id], note)
	}
	return nil
}

func (s *memStore) AddNote(_ context.Context, id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.notes[id] = append(s.notes[id], note)
	return nil
}

func (s *memStore) ClearActiveCart(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.clearedFor = append(s.clearedFor, customerID)
	return nil
}

func (s *memStore) SetPaymentReference(_ context.Context, id, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.orders[id].PaymentReference = reference
	return nil
}

func (s *memStore) order(id string) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *memStore) notesFor(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notes[id]...)
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeClient struct {
	urls   int32
	tokens int32
	err    error
	last   models.PaymentParams
}

func (c *fakeClient) CheckoutURL(_ context.Context, params models.PaymentParams) (string, error) {
	atomic.AddInt32(&c.urls, 1)
	c.last = params
	if c.err != nil {
		return "", c.err
	}
	return "https://pay.hutko.org/merchants/" + params.OrderID, nil
}

func (c *fakeClient) CheckoutToken(_ context.Context, params models.PaymentParams) (string, error) {
	n := atomic.AddInt32(&c.tokens, 1)
	c.last = params
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("tok-%d", n), nil
}

type memSink struct {
	mu   sync.Mutex
	recs []failures.Record
}

func (s *memSink) Write(_ context.Context, rec failures.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memSink) records() []failures.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]failures.Record(nil), s.recs...)
}

func newOrder(id string) *models.Order {
	return &models.Order{
		ID:       id,
		Total:    decimal.RequireFromString("25.00"),
		Currency: "UAH",
		Customer: models.Customer{ID: "cust-" + id, Email: "buyer@example.com"},
		Status:   models.OrderCreated,
	}
}

type harness struct {
	store     *memStore
	machine   *StateMachine
	processor *Processor
	tokens    *tokencache.Cache
	sink      *memSink
	recorder  *failures.Recorder
	cancel    context.CancelFunc
}

func newHarness(t *testing.T, overrides StatusOverrides, orders ...*models.Order) *harness {
	t.Helper()
	logger := zap.NewNop()
	h := &harness{
		store:  newMemStore(orders...),
		tokens: tokencache.New(tokencache.NewMemoryStore(), time.Hour, logger),
		sink:   &memSink{},
	}
	h.machine = NewStateMachine(h.store, overrides, logger)
	h.recorder = failures.NewRecorder(logger, 16, h.sink)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.recorder.Start(ctx)
	t.Cleanup(func() {
		cancel()
		h.recorder.Wait()
	})

	h.processor = NewProcessor(ProcessorDeps{
		MerchantID:    testMerchant,
		Authenticator: callback.NewAuthenticator(testMerchant, testSecret),
		Correlator:    NewCorrelator(h.store, logger),
		Machine:       h.machine,
		Orders:        h.store,
		Tokens:        h.tokens,
		Recorder:      h.recorder,
		Logger:        logger,
	})
	return h
}

// recorded drains the recorder and returns what reached the sink.
func (h *harness) recorded() []failures.Record {
	h.cancel()
	h.recorder.Wait()
	return h.sink.records()
}

func signedBody(t *testing.T, fields map[string]string) []byte {
	t.Helper()
	fields[models.FieldMerchantID] = testMerchant
	fields[models.FieldSignature] = signature.Sign(testSecret, fields)
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func approved(t *testing.T, reference, txID string) callback.Request {
	return callback.Request{
		Method: "POST",
		URI:    "/api/gateways/hutko/callback",
		Body: signedBody(t, map[string]string{
			models.FieldOrderID:     reference,
			models.FieldOrderStatus: "approved",
			models.FieldPaymentID:   txID,
			models.FieldAmount:      "2500",
			models.FieldCurrency:    "UAH",
		}),
	}
}

var errStore = errors.New("connection refused")
