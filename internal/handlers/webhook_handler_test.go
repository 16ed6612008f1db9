package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshop-fulfillment/payment-service/internal/catalog"
	"github.com/bookshop-fulfillment/payment-service/internal/domain"
	"github.com/bookshop-fulfillment/payment-service/internal/gateway"
	"github.com/bookshop-fulfillment/payment-service/internal/service"
)

type stubGateway struct {
	event       *gateway.Event
	verifyErr   error
	createCalls int
	cancelCalls []string
	createErr   error
}

func (s *stubGateway) CreateIntent(amountMinor int64, currency string) (*gateway.PaymentIntent, error) {
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &gateway.PaymentIntent{
		ID:           "pi_test_1",
		Status:       "processing",
		Amount:       amountMinor,
		Currency:     currency,
		ClientSecret: "pi_test_1_secret",
	}, nil
}

func (s *stubGateway) RetrieveIntent(id string) (*gateway.PaymentIntent, error) {
	return &gateway.PaymentIntent{ID: id, Status: "processing"}, nil
}

func (s *stubGateway) CancelIntent(id string) (*gateway.PaymentIntent, error) {
	s.cancelCalls = append(s.cancelCalls, id)
	return &gateway.PaymentIntent{ID: id, Status: "canceled"}, nil
}

func (s *stubGateway) VerifyAndParse(payload []byte, signatureHeader string) (*gateway.Event, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.event, nil
}

type memoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	reads  int
	writes int
}

func newMemoryOrderStore() *memoryOrderStore {
	return &memoryOrderStore{orders: map[string]*domain.Order{}}
}

func (m *memoryOrderStore) CreateOrder(order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	copied := *order
	m.orders[order.PaymentID] = &copied
	return nil
}

func (m *memoryOrderStore) GetOrder(paymentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	order, ok := m.orders[paymentID]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "order", ID: paymentID}
	}
	copied := *order
	return &copied, nil
}

func (m *memoryOrderStore) UpdateOrder(order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	stored, ok := m.orders[order.PaymentID]
	if !ok {
		return &domain.NotFoundError{Resource: "order", ID: order.PaymentID}
	}
	copied := *order
	copied.PaidAt = stored.PaidAt
	m.orders[order.PaymentID] = &copied
	return nil
}

func (m *memoryOrderStore) MarkPaid(paymentID string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	order, ok := m.orders[paymentID]
	if !ok {
		return false, &domain.NotFoundError{Resource: "order", ID: paymentID}
	}
	if order.PaidAt != nil {
		return false, nil
	}
	order.PaidAt = &paidAt
	return true, nil
}

type recordingNotifier struct {
	mu            sync.Mutex
	created       int
	confirmations int
	confirmed     int
}

func (n *recordingNotifier) OrderCreated(order *domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created++
}

func (n *recordingNotifier) OrderConfirmation(order *domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations++
}

func (n *recordingNotifier) OrderConfirmed(order *domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
}

type staticCatalog struct {
	books map[int64]*catalog.Book
}

func (s *staticCatalog) GetByID(id int64) (*catalog.Book, error) {
	book, ok := s.books[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "book", ID: fmt.Sprintf("%d", id)}
	}
	return book, nil
}

func newWebhookTestApp(gw *stubGateway, store *memoryOrderStore, notifier *recordingNotifier) *fiber.App {
	reconciler := service.NewReconciler(store, notifier)
	handler := NewWebhookHandler(gw, reconciler)

	app := fiber.New()
	app.Post("/webhooks/gateway", handler.HandleGatewayWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, signature string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func intentEvent(eventType, status string) *gateway.Event {
	return &gateway.Event{
		ID:     "evt_1",
		Type:   eventType,
		Domain: gateway.ClassifyEventType(eventType),
		Intent: &gateway.PaymentIntent{ID: "pi_1", Status: status},
	}
}

func seedPendingOrder(store *memoryOrderStore) {
	store.orders["pi_1"] = domain.NewOrder("pi_1", "processing", []domain.OrderItem{
		{CatalogID: 1, Title: "Learning Go", UnitPrice: 36.00, Quantity: 1},
	}, 36.00, "eur")
}

func TestWebhookRejectsInvalidSignatureBeforeProcessing(t *testing.T) {
	gw := &stubGateway{verifyErr: &domain.SignatureError{Reason: "signature mismatch"}}
	store := newMemoryOrderStore()
	notifier := &recordingNotifier{}
	app := newWebhookTestApp(gw, store, notifier)

	resp := postWebhook(t, app, "t=1,v1=bad")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	// No order was read or written and no job was enqueued.
	assert.Equal(t, 0, store.reads)
	assert.Equal(t, 0, store.writes)
	assert.Equal(t, 0, notifier.confirmations)
}

func TestWebhookRejectsUnparsablePayload(t *testing.T) {
	gw := &stubGateway{verifyErr: errors.New("event deserialization error")}
	store := newMemoryOrderStore()
	app := newWebhookTestApp(gw, store, &recordingNotifier{})

	resp := postWebhook(t, app, "t=1,v1=ok")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, store.writes)
}

func TestWebhookAcknowledgesUnknownEventType(t *testing.T) {
	gw := &stubGateway{event: &gateway.Event{ID: "evt_1", Type: "customer.created", Domain: gateway.DomainUnknown}}
	store := newMemoryOrderStore()
	app := newWebhookTestApp(gw, store, &recordingNotifier{})

	resp := postWebhook(t, app, "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]bool
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.True(t, parsed["received"])
	assert.Equal(t, 0, store.writes)
}

func TestWebhookAppliesSucceededEvent(t *testing.T) {
	gw := &stubGateway{event: intentEvent(gateway.IntentSucceeded, "succeeded")}
	store := newMemoryOrderStore()
	notifier := &recordingNotifier{}
	app := newWebhookTestApp(gw, store, notifier)
	seedPendingOrder(store)

	resp := postWebhook(t, app, "t=1,v1=ok")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	order, err := store.GetOrder("pi_1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPaid, order.OrderStatus)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, 1, notifier.confirmations)
	assert.Equal(t, 1, notifier.confirmed)

	// Redelivery is acknowledged without a second confirmation.
	resp = postWebhook(t, app, "t=1,v1=ok")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, notifier.confirmations)
}

func TestWebhookTerminalEventForUnknownOrderReturns500(t *testing.T) {
	gw := &stubGateway{event: intentEvent(gateway.IntentSucceeded, "succeeded")}
	store := newMemoryOrderStore()
	app := newWebhookTestApp(gw, store, &recordingNotifier{})

	resp := postWebhook(t, app, "t=1,v1=ok")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestWebhookNonTerminalEventForUnknownOrderIsAcknowledged(t *testing.T) {
	gw := &stubGateway{event: intentEvent(gateway.IntentRequiresAction, "requires_action")}
	store := newMemoryOrderStore()
	app := newWebhookTestApp(gw, store, &recordingNotifier{})

	resp := postWebhook(t, app, "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookAcknowledgesChargeEventWithoutReference(t *testing.T) {
	gw := &stubGateway{event: &gateway.Event{
		ID:     "evt_9",
		Type:   "charge.updated",
		Domain: gateway.DomainCharge,
		Charge: &gateway.Charge{ID: "ch_1"},
	}}
	store := newMemoryOrderStore()
	app := newWebhookTestApp(gw, store, &recordingNotifier{})

	resp := postWebhook(t, app, "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, store.writes)
}
