package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshop-fulfillment/payment-service/internal/catalog"
	"github.com/bookshop-fulfillment/payment-service/internal/httpx"
	"github.com/bookshop-fulfillment/payment-service/internal/service"
)

func newPaymentTestApp() (*fiber.App, *stubGateway, *memoryOrderStore) {
	gw := &stubGateway{}
	store := newMemoryOrderStore()

	paymentService := service.NewPaymentService(
		&staticCatalog{books: map[int64]*catalog.Book{
			1: {ID: 1, Title: "Learning Go", Price: 20.00, DiscountPercent: 10},
		}},
		gw,
		store,
		&recordingNotifier{},
		service.PaymentConfig{Currency: "eur", MaxQuantity: 100},
	)
	handler := NewPaymentHandler(paymentService)

	app := fiber.New()
	app.Post("/payments", handler.CreatePayment)
	app.Get("/payments/:paymentId", handler.GetPayment)
	app.Delete("/payments/:paymentId", handler.CancelPayment)
	app.Get("/orders/:paymentId", handler.GetOrder)
	return app, gw, store
}

func decodeEnvelope(t *testing.T, resp *http.Response) httpx.APIResponse {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope httpx.APIResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope
}

func TestCreatePaymentEndpoint(t *testing.T) {
	app, _, store := newPaymentTestApp()

	req := httptest.NewRequest(http.MethodPost, "/payments",
		bytes.NewReader([]byte(`{"items":[{"id":1,"quantity":2}]}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	assert.True(t, envelope.Success)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3600), data["amount"])
	assert.Equal(t, "pi_test_1_secret", data["session"])

	_, err = store.GetOrder("pi_test_1")
	assert.NoError(t, err)
}

func TestCreatePaymentEndpointValidation(t *testing.T) {
	app, gw, _ := newPaymentTestApp()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"items":`, http.StatusBadRequest},
		{"empty items", `{"items":[]}`, http.StatusBadRequest},
		{"zero quantity", `{"items":[{"id":1,"quantity":0}]}`, http.StatusBadRequest},
		{"unknown item", `{"items":[{"id":42,"quantity":1}]}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}

	assert.Equal(t, 0, gw.createCalls)
}

func TestGetPaymentEndpoint(t *testing.T) {
	app, _, _ := newPaymentTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/payments/pi_known", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/payments/not-an-intent", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelPaymentEndpoint(t *testing.T) {
	app, gw, store := newPaymentTestApp()

	req := httptest.NewRequest(http.MethodPost, "/payments",
		bytes.NewReader([]byte(`{"items":[{"id":1,"quantity":1}]}`)))
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req, -1)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/payments/pi_test_1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"pi_test_1"}, gw.cancelCalls)

	order, err := store.GetOrder("pi_test_1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", order.PaymentStatus)
}

func TestGetOrderEndpoint(t *testing.T) {
	app, _, store := newPaymentTestApp()
	seedPendingOrder(store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/orders/pi_1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pi_1", data["payment_id"])
	assert.Equal(t, "pending", data["order_status"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/orders/pi_missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
