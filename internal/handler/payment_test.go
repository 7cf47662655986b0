package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmbpark/ticketing/internal/order"
	"github.com/zmbpark/ticketing/internal/payment"
	"github.com/zmbpark/ticketing/internal/repository"
)

// stubProvider lets webhook tests control verification and event
// content without the real gateway.
type stubProvider struct {
	parseErr error
	ev       payment.Event
}

func (s stubProvider) CreateCheckoutSession(context.Context, payment.CheckoutParams) (string, error) {
	return "https://pay.example/session", nil
}

func (s stubProvider) ParseWebhook([]byte, string) (payment.Event, error) {
	return s.ev, s.parseErr
}

func (s stubProvider) PaymentMethodLabel(context.Context, string) (string, error) {
	return "card:visa", nil
}

func TestClassifyWebhook(t *testing.T) {
	// Events without a checkout payload never act.
	_, _, outcome := classifyWebhook(payment.Event{Type: "payment_intent.created"})
	assert.Equal(t, webhookIgnore, outcome)

	// A completed but unpaid session (e.g. delayed payment methods) is
	// acknowledged without action.
	_, _, outcome = classifyWebhook(payment.Event{
		Type:     "checkout.session.completed",
		Checkout: &payment.CheckoutCompleted{OrderID: "42", Paid: false},
	})
	assert.Equal(t, webhookIgnore, outcome)

	// Paid sessions with unusable metadata are malformed, not ignored.
	for _, badID := range []string{"", "abc", "0", "-1"} {
		_, _, outcome = classifyWebhook(payment.Event{
			Type:     "checkout.session.completed",
			Checkout: &payment.CheckoutCompleted{OrderID: badID, Paid: true},
		})
		assert.Equal(t, webhookMalformed, outcome, "order_id=%q", badID)
	}

	id, intent, outcome := classifyWebhook(payment.Event{
		Type:     "checkout.session.completed",
		Checkout: &payment.CheckoutCompleted{OrderID: "42", Paid: true, PaymentIntentID: "pi_123"},
	})
	assert.Equal(t, webhookConfirm, outcome)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, "pi_123", intent)
}

func postWebhook(h *OrderHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/ipn", strings.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h.HandleWebhook(c)
	return rec
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	h := &OrderHandler{Provider: stubProvider{parseErr: payment.ErrInvalidSignature}}
	rec := postWebhook(h, `{"type":"checkout.session.completed"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid signature")
}

func TestHandleWebhookAcksIrrelevantEvents(t *testing.T) {
	h := &OrderHandler{Provider: stubProvider{ev: payment.Event{Type: "invoice.paid"}}}
	rec := postWebhook(h, `{"type":"invoice.paid"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
}

// stubOrders implements the slice of OrderStore the webhook path
// touches; any other call panics via the embedded nil interface.
type stubOrders struct {
	OrderStore
	rec      repository.OrderRecord
	getErr   error
	casWon   bool
	casCalls int
	casLabel *string
}

func (s *stubOrders) GetByID(context.Context, uint64) (repository.OrderRecord, error) {
	return s.rec, s.getErr
}

func (s *stubOrders) ListLines(context.Context, uint64) ([]repository.OrderLineRecord, error) {
	return nil, nil
}

func (s *stubOrders) CompareAndSetStatus(_ context.Context, _ uint64, _, _ order.Status, label *string) (bool, error) {
	s.casCalls++
	s.casLabel = label
	return s.casWon, nil
}

func paidCheckoutEvent(orderID string) payment.Event {
	return payment.Event{
		Type:     "checkout.session.completed",
		Checkout: &payment.CheckoutCompleted{OrderID: orderID, Paid: true, PaymentIntentID: "pi_123"},
	}
}

func TestHandleWebhookAcksAlreadyConfirmedOrder(t *testing.T) {
	// Duplicate delivery for an order that already confirmed: ack, no
	// second status write.
	store := &stubOrders{rec: repository.OrderRecord{ID: 42, Status: order.StatusConfirmed}}
	h := &OrderHandler{Provider: stubProvider{ev: paidCheckoutEvent("42")}, Orders: store}

	rec := postWebhook(h, `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	assert.Zero(t, store.casCalls)
}

func TestHandleWebhookNeverResurrectsTerminalOrders(t *testing.T) {
	for _, status := range []order.Status{order.StatusCanceled, order.StatusRefund} {
		store := &stubOrders{rec: repository.OrderRecord{ID: 42, Status: status}}
		h := &OrderHandler{Provider: stubProvider{ev: paidCheckoutEvent("42")}, Orders: store}

		rec := postWebhook(h, `{}`)

		require.Equal(t, http.StatusOK, rec.Code, "status=%s", status)
		assert.Contains(t, rec.Body.String(), `"received":true`)
		assert.Zero(t, store.casCalls, "status=%s", status)
	}
}

func TestHandleWebhookAcksUnknownOrder(t *testing.T) {
	store := &stubOrders{getErr: repository.ErrOrderNotFound}
	h := &OrderHandler{Provider: stubProvider{ev: paidCheckoutEvent("42")}, Orders: store}

	rec := postWebhook(h, `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	assert.Zero(t, store.casCalls)
}

func TestHandleWebhookConfirmsPendingOrder(t *testing.T) {
	store := &stubOrders{rec: repository.OrderRecord{ID: 42, Status: order.StatusPending}, casWon: true}
	h := &OrderHandler{Provider: stubProvider{ev: paidCheckoutEvent("42")}, Orders: store}

	rec := postWebhook(h, `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	assert.Contains(t, rec.Body.String(), `"order"`)
	assert.Equal(t, 1, store.casCalls)
	require.NotNil(t, store.casLabel)
	assert.Equal(t, "card:visa", *store.casLabel)
}

func TestHandleWebhookAcksWhenLosingTheRace(t *testing.T) {
	// The compare-and-set misses when a concurrent delivery confirmed
	// first; the loser still acks so the provider stops retrying.
	store := &stubOrders{rec: repository.OrderRecord{ID: 42, Status: order.StatusPending}, casWon: false}
	h := &OrderHandler{Provider: stubProvider{ev: paidCheckoutEvent("42")}, Orders: store}

	rec := postWebhook(h, `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	assert.Equal(t, 1, store.casCalls)
}

func TestHandleWebhookRejectsMalformedMetadata(t *testing.T) {
	h := &OrderHandler{Provider: stubProvider{ev: payment.Event{
		Type:     "checkout.session.completed",
		Checkout: &payment.CheckoutCompleted{OrderID: "not-a-number", Paid: true},
	}}}
	rec := postWebhook(h, `{"type":"checkout.session.completed"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "order_id")
}
