package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/zmbpark/ticketing/internal/auth"
	"github.com/zmbpark/ticketing/internal/order"
	"github.com/zmbpark/ticketing/internal/payment"
	"github.com/zmbpark/ticketing/internal/repository"
)

// CreateCheckout handles POST /v1/orders/:id/checkout. It opens a
// provider checkout session for a pending order and returns the
// redirect URL. Line amounts move to the provider's minor unit here;
// VAT travels as its own line item so the charged total matches the
// order's computed total.
func (h *OrderHandler) CreateCheckout(c echo.Context) error {
	actor, err := auth.FromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !actor.CanAccess(rec.UserID) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "You can only pay for your own orders"})
	}
	if rec.Status != order.StatusPending {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Order must be pending to start payment"})
	}

	lines, err := h.Orders.ListLines(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if len(lines) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Order has no lines"})
	}

	params := payment.CheckoutParams{
		OrderID:    rec.ID,
		UserID:     rec.UserID,
		TicketCode: rec.TicketCode,
	}
	for _, l := range lines {
		params.Lines = append(params.Lines, payment.CheckoutLine{
			Name:            l.ProductName,
			UnitAmountCents: l.UnitPrice.Shift(2).Round(0).IntPart(),
			Quantity:        l.Quantity,
		})
	}
	view := renderOrder(rec, lines)
	if view.Amounts.VATAmount.IsPositive() {
		params.Lines = append(params.Lines, payment.CheckoutLine{
			Name:            "VAT " + rec.VAT.String() + "%",
			UnitAmountCents: view.Amounts.VATAmount.Shift(2).Round(0).IntPart(),
			Quantity:        1,
		})
	}

	url, err := h.Provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create checkout session"})
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// webhookOutcome classifies a verified provider event.
type webhookOutcome int

const (
	webhookIgnore    webhookOutcome = iota // irrelevant event or unpaid session
	webhookMalformed                       // qualifying event with unusable metadata
	webhookConfirm                         // paid checkout pointing at an order
)

// classifyWebhook decides what a verified event requires. Pure so the
// decision logic is testable without a provider or database. Only a
// completed checkout session that is actually paid and carries a
// numeric order id triggers a confirmation.
func classifyWebhook(ev payment.Event) (orderID uint64, intentID string, outcome webhookOutcome) {
	if ev.Checkout == nil {
		return 0, "", webhookIgnore
	}
	if !ev.Checkout.Paid {
		return 0, "", webhookIgnore
	}
	id, err := strconv.ParseUint(ev.Checkout.OrderID, 10, 64)
	if err != nil || id == 0 {
		return 0, "", webhookMalformed
	}
	return id, ev.Checkout.PaymentIntentID, webhookConfirm
}

// HandleWebhook handles POST /v1/payments/ipn. The signature is
// verified before any payload content is interpreted. Irrelevant
// events, unknown orders and orders no longer pending are acknowledged
// without side effects so the provider stops retrying. The
// pending-to-confirmed write is a single compare-and-set, which makes
// duplicate deliveries and races harmless.
func (h *OrderHandler) HandleWebhook(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable payload"})
	}
	sig := c.Request().Header.Get("Stripe-Signature")

	ev, err := h.Provider.ParseWebhook(raw, sig)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	orderID, intentID, outcome := classifyWebhook(ev)
	switch outcome {
	case webhookIgnore:
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	case webhookMalformed:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing or invalid order_id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			// Ack unknown orders: erroring here would only cause retry storms.
			return c.JSON(http.StatusOK, echo.Map{"received": true})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to load order"})
	}
	if rec.Status != order.StatusPending {
		// Already confirmed (duplicate delivery) or canceled/refunded;
		// never resurrect.
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	// Best effort label; on failure the stored payment_method stays as is.
	var label *string
	if intentID != "" {
		if v, err := h.Provider.PaymentMethodLabel(ctx, intentID); err == nil && v != "" {
			label = &v
		}
	}

	won, err := h.Orders.CompareAndSetStatus(ctx, orderID, order.StatusPending, order.StatusConfirmed, label)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to update order"})
	}
	if !won {
		// A concurrent delivery confirmed it first.
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	updated, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to load order"})
	}
	lines, err := h.Orders.ListLines(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to load order lines"})
	}

	h.publishConfirmed(updated, lines)
	return c.JSON(http.StatusOK, echo.Map{
		"received": true,
		"order":    renderOrder(updated, lines),
	})
}
