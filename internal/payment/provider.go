// Package payment wraps the external payment provider behind a small
// interface so the reconciliation handler depends on the operations it
// needs, not on the provider SDK.  Tests substitute a fake provider.
package payment

import (
	"context"
	"errors"
)

// ErrInvalidSignature is returned when a webhook payload fails
// signature verification.  Handlers must reject such deliveries before
// looking at any payload content.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// CheckoutLine is one provider-side line item: product name, unit
// amount in the provider's minor unit (cents) and quantity.
type CheckoutLine struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

// CheckoutParams carries everything needed to open a checkout session.
// OrderID and UserID travel as opaque session metadata and come back
// on the webhook for reconciliation.
type CheckoutParams struct {
	OrderID    uint64
	UserID     uint64
	TicketCode string
	Lines      []CheckoutLine
}

// CheckoutCompleted is the provider-neutral view of a finished
// checkout session.  OrderID is the raw metadata value; the handler
// validates it.  PaymentIntentID may be empty for some methods.
type CheckoutCompleted struct {
	OrderID         string
	Paid            bool
	PaymentIntentID string
}

// Event is a verified webhook notification.  Checkout is nil for every
// event type other than a completed checkout session; such events are
// acknowledged without business action.
type Event struct {
	Type     string
	Checkout *CheckoutCompleted
}

// Provider is the payment gateway surface the reconciliation core
// uses.
type Provider interface {
	// CreateCheckoutSession opens a hosted checkout for the given order
	// and returns the redirect URL.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
	// ParseWebhook verifies the payload signature and, only then,
	// interprets the event.  Returns ErrInvalidSignature on a missing or
	// invalid signature.
	ParseWebhook(payload []byte, signature string) (Event, error)
	// PaymentMethodLabel resolves a human-readable payment method label
	// ("card:visa", "paypal", ...) for a payment intent.  Best effort:
	// errors mean "unknown", not failure.
	PaymentMethodLabel(ctx context.Context, paymentIntentID string) (string, error)
}
