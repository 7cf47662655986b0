package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeProvider implements Provider on the Stripe API.  The webhook
// secret is the pre-shared endpoint secret used for signature
// verification; success/cancel URLs are where Stripe redirects the
// customer after checkout.
type StripeProvider struct {
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
}

// NewStripeProvider configures the global Stripe key and returns a
// provider bound to the given endpoint secret and redirect URLs.
func NewStripeProvider(apiKey, webhookSecret, successURL, cancelURL, currency string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		currency:      currency,
	}
}

// CreateCheckoutSession opens a payment-mode checkout session with one
// line item per order line and the order/user ids as metadata.  A
// fresh idempotency key guards against double submission on retries.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.Lines))
	for _, l := range p.Lines {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(l.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(l.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		LineItems:         items,
		ClientReferenceID: stripe.String(p.TicketCode),
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	params.AddMetadata("order_id", fmt.Sprintf("%d", p.OrderID))
	params.AddMetadata("user_id", fmt.Sprintf("%d", p.UserID))

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess.URL, nil
}

// ParseWebhook verifies the Stripe-Signature header against the raw
// payload before any JSON is interpreted.  Verification failure maps
// to ErrInvalidSignature; a verified but unknown event comes back with
// a nil Checkout so callers acknowledge it without side effects.
func (s *StripeProvider) ParseWebhook(payload []byte, signature string) (Event, error) {
	if signature == "" {
		return Event{}, ErrInvalidSignature
	}
	ev, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{Type: string(ev.Type)}
	if out.Type != "checkout.session.completed" {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return Event{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	done := &CheckoutCompleted{
		OrderID: cs.Metadata["order_id"],
		Paid:    cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if cs.PaymentIntent != nil {
		done.PaymentIntentID = cs.PaymentIntent.ID
	}
	out.Checkout = done
	return out, nil
}

// PaymentMethodLabel retrieves the payment intent with its payment
// method expanded and derives a label: "card:<brand>" for cards, the
// raw method type otherwise.
func (s *StripeProvider) PaymentMethodLabel(ctx context.Context, paymentIntentID string) (string, error) {
	if paymentIntentID == "" {
		return "", fmt.Errorf("stripe: empty payment intent id")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("payment_method")

	pi, err := paymentintent.Get(paymentIntentID, params)
	if err != nil {
		return "", fmt.Errorf("stripe: retrieve payment intent: %w", err)
	}
	pm := pi.PaymentMethod
	if pm == nil {
		return "", fmt.Errorf("stripe: payment intent %s has no payment method", paymentIntentID)
	}
	if pm.Type == stripe.PaymentMethodTypeCard && pm.Card != nil {
		return "card:" + string(pm.Card.Brand), nil
	}
	return string(pm.Type), nil
}
