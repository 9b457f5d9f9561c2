package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// DefaultTolerance is how old a signed webhook may be.
const DefaultTolerance = webhook.DefaultTolerance

var (
	ErrBadSignature = errors.New("payment: webhook signature mismatch")
	ErrStaleWebhook = errors.New("payment: webhook timestamp outside tolerance")
)

// Event is a verified webhook delivery.
type Event struct {
	ID   string
	Type string
	raw  json.RawMessage
}

// CheckoutSession decodes the event's object as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var s stripe.CheckoutSession
	if err := json.Unmarshal(e.raw, &s); err != nil {
		return nil, fmt.Errorf("payment: decode session: %w", err)
	}
	return sessionFrom(&s), nil
}

// VerifyWebhook checks the Stripe-Signature header against secret and
// decodes payload. Events from any API version are accepted.
func VerifyWebhook(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	if secret == "" {
		return nil, errors.New("payment: STRIPE_WEBHOOK_SECRET is not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	switch {
	case errors.Is(err, webhook.ErrTooOld):
		return nil, ErrStaleWebhook
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature):
		return nil, ErrBadSignature
	case err != nil:
		return nil, fmt.Errorf("payment: decode event: %w", err)
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.raw = ev.Data.Raw
	}
	return out, nil
}

// SignatureHeader builds a Stripe-Signature value for payload signed at ts.
func SignatureHeader(payload []byte, secret string, ts time.Time) string {
	return fmt.Sprintf("t=%d,v1=%x", ts.Unix(), webhook.ComputeSignature(ts, payload, secret))
}
