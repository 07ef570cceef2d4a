package stripe

import (
	"encoding/json"

	"checkout-server/internal/domain/checkout"

	"github.com/pkg/errors"
	sdk "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

var (
	ErrMissingSignature = errors.New("missing Stripe-Signature header")
	ErrMalformedEvent   = errors.New("malformed event payload")
)

// Verifier checks webhook signatures against the endpoint signing secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the signature over the exact request bytes and decodes the
// event. Any error means the event must not be acted on.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (checkout.CompletionEvent, error) {
	if signatureHeader == "" {
		return checkout.CompletionEvent{}, ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return checkout.CompletionEvent{}, err
	}

	ev := checkout.CompletionEvent{
		ID:              event.ID,
		Type:            string(event.Type),
		RawBody:         payload,
		SignatureHeader: signatureHeader,
	}
	if ev.Type != checkout.EventCheckoutSessionCompleted {
		return ev, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return checkout.CompletionEvent{}, ErrMalformedEvent
	}
	var session sdk.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return checkout.CompletionEvent{}, errors.Wrap(ErrMalformedEvent, err.Error())
	}

	ev.ObjectID = session.ID
	ev.Metadata = session.Metadata
	if session.Customer != nil {
		ev.CustomerRef = session.Customer.ID
	}
	if session.PaymentIntent != nil {
		ev.PaymentIntentRef = session.PaymentIntent.ID
	}
	return ev, nil
}
