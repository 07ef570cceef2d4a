package checkout

// Session statuses as reported by the provider.
const (
	StatusOpen     = "open"
	StatusComplete = "complete"
	StatusExpired  = "expired"
)

// Session is the provider-issued checkout session. CustomerRef stays empty
// until the customer has paid.
type Session struct {
	ID          string
	RedirectURL string
	Status      string
	CustomerRef string
}

// CompletionEvent is a verified provider event. Values are only produced by
// the webhook verifier, so holding one means the signature was valid.
type CompletionEvent struct {
	ID               string
	Type             string
	ObjectID         string
	CustomerRef      string
	PaymentIntentRef string
	Metadata         map[string]string

	// RawBody and SignatureHeader are the exact bytes and header the
	// signature was checked against.
	RawBody         []byte
	SignatureHeader string
}

// EventCheckoutSessionCompleted is the only event type with a side effect.
const EventCheckoutSessionCompleted = "checkout.session.completed"
