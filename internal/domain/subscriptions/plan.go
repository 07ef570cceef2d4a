package subscriptions

import "time"

const (
	IntervalMonth = "month"

	// ProrationNone keeps the skipped period free: the customer is not
	// charged for the time between payment and the anchor.
	ProrationNone = "none"
)

// Plan is a request to the provider to start billing a customer from
// AnchorAt onwards.
type Plan struct {
	CustomerRef          string
	DefaultPaymentMethod string
	ProductRef           string
	AmountMinorUnits     int64
	Currency             string
	IntervalUnit         string
	AnchorAt             time.Time
	ProrationPolicy      string
	IdempotencyKey       string
	Metadata             map[string]string
}

// Scheduled is the provider's answer to a Plan.
type Scheduled struct {
	ID          string
	CustomerRef string
	Status      string
	AnchorAt    time.Time
}

// AnchorFrom returns the first billed cycle start for an event received at now.
func AnchorFrom(now time.Time, delay time.Duration) time.Time {
	return now.Add(delay).Truncate(time.Second)
}
