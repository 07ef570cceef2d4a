package ledger

import (
	"context"
	"errors"
	"time"

	"checkout-server/internal/domain/events"
)

// ErrAlreadyProcessed is returned by Begin for an event that has completed or
// is still being handled by another request.
var ErrAlreadyProcessed = errors.New("event already processed")

// ProcessingTimeout bounds how long a claimed event blocks redeliveries. A
// claim older than this is assumed to belong to a crashed request.
const ProcessingTimeout = 5 * time.Minute

// Store deduplicates provider webhook events by id.
type Store interface {
	// Begin claims eventID. Failed and stale claims may be taken again.
	Begin(ctx context.Context, eventID, eventType string) error
	Complete(ctx context.Context, eventID, subscriptionID, customerRef string) error
	Fail(ctx context.Context, eventID string, cause error) error
	// List returns the most recent events first. A non-empty status keeps
	// only events in that state; the limit applies after filtering.
	List(ctx context.Context, status string, limit int) ([]events.ProcessedEvent, error)
}

func reclaimable(e *events.ProcessedEvent, now time.Time) bool {
	switch e.Status {
	case events.StatusFailed:
		return true
	case events.StatusProcessing:
		return now.Sub(e.UpdatedAt) > ProcessingTimeout
	default:
		return false
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
