package events

import "time"

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ProcessedEvent records a provider webhook event so redeliveries are not
// acted on twice.
type ProcessedEvent struct {
	EventID        string    `gorm:"primaryKey;column:event_id" json:"event_id"`
	EventType      string    `gorm:"not null" json:"event_type"`
	Status         string    `gorm:"not null;index" json:"status"`
	SubscriptionID *string   `json:"subscription_id,omitempty"`
	CustomerRef    *string   `json:"customer_ref,omitempty"`
	Error          *string   `json:"error,omitempty"`
	Attempts       int       `gorm:"not null;default:1" json:"attempts"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
