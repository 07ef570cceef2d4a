package ledger

import (
	"context"
	"errors"
	"time"

	"checkout-server/internal/domain/events"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm persists the ledger in the processed_events table.
type Gorm struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db, now: time.Now}
}

func (g *Gorm) Begin(ctx context.Context, eventID, eventType string) error {
	now := g.now()

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := events.ProcessedEvent{
			EventID:   eventID,
			EventType: eventType,
			Status:    events.StatusProcessing,
			Attempts:  1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var existing events.ProcessedEvent
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("event_id = ?", eventID).
			First(&existing).Error; err != nil {
			return err
		}
		if !reclaimable(&existing, now) {
			return ErrAlreadyProcessed
		}

		return tx.Model(&events.ProcessedEvent{}).
			Where("event_id = ?", eventID).
			Updates(map[string]interface{}{
				"status":     events.StatusProcessing,
				"error":      nil,
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": now,
			}).Error
	})
}

func (g *Gorm) Complete(ctx context.Context, eventID, subscriptionID, customerRef string) error {
	return g.db.WithContext(ctx).Model(&events.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":          events.StatusCompleted,
			"subscription_id": strPtr(subscriptionID),
			"customer_ref":    strPtr(customerRef),
			"error":           nil,
			"updated_at":      g.now(),
		}).Error
}

func (g *Gorm) Fail(ctx context.Context, eventID string, cause error) error {
	var msg *string
	if cause != nil {
		msg = strPtr(cause.Error())
	}
	return g.db.WithContext(ctx).Model(&events.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":     events.StatusFailed,
			"error":      msg,
			"updated_at": g.now(),
		}).Error
}

func (g *Gorm) List(ctx context.Context, status string, limit int) ([]events.ProcessedEvent, error) {
	rows := []events.ProcessedEvent{}
	q := g.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return rows, nil
}
