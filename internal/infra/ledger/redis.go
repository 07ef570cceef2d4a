package ledger

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"checkout-server/internal/domain/events"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "checkout:webhook:event:"
	redisIndexKey  = "checkout:webhook:events"

	redisListPage = int64(100)

	// Retention outlives the provider's redelivery window (three days).
	Retention = 30 * 24 * time.Hour
)

// Redis keeps one JSON document per event plus a sorted index for listing.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (r *Redis) key(eventID string) string {
	return redisKeyPrefix + eventID
}

func (r *Redis) Begin(ctx context.Context, eventID, eventType string) error {
	now := r.now()
	data, err := json.Marshal(events.ProcessedEvent{
		EventID:   eventID,
		EventType: eventType,
		Status:    events.StatusProcessing,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	created, err := r.client.SetNX(ctx, r.key(eventID), data, Retention).Result()
	if err != nil {
		return errors.Wrapf(err, "claim event %s", eventID)
	}
	if created {
		pipe := r.client.Pipeline()
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(now.UnixNano()), Member: eventID})
		pipe.ZRemRangeByScore(ctx, redisIndexKey, "-inf", formatScore(now.Add(-Retention)))
		if _, err := pipe.Exec(ctx); err != nil {
			return errors.Wrap(err, "index event")
		}
		return nil
	}

	err = r.update(ctx, eventID, func(e *events.ProcessedEvent) error {
		if !reclaimable(e, now) {
			return ErrAlreadyProcessed
		}
		e.Status = events.StatusProcessing
		e.Error = nil
		e.Attempts++
		e.UpdatedAt = now
		return nil
	})
	if errors.Is(err, redis.TxFailedErr) {
		// another delivery changed the record between WATCH and EXEC
		return ErrAlreadyProcessed
	}
	return err
}

func (r *Redis) Complete(ctx context.Context, eventID, subscriptionID, customerRef string) error {
	return r.update(ctx, eventID, func(e *events.ProcessedEvent) error {
		e.Status = events.StatusCompleted
		e.SubscriptionID = strPtr(subscriptionID)
		e.CustomerRef = strPtr(customerRef)
		e.Error = nil
		e.UpdatedAt = r.now()
		return nil
	})
}

func (r *Redis) Fail(ctx context.Context, eventID string, cause error) error {
	return r.update(ctx, eventID, func(e *events.ProcessedEvent) error {
		e.Status = events.StatusFailed
		if cause != nil {
			e.Error = strPtr(cause.Error())
		}
		e.UpdatedAt = r.now()
		return nil
	})
}

// List walks the index newest first, one page at a time, until limit
// matching events are found or the index is exhausted.
func (r *Redis) List(ctx context.Context, status string, limit int) ([]events.ProcessedEvent, error) {
	out := []events.ProcessedEvent{}
	for start := int64(0); ; start += redisListPage {
		ids, err := r.client.ZRevRange(ctx, redisIndexKey, start, start+redisListPage-1).Result()
		if err != nil {
			return nil, errors.Wrap(err, "list event ids")
		}
		if len(ids) == 0 {
			return out, nil
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = r.key(id)
		}
		values, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, errors.Wrap(err, "load events")
		}

		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				// expired between ZREVRANGE and MGET
				continue
			}
			var e events.ProcessedEvent
			if err := json.Unmarshal([]byte(s), &e); err != nil {
				return nil, errors.Wrap(err, "decode event")
			}
			if status != "" && e.Status != status {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
		if int64(len(ids)) < redisListPage {
			return out, nil
		}
	}
}

// update applies fn under WATCH so concurrent deliveries cannot both claim.
func (r *Redis) update(ctx context.Context, eventID string, fn func(*events.ProcessedEvent) error) error {
	key := r.key(eventID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var e events.ProcessedEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return errors.Wrap(err, "decode event")
		}
		if err := fn(&e); err != nil {
			return err
		}
		data, err := json.Marshal(e)
		if err != nil {
			return errors.Wrap(err, "encode event")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, Retention)
			return nil
		})
		return err
	}, key)
	return err
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
