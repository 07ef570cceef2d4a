package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"checkout-server/internal/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source shared by every Store under test.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
}

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T, c *clock) Store) {
	ctx := context.Background()

	t.Run("first delivery is claimed", func(t *testing.T) {
		s := newStore(t, newClock())
		require.NoError(t, s.Begin(ctx, "evt_new", "checkout.session.completed"))
	})

	t.Run("completed event is rejected", func(t *testing.T) {
		s := newStore(t, newClock())
		require.NoError(t, s.Begin(ctx, "evt_done", "checkout.session.completed"))
		require.NoError(t, s.Complete(ctx, "evt_done", "sub_1", "cus_1"))

		err := s.Begin(ctx, "evt_done", "checkout.session.completed")
		assert.True(t, errors.Is(err, ErrAlreadyProcessed))

		list, err := s.List(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, events.StatusCompleted, list[0].Status)
		require.NotNil(t, list[0].SubscriptionID)
		assert.Equal(t, "sub_1", *list[0].SubscriptionID)
		require.NotNil(t, list[0].CustomerRef)
		assert.Equal(t, "cus_1", *list[0].CustomerRef)
	})

	t.Run("in-flight event is rejected until stale", func(t *testing.T) {
		c := newClock()
		s := newStore(t, c)
		require.NoError(t, s.Begin(ctx, "evt_busy", "checkout.session.completed"))

		c.Advance(time.Minute)
		assert.True(t, errors.Is(s.Begin(ctx, "evt_busy", "checkout.session.completed"), ErrAlreadyProcessed))

		c.Advance(ProcessingTimeout)
		assert.NoError(t, s.Begin(ctx, "evt_busy", "checkout.session.completed"))
	})

	t.Run("failed event can be retried", func(t *testing.T) {
		s := newStore(t, newClock())
		require.NoError(t, s.Begin(ctx, "evt_fail", "checkout.session.completed"))
		require.NoError(t, s.Fail(ctx, "evt_fail", errors.New("card_declined")))

		list, err := s.List(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, events.StatusFailed, list[0].Status)
		require.NotNil(t, list[0].Error)
		assert.Equal(t, "card_declined", *list[0].Error)

		require.NoError(t, s.Begin(ctx, "evt_fail", "checkout.session.completed"))

		list, err = s.List(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, events.StatusProcessing, list[0].Status)
		assert.Equal(t, 2, list[0].Attempts)
		assert.Nil(t, list[0].Error)
	})

	t.Run("list is newest first and limited", func(t *testing.T) {
		c := newClock()
		s := newStore(t, c)
		for _, id := range []string{"evt_a", "evt_b", "evt_c"} {
			require.NoError(t, s.Begin(ctx, id, "checkout.session.completed"))
			c.Advance(time.Second)
		}

		list, err := s.List(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "evt_c", list[0].EventID)
		assert.Equal(t, "evt_b", list[1].EventID)
	})
	t.Run("status filter reaches past the limit window", func(t *testing.T) {
		c := newClock()
		s := newStore(t, c)
		require.NoError(t, s.Begin(ctx, "evt_failed", "checkout.session.completed"))
		require.NoError(t, s.Fail(ctx, "evt_failed", errors.New("card_declined")))
		for _, id := range []string{"evt_ok_1", "evt_ok_2", "evt_ok_3"} {
			c.Advance(time.Second)
			require.NoError(t, s.Begin(ctx, id, "checkout.session.completed"))
			require.NoError(t, s.Complete(ctx, id, "sub_"+id, "cus_1"))
		}

		failed, err := s.List(ctx, events.StatusFailed, 2)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "evt_failed", failed[0].EventID)

		completed, err := s.List(ctx, events.StatusCompleted, 2)
		require.NoError(t, err)
		require.Len(t, completed, 2)
		assert.Equal(t, "evt_ok_3", completed[0].EventID)
		assert.Equal(t, "evt_ok_2", completed[1].EventID)

		none, err := s.List(ctx, events.StatusProcessing, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("concurrent deliveries claim once", func(t *testing.T) {
		s := newStore(t, newClock())

		const deliveries = 16
		var (
			wg   sync.WaitGroup
			errs = make([]error, deliveries)
		)
		for i := 0; i < deliveries; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Begin(ctx, "evt_race", "checkout.session.completed")
			}(i)
		}
		wg.Wait()

		claimed := 0
		for _, err := range errs {
			if err == nil {
				claimed++
				continue
			}
			assert.True(t, errors.Is(err, ErrAlreadyProcessed), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, claimed)

		list, err := s.List(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 1, list[0].Attempts)
	})
}
