package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"checkout-server/internal/domain/events"
)

// Memory is a process-local Store used when no database is configured.
// Deduplication only holds for a single instance.
type Memory struct {
	mu     sync.Mutex
	events map[string]*events.ProcessedEvent
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		events: make(map[string]*events.ProcessedEvent),
		now:    time.Now,
	}
}

func (m *Memory) Begin(_ context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.events[eventID]; ok {
		if !reclaimable(e, now) {
			return ErrAlreadyProcessed
		}
		e.Status = events.StatusProcessing
		e.Error = nil
		e.Attempts++
		e.UpdatedAt = now
		return nil
	}

	m.events[eventID] = &events.ProcessedEvent{
		EventID:   eventID,
		EventType: eventType,
		Status:    events.StatusProcessing,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (m *Memory) Complete(_ context.Context, eventID, subscriptionID, customerRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return nil
	}
	e.Status = events.StatusCompleted
	e.SubscriptionID = strPtr(subscriptionID)
	e.CustomerRef = strPtr(customerRef)
	e.Error = nil
	e.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Fail(_ context.Context, eventID string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return nil
	}
	e.Status = events.StatusFailed
	if cause != nil {
		e.Error = strPtr(cause.Error())
	}
	e.UpdatedAt = m.now()
	return nil
}

func (m *Memory) List(_ context.Context, status string, limit int) ([]events.ProcessedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]events.ProcessedEvent, 0, len(m.events))
	for _, e := range m.events {
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
