package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-alert-service/internal/models"
)

// Memory is an in-process Ledger.
type Memory struct {
	mu     sync.Mutex
	events []models.AlertEvent
	index  map[uuid.UUID]int
	now    func() time.Time
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{index: make(map[uuid.UUID]int), now: now}
}

func (m *Memory) Append(_ context.Context, e models.AlertEvent) error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("%w: alert event without id", models.ErrInvalidArgument)
	}
	if e.Status == "" {
		e.Status = models.AlertPending
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.Timestamp
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.index[e.ID]; dup {
		return fmt.Errorf("%w: alert event %s already recorded", models.ErrInvalidArgument, e.ID)
	}
	m.index[e.ID] = len(m.events)
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (models.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("alert event %s: %w", id, models.ErrNotFound)
	}
	return m.events[i], nil
}

func (m *Memory) List(_ context.Context, f models.AlertFilter) ([]models.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AlertEvent, 0)
	for _, e := range m.events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) UpdateStatus(_ context.Context, id uuid.UUID, status models.AlertStatus) (models.AlertEvent, error) {
	if !status.Valid() {
		return models.AlertEvent{}, fmt.Errorf("%w: alert status %q", models.ErrInvalidArgument, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("alert event %s: %w", id, models.ErrNotFound)
	}
	e := m.events[i]
	if !e.Status.CanTransition(status) {
		return models.AlertEvent{}, fmt.Errorf("%w: alert %s %s -> %s", models.ErrInvalidTransition, id, e.Status, status)
	}
	e.Status = status
	e.UpdatedAt = m.now()
	m.events[i] = e
	return e, nil
}

func (m *Memory) ClaimEvents(_ context.Context, ids []uuid.UUID, at time.Time) ([]models.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []models.AlertEvent
	for _, id := range ids {
		i, ok := m.index[id]
		if !ok || m.events[i].DispatchedAt != nil {
			continue
		}
		claimed = append(claimed, m.claim(i, at))
	}
	return claimed, nil
}

func (m *Memory) ClaimPending(_ context.Context, freq models.Frequency, before, at time.Time) ([]models.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []models.AlertEvent
	for i, e := range m.events {
		if e.DispatchedAt != nil || e.Status != models.AlertPending || e.Frequency != freq {
			continue
		}
		if !e.Timestamp.Before(before) {
			continue
		}
		claimed = append(claimed, m.claim(i, at))
	}
	return claimed, nil
}

func (m *Memory) claim(i int, at time.Time) models.AlertEvent {
	t := at
	m.events[i].DispatchedAt = &t
	return m.events[i]
}
