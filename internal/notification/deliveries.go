package notification

import (
	"context"
	"sync"

	"stock-alert-service/internal/models"
)

// DeliveryLog records every delivery attempt.
type DeliveryLog interface {
	Record(ctx context.Context, n models.Notification) error
	List(ctx context.Context, f models.NotificationFilter) ([]models.Notification, error)
}

// MemoryLog keeps delivery records in memory, newest last.
type MemoryLog struct {
	mu    sync.Mutex
	items []models.Notification
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Record(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	m.items = append(m.items, n)
	m.mu.Unlock()
	return nil
}

// List returns matching records newest first.
func (m *MemoryLog) List(_ context.Context, f models.NotificationFilter) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, 0)
	for i := len(m.items) - 1; i >= 0; i-- {
		n := m.items[i]
		if f.Channel != "" && n.Channel != f.Channel {
			continue
		}
		if f.Status != "" && n.Status != f.Status {
			continue
		}
		out = append(out, n)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
