package replenishment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-alert-service/internal/models"
)

// MemoryRepository keeps plans in creation order.
type MemoryRepository struct {
	mu    sync.Mutex
	plans []models.ReplenishmentPlan
	index map[uuid.UUID]int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{index: make(map[uuid.UUID]int)}
}

func (r *MemoryRepository) Create(_ context.Context, p models.ReplenishmentPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.index[p.ID]; dup {
		return fmt.Errorf("%w: plan %s already exists", models.ErrInvalidArgument, p.ID)
	}
	r.index[p.ID] = len(r.plans)
	r.plans = append(r.plans, p)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (models.ReplenishmentPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return models.ReplenishmentPlan{}, fmt.Errorf("plan %s: %w", id, models.ErrNotFound)
	}
	return r.plans[i], nil
}

func (r *MemoryRepository) List(_ context.Context, f models.PlanFilter) ([]models.ReplenishmentPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ReplenishmentPlan, 0)
	for _, p := range r.plans {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.PlanStatus, at time.Time) (models.ReplenishmentPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return models.ReplenishmentPlan{}, fmt.Errorf("plan %s: %w", id, models.ErrNotFound)
	}
	if r.plans[i].Status != from {
		return models.ReplenishmentPlan{}, fmt.Errorf("%w: plan %s is %s, not %s", models.ErrInvalidTransition, id, r.plans[i].Status, from)
	}
	r.plans[i].Status = to
	r.plans[i].UpdatedAt = at
	return r.plans[i], nil
}
