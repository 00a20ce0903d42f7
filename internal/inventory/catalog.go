package inventory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"stock-alert-service/internal/models"
)

const day = 24 * time.Hour

// Catalog keeps products and their movement history in memory.
type Catalog struct {
	mu        sync.RWMutex
	products  map[string]models.Product
	movements map[string][]models.Movement
	now       func() time.Time
}

func NewCatalog(now func() time.Time) *Catalog {
	if now == nil {
		now = time.Now
	}
	return &Catalog{
		products:  make(map[string]models.Product),
		movements: make(map[string][]models.Movement),
		now:       now,
	}
}

// Upsert creates or replaces a product. A stock change on an existing
// product is recorded as an adjustment so the history stays consistent.
func (c *Catalog) Upsert(p models.Product) (models.Product, error) {
	if p.ID == "" {
		return models.Product{}, fmt.Errorf("%w: product id is required", models.ErrInvalidArgument)
	}
	if p.Stock < 0 {
		return models.Product{}, fmt.Errorf("%w: stock %d for product %s", models.ErrInvalidAmount, p.Stock, p.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if old, ok := c.products[p.ID]; ok && old.Stock != p.Stock {
		c.movements[p.ID] = append(c.movements[p.ID], models.Movement{
			ProductID: p.ID,
			Kind:      models.MovementAdjustment,
			Quantity:  p.Stock - old.Stock,
			Reference: "upsert",
			At:        now,
		})
	}
	p.LastUpdate = now
	c.products[p.ID] = p
	return p, nil
}

func (c *Catalog) Get(id string) (models.Product, error) {
	c.mu.RLock()
	p, ok := c.products[id]
	c.mu.RUnlock()
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return p, nil
}

// Category returns the product's category, if the product is known.
func (c *Catalog) Category(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p.Category, ok
}

// List returns products sorted by id, optionally limited to one category.
func (c *Catalog) List(category string) []models.Product {
	c.mu.RLock()
	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplyMovement adds m to the product's stock and records it.
func (c *Catalog) ApplyMovement(m models.Movement) (models.Product, error) {
	switch m.Kind {
	case models.MovementInbound, models.MovementOutbound:
		if m.Quantity <= 0 {
			return models.Product{}, fmt.Errorf("%w: %s quantity must be positive", models.ErrInvalidAmount, m.Kind)
		}
	case models.MovementAdjustment:
		if m.Quantity == 0 {
			return models.Product{}, fmt.Errorf("%w: adjustment must not be zero", models.ErrInvalidAmount)
		}
	default:
		return models.Product{}, fmt.Errorf("%w: movement kind %q", models.ErrInvalidArgument, m.Kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(m)
}

func (c *Catalog) apply(m models.Movement) (models.Product, error) {
	p, ok := c.products[m.ProductID]
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", m.ProductID, models.ErrNotFound)
	}
	next := p.Stock + m.Delta()
	if next < 0 {
		return models.Product{}, fmt.Errorf("%w: movement would take %s to %d", models.ErrInvalidAmount, p.ID, next)
	}
	if m.At.IsZero() {
		m.At = c.now()
	}
	c.movements[p.ID] = append(c.movements[p.ID], m)
	p.Stock = next
	p.LastUpdate = m.At
	c.products[p.ID] = p
	return p, nil
}

// SetStock records an absolute stock reading as an adjustment.
func (c *Catalog) SetStock(id string, stock int, at time.Time) (models.Product, error) {
	if stock < 0 {
		return models.Product{}, fmt.Errorf("%w: stock %d for product %s", models.ErrInvalidAmount, stock, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	if stock == p.Stock {
		return p, nil
	}
	return c.apply(models.Movement{
		ProductID: id,
		Kind:      models.MovementAdjustment,
		Quantity:  stock - p.Stock,
		Reference: "stock reading",
		At:        at,
	})
}

// DailySeries returns one point per UTC day in [from, to): outbound units
// and closing stock. Closing stock is derived backwards from the current
// stock, so movements may have been recorded out of time order.
func (c *Catalog) DailySeries(id string, from, to time.Time) ([]models.DailyPoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	moves := c.movements[id]

	start := from.UTC().Truncate(day)
	var out []models.DailyPoint
	for d := start; d.Before(to); d = d.Add(day) {
		end := d.Add(day)
		point := models.DailyPoint{Date: d, Stock: p.Stock}
		for _, m := range moves {
			if !m.At.Before(end) {
				point.Stock -= m.Delta()
				continue
			}
			if m.Kind == models.MovementOutbound && !m.At.Before(d) {
				point.Sales += m.Quantity
			}
		}
		out = append(out, point)
	}
	return out, nil
}
