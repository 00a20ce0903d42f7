package thresholds

import (
	"fmt"
	"sort"
	"sync"

	"stock-alert-service/internal/models"
)

// Store holds product and category thresholds. A product threshold replaces
// the category threshold as a whole; fields are never merged across levels.
type Store struct {
	mu    sync.RWMutex
	items map[models.ThresholdKey]models.AlertThreshold
}

func NewStore() *Store {
	return &Store{items: make(map[models.ThresholdKey]models.AlertThreshold)}
}

// Set validates and stores t under key, replacing any previous value.
func (s *Store) Set(key models.ThresholdKey, t models.AlertThreshold) error {
	if key.ID == "" || (key.Scope != models.ScopeProduct && key.Scope != models.ScopeCategory) {
		return fmt.Errorf("%w: threshold key %q", models.ErrInvalidArgument, key)
	}
	t.Key = key
	if t.Frequency == "" {
		t.Frequency = models.FrequencyRealtime
	}
	if err := t.Validate(); err != nil {
		return err
	}
	t.Contacts = append([]string(nil), t.Contacts...)

	s.mu.Lock()
	s.items[key] = t
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(key models.ThresholdKey) (models.AlertThreshold, error) {
	s.mu.RLock()
	t, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return models.AlertThreshold{}, fmt.Errorf("threshold %s: %w", key, models.ErrNotFound)
	}
	return t, nil
}

// SetBatch applies patch to the threshold of every category in categoryIDs,
// creating missing ones from the patch alone. Either all categories are
// written or none are.
func (s *Store) SetBatch(categoryIDs []string, patch models.ThresholdPatch) (int, error) {
	if len(categoryIDs) == 0 {
		return 0, fmt.Errorf("%w: no categories given", models.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[models.ThresholdKey]models.AlertThreshold, len(categoryIDs))
	for _, id := range categoryIDs {
		if id == "" {
			return 0, fmt.Errorf("%w: empty category id", models.ErrInvalidArgument)
		}
		key := models.CategoryKey(id)
		base, ok := s.items[key]
		if !ok {
			base = models.AlertThreshold{Key: key, IsEnabled: true, Frequency: models.FrequencyRealtime}
		}
		next := patch.Apply(base)
		next.Key = key
		if err := next.Validate(); err != nil {
			return 0, fmt.Errorf("category %s: %w", id, err)
		}
		staged[key] = next
	}
	for k, v := range staged {
		s.items[k] = v
	}
	return len(staged), nil
}

// Resolve returns the product threshold if one exists, else the category
// threshold. ok is false when neither is set.
func (s *Store) Resolve(productID, categoryID string) (models.AlertThreshold, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.items[models.ProductKey(productID)]; ok {
		return t, true
	}
	if categoryID == "" {
		return models.AlertThreshold{}, false
	}
	t, ok := s.items[models.CategoryKey(categoryID)]
	return t, ok
}

// List returns every threshold, product scope first, each sorted by id.
func (s *Store) List() []models.AlertThreshold {
	s.mu.RLock()
	out := make([]models.AlertThreshold, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Scope != out[j].Key.Scope {
			return out[i].Key.Scope == models.ScopeProduct
		}
		return out[i].Key.ID < out[j].Key.ID
	})
	return out
}
