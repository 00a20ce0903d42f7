package evaluator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stock-alert-service/internal/ledger"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
)

type ThresholdResolver interface {
	Resolve(productID, categoryID string) (models.AlertThreshold, bool)
}

type CategoryLookup interface {
	Category(productID string) (string, bool)
}

// Hook is called after an alert event has been recorded, outside the
// product lock.
type Hook func(ctx context.Context, event models.AlertEvent, threshold models.AlertThreshold)

// Evaluator classifies stock readings and records an alert event each time
// a product moves into a breach state. Readings for one product are
// serialized; different products proceed in parallel.
type Evaluator struct {
	thresholds ThresholdResolver
	categories CategoryLookup
	ledger     ledger.Ledger
	logger     *logging.Logger
	now        func() time.Time

	mu     sync.Mutex
	states map[string]*productState
	hooks  []Hook
}

type productState struct {
	mu    sync.Mutex
	class models.Classification
}

func New(thresholds ThresholdResolver, categories CategoryLookup, l ledger.Ledger, logger *logging.Logger, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		thresholds: thresholds,
		categories: categories,
		ledger:     l,
		logger:     logger,
		now:        now,
		states:     make(map[string]*productState),
	}
}

// OnAlert registers a hook. Register hooks before the first Evaluate.
func (e *Evaluator) OnAlert(h Hook) {
	e.mu.Lock()
	e.hooks = append(e.hooks, h)
	e.mu.Unlock()
}

func (e *Evaluator) state(productID string) *productState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.states[productID]
	if !ok {
		s = &productState{class: models.ClassNormal}
		e.states[productID] = s
	}
	return s
}

// Classification returns the last tracked classification for a product.
func (e *Evaluator) Classification(productID string) models.Classification {
	s := e.state(productID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.class
}

// Evaluate classifies newStock for productID. It returns nil when no event
// is due, including when the product has no enabled threshold.
func (e *Evaluator) Evaluate(ctx context.Context, productID string, newStock int) (*models.AlertEvent, error) {
	return e.EvaluateFunc(ctx, productID, func() (int, error) { return newStock, nil })
}

// EvaluateFunc runs read under the product lock and evaluates the stock it
// returns, so a stock write and its evaluation cannot interleave with
// another reading of the same product.
func (e *Evaluator) EvaluateFunc(ctx context.Context, productID string, read func() (int, error)) (*models.AlertEvent, error) {
	s := e.state(productID)
	s.mu.Lock()
	event, threshold, err := e.evaluateLocked(ctx, s, productID, read)
	s.mu.Unlock()
	if err != nil || event == nil {
		return nil, err
	}

	e.mu.Lock()
	hooks := append([]Hook(nil), e.hooks...)
	e.mu.Unlock()
	for _, h := range hooks {
		h(ctx, *event, threshold)
	}
	return event, nil
}

func (e *Evaluator) evaluateLocked(ctx context.Context, s *productState, productID string, read func() (int, error)) (*models.AlertEvent, models.AlertThreshold, error) {
	stock, err := read()
	if err != nil {
		return nil, models.AlertThreshold{}, err
	}
	if stock < 0 {
		return nil, models.AlertThreshold{}, fmt.Errorf("%w: stock %d for product %s", models.ErrInvalidAmount, stock, productID)
	}

	category, _ := e.categories.Category(productID)
	threshold, ok := e.thresholds.Resolve(productID, category)
	if !ok || !threshold.IsEnabled {
		s.class = models.ClassNormal
		return nil, models.AlertThreshold{}, nil
	}

	class := models.Classify(stock, threshold)
	prev := s.class
	if class == prev || class == models.ClassNormal {
		s.class = class
		return nil, threshold, nil
	}

	event := models.AlertEvent{
		ID:           uuid.New(),
		ProductID:    productID,
		ThresholdKey: threshold.Key.String(),
		Frequency:    threshold.Frequency,
		Timestamp:    e.now(),
		Status:       models.AlertPending,
	}
	event.StockAtTrigger = stock
	event.UpdatedAt = event.Timestamp
	switch class {
	case models.ClassLow:
		event.Type = models.AlertLowStock
		event.ThresholdAtTrigger = threshold.MinStock
	case models.ClassHigh:
		event.Type = models.AlertHighStock
		event.ThresholdAtTrigger = threshold.MaxStock
	}

	// The classification only advances once the event is durable, so a
	// failed append is retried by the next reading.
	if err := e.ledger.Append(ctx, event); err != nil {
		return nil, models.AlertThreshold{}, fmt.Errorf("record alert for product %s: %w", productID, err)
	}
	s.class = class

	e.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"event_id":   event.ID.String(),
		"type":       event.Type,
		"stock":      stock,
		"threshold":  event.ThresholdAtTrigger,
	}).Info("Stock threshold breached")
	return &event, threshold, nil
}
