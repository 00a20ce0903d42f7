package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stock-alert-service/internal/config"
	"stock-alert-service/internal/evaluator"
	"stock-alert-service/internal/inventory"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
)

// AutoPlanner creates draft plans for low stock events.
type AutoPlanner interface {
	CreateAuto(ctx context.Context, e models.AlertEvent, t models.AlertThreshold) (*models.ReplenishmentPlan, error)
}

// Service applies stock changes to the catalog and evaluates every new
// stock level against its threshold.
type Service struct {
	catalog   *inventory.Catalog
	evaluator *evaluator.Evaluator
	logger    *logging.Logger
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
	queues []chan stockUpdate
	wg     *sync.WaitGroup
}

// stockUpdate is one queued change: a movement, or an absolute reading
// when reading is set.
type stockUpdate struct {
	movement models.Movement
	reading  *int
}

// New constructs a Service. When planner is not nil, low stock events on
// thresholds with auto replenish produce a draft plan.
func New(catalog *inventory.Catalog, ev *evaluator.Evaluator, planner AutoPlanner, logger *logging.Logger, cfg config.Config) *Service {
	workers := cfg.Notification.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.Notification.QueueSize / workers
	if size < 1 {
		size = 1
	}

	s := &Service{
		catalog:   catalog,
		evaluator: ev,
		logger:    logger,
		now:       time.Now,
		queues:    make([]chan stockUpdate, workers),
	}
	for i := range s.queues {
		s.queues[i] = make(chan stockUpdate, size)
	}

	if planner != nil {
		ev.OnAlert(func(ctx context.Context, e models.AlertEvent, t models.AlertThreshold) {
			plan, err := planner.CreateAuto(ctx, e, t)
			if err != nil {
				logger.Errorf("Auto replenish for product %s failed: %v", e.ProductID, err)
				return
			}
			if plan != nil {
				logger.Infof("Auto replenish plan %s created for product %s (%d units)", plan.ID, plan.ProductID, plan.PlanAmount)
			}
		})
	}
	return s
}

// Start launches one worker per queue.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := range s.queues {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop closes the queues. Workers apply everything already queued before
// they exit; later enqueues are refused.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, q := range s.queues {
		close(q)
	}
}

// QueueMovement enqueues m for asynchronous processing. Movements and
// readings of one product always land on the same worker so they apply in
// arrival order. It reports false when the queue is full or stopped; the
// caller still owns the movement.
func (s *Service) QueueMovement(m models.Movement) bool {
	return s.enqueue(stockUpdate{movement: m})
}

// QueueReading enqueues an absolute stock reading behind any movements
// already queued for the product.
func (s *Service) QueueReading(productID string, stock int) bool {
	return s.enqueue(stockUpdate{movement: models.Movement{ProductID: productID}, reading: &stock})
}

func (s *Service) enqueue(u stockUpdate) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warnf("Service stopped, refusing update for product %s", u.movement.ProductID)
		return false
	}
	q := s.queues[s.shard(u.movement.ProductID)]
	select {
	case q <- u:
		s.logger.Debugf("Queued %s for product %s", u.describe(), u.movement.ProductID)
		return true
	default:
		s.logger.Warnf("Queue full, refusing %s for product %s (ref %q)", u.describe(), u.movement.ProductID, u.movement.Reference)
		return false
	}
}

func (u stockUpdate) describe() string {
	if u.reading != nil {
		return "reading"
	}
	return string(u.movement.Kind) + " movement"
}

func (s *Service) shard(productID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(productID))
	return int(h.Sum32() % uint32(len(s.queues)))
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	ctx := context.Background()
	for u := range s.queues[id] {
		var err error
		if u.reading != nil {
			_, _, err = s.SetStock(ctx, u.movement.ProductID, *u.reading)
		} else {
			_, _, err = s.ApplyMovement(ctx, u.movement)
		}
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"product_id": u.movement.ProductID,
				"update":     u.describe(),
				"quantity":   u.movement.Quantity,
				"reference":  u.movement.Reference,
			}).WithError(err).Error("Stock update rejected")
		}
	}
	s.logger.Infof("Worker %d stopped", id)
}

// ApplyMovement applies m and evaluates the resulting stock. The returned
// event is nil when no threshold was crossed.
func (s *Service) ApplyMovement(ctx context.Context, m models.Movement) (models.Product, *models.AlertEvent, error) {
	var product models.Product
	event, err := s.evaluator.EvaluateFunc(ctx, m.ProductID, func() (int, error) {
		p, err := s.catalog.ApplyMovement(m)
		if err != nil {
			return 0, err
		}
		product = p
		return p.Stock, nil
	})
	if err != nil {
		return product, nil, s.stockError(product, err)
	}
	return product, event, nil
}

// SetStock records an absolute stock reading and evaluates it.
func (s *Service) SetStock(ctx context.Context, productID string, stock int) (models.Product, *models.AlertEvent, error) {
	var product models.Product
	event, err := s.evaluator.EvaluateFunc(ctx, productID, func() (int, error) {
		p, err := s.catalog.SetStock(productID, stock, s.now())
		if err != nil {
			return 0, err
		}
		product = p
		return p.Stock, nil
	})
	if err != nil {
		return product, nil, s.stockError(product, err)
	}
	return product, event, nil
}

// UpsertProduct creates or replaces a product and evaluates its stock.
func (s *Service) UpsertProduct(ctx context.Context, p models.Product) (models.Product, *models.AlertEvent, error) {
	if p.ID == "" {
		return models.Product{}, nil, fmt.Errorf("%w: product id is required", models.ErrInvalidArgument)
	}
	var product models.Product
	event, err := s.evaluator.EvaluateFunc(ctx, p.ID, func() (int, error) {
		stored, err := s.catalog.Upsert(p)
		if err != nil {
			return 0, err
		}
		product = stored
		return stored.Stock, nil
	})
	if err != nil {
		return product, nil, s.stockError(product, err)
	}
	return product, event, nil
}

// stockError keeps the caller's view consistent when the write went through
// but the evaluation failed: the stock change stands and the next reading
// retries the alert.
func (s *Service) stockError(p models.Product, err error) error {
	if p.ID != "" {
		s.logger.Warnf("Stock for product %s is now %d but evaluation failed: %v", p.ID, p.Stock, err)
	}
	return err
}
