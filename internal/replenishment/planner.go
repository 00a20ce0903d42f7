package replenishment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
)

// Repository stores plans. UpdateStatus must only apply when the stored
// status still equals from.
type Repository interface {
	Create(ctx context.Context, p models.ReplenishmentPlan) error
	Get(ctx context.Context, id uuid.UUID) (models.ReplenishmentPlan, error)
	List(ctx context.Context, f models.PlanFilter) ([]models.ReplenishmentPlan, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.PlanStatus, at time.Time) (models.ReplenishmentPlan, error)
}

type ProductLookup interface {
	Get(id string) (models.Product, error)
}

const defaultLeadTime = 7 * day

// Planner turns suggestions and operator input into replenishment plans.
type Planner struct {
	repo     Repository
	products ProductLookup
	logger   *logging.Logger
	now      func() time.Time
}

func NewPlanner(repo Repository, products ProductLookup, logger *logging.Logger, now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{repo: repo, products: products, logger: logger, now: now}
}

// Create stores a manual draft plan.
func (p *Planner) Create(ctx context.Context, in models.PlanCreate) (models.ReplenishmentPlan, error) {
	return p.create(ctx, in, models.PlanSourceManual)
}

// Confirm stores a draft plan from a suggestion. Fields left empty in `in`
// are taken from the suggestion.
func (p *Planner) Confirm(ctx context.Context, s models.ReplenishmentSuggestion, in models.PlanCreate) (models.ReplenishmentPlan, error) {
	in.ProductID = s.ProductID
	if in.PlanAmount == 0 {
		in.PlanAmount = s.SuggestedAmount
	}
	if in.Priority == "" {
		in.Priority = s.Priority
	}
	return p.create(ctx, in, models.PlanSourceSuggestion)
}

// CreateAuto stores a draft plan for a low stock event whose threshold has
// auto replenish switched on. It returns nil when nothing was due.
func (p *Planner) CreateAuto(ctx context.Context, e models.AlertEvent, t models.AlertThreshold) (*models.ReplenishmentPlan, error) {
	if e.Type != models.AlertLowStock || !t.AutoReplenish || t.ReplenishAmount <= 0 {
		return nil, nil
	}
	plan, err := p.create(ctx, models.PlanCreate{
		ProductID:  e.ProductID,
		PlanAmount: t.ReplenishAmount,
		Priority:   models.PriorityHigh,
	}, models.PlanSourceAuto)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *Planner) create(ctx context.Context, in models.PlanCreate, source models.PlanSource) (models.ReplenishmentPlan, error) {
	if in.PlanAmount <= 0 {
		return models.ReplenishmentPlan{}, fmt.Errorf("%w: plan amount must be positive, got %d", models.ErrInvalidAmount, in.PlanAmount)
	}
	if in.UnitCost < 0 {
		return models.ReplenishmentPlan{}, fmt.Errorf("%w: unit cost must not be negative", models.ErrInvalidAmount)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return models.ReplenishmentPlan{}, fmt.Errorf("%w: priority %q", models.ErrInvalidArgument, in.Priority)
	}
	product, err := p.products.Get(in.ProductID)
	if err != nil {
		return models.ReplenishmentPlan{}, err
	}

	now := p.now()
	if in.ExpectedDate.IsZero() {
		in.ExpectedDate = now.Add(defaultLeadTime)
	}
	plan := models.ReplenishmentPlan{
		ID:            uuid.New(),
		ProductID:     in.ProductID,
		PlanAmount:    in.PlanAmount,
		ExpectedDate:  in.ExpectedDate,
		Status:        models.PlanDraft,
		Supplier:      in.Supplier,
		UnitCost:      in.UnitCost,
		EstimatedCost: float64(in.PlanAmount) * in.UnitCost,
		Priority:      in.Priority,
		Source:        source,
		StockAtCreate: product.Stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.repo.Create(ctx, plan); err != nil {
		return models.ReplenishmentPlan{}, fmt.Errorf("create plan: %w", err)
	}
	p.logger.WithFields(logrus.Fields{
		"plan_id":    plan.ID.String(),
		"product_id": plan.ProductID,
		"amount":     plan.PlanAmount,
		"source":     source,
	}).Info("Replenishment plan created")
	return plan, nil
}

func (p *Planner) Get(ctx context.Context, id uuid.UUID) (models.ReplenishmentPlan, error) {
	return p.repo.Get(ctx, id)
}

func (p *Planner) List(ctx context.Context, f models.PlanFilter) ([]models.ReplenishmentPlan, error) {
	return p.repo.List(ctx, f)
}

// Transition moves a plan forward. Backward moves and leaving a terminal
// status fail with ErrInvalidTransition.
func (p *Planner) Transition(ctx context.Context, id uuid.UUID, to models.PlanStatus) (models.ReplenishmentPlan, error) {
	if !to.Valid() {
		return models.ReplenishmentPlan{}, fmt.Errorf("%w: plan status %q", models.ErrInvalidArgument, to)
	}
	plan, err := p.repo.Get(ctx, id)
	if err != nil {
		return models.ReplenishmentPlan{}, err
	}
	if !plan.Status.CanTransition(to) {
		return models.ReplenishmentPlan{}, fmt.Errorf("%w: plan %s %s -> %s", models.ErrInvalidTransition, id, plan.Status, to)
	}
	updated, err := p.repo.UpdateStatus(ctx, id, plan.Status, to, p.now())
	if err != nil {
		return models.ReplenishmentPlan{}, err
	}
	p.logger.Infof("Plan %s moved %s -> %s", id, plan.Status, to)
	return updated, nil
}
