package models

import (
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ForecastPoint is one projected day.
type ForecastPoint struct {
	Date           time.Time `json:"date"`
	Sales          float64   `json:"sales"`
	ProjectedStock float64   `json:"projected_stock"`
}

// ReplenishmentSuggestion is computed on demand and never stored as is.
type ReplenishmentSuggestion struct {
	ProductID       string          `json:"product_id"`
	CurrentStock    int             `json:"current_stock"`
	SuggestedAmount int             `json:"suggested_amount"`
	TargetStock     int             `json:"target_stock"`
	AvgDailySales   float64         `json:"avg_daily_sales"`
	DaysOfCover     *float64        `json:"days_of_cover,omitempty"`
	Reason          string          `json:"reason"`
	Priority        Priority        `json:"priority"`
	History         []DailyPoint    `json:"history"`
	Forecast        []ForecastPoint `json:"forecast"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

type PlanStatus string

const (
	PlanDraft      PlanStatus = "draft"
	PlanScheduled  PlanStatus = "scheduled"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
	PlanCancelled  PlanStatus = "cancelled"
)

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanDraft, PlanScheduled, PlanInProgress, PlanCompleted, PlanCancelled:
		return true
	}
	return false
}

// CanTransition walks draft -> scheduled -> in_progress -> completed, with a
// cancel branch from draft and scheduled.
func (s PlanStatus) CanTransition(to PlanStatus) bool {
	switch s {
	case PlanDraft:
		return to == PlanScheduled || to == PlanCancelled
	case PlanScheduled:
		return to == PlanInProgress || to == PlanCancelled
	case PlanInProgress:
		return to == PlanCompleted
	default:
		return false
	}
}

type PlanSource string

const (
	PlanSourceManual     PlanSource = "manual"
	PlanSourceSuggestion PlanSource = "suggestion"
	PlanSourceAuto       PlanSource = "auto"
)

type ReplenishmentPlan struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     string     `json:"product_id"`
	PlanAmount    int        `json:"plan_amount"`
	ExpectedDate  time.Time  `json:"expected_date"`
	Status        PlanStatus `json:"status"`
	Supplier      string     `json:"supplier"`
	UnitCost      float64    `json:"unit_cost"`
	EstimatedCost float64    `json:"estimated_cost"`
	Priority      Priority   `json:"priority"`
	Source        PlanSource `json:"source"`
	StockAtCreate int        `json:"stock_at_create"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PlanCreate is the operator input for a new plan.
type PlanCreate struct {
	ProductID    string    `json:"product_id" binding:"required"`
	PlanAmount   int       `json:"plan_amount"`
	ExpectedDate time.Time `json:"expected_date"`
	Supplier     string    `json:"supplier"`
	UnitCost     float64   `json:"unit_cost"`
	Priority     Priority  `json:"priority"`
}

type PlanFilter struct {
	ProductID string
	Status    PlanStatus
}

func (f PlanFilter) Match(p ReplenishmentPlan) bool {
	if f.ProductID != "" && p.ProductID != f.ProductID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}
