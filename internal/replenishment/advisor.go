package replenishment

import (
	"context"
	"fmt"
	"math"
	"time"

	"stock-alert-service/internal/models"
)

const (
	day        = 24 * time.Hour
	maxHorizon = 365

	ReasonNoHistory = "no consumption history"
)

type HistorySource interface {
	Get(id string) (models.Product, error)
	Category(id string) (string, bool)
	DailySeries(id string, from, to time.Time) ([]models.DailyPoint, error)
}

type ThresholdResolver interface {
	Resolve(productID, categoryID string) (models.AlertThreshold, bool)
}

type AdvisorConfig struct {
	WindowDays     int
	SafetyDays     int
	MinSuggestion  int
	SmoothingAlpha float64
}

// Advisor derives reorder suggestions from recent outbound movements.
type Advisor struct {
	history    HistorySource
	thresholds ThresholdResolver
	cfg        AdvisorConfig
	now        func() time.Time
}

func NewAdvisor(history HistorySource, thresholds ThresholdResolver, cfg AdvisorConfig, now func() time.Time) *Advisor {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.SafetyDays <= 0 {
		cfg.SafetyDays = 30
	}
	if cfg.SmoothingAlpha <= 0 || cfg.SmoothingAlpha > 1 {
		cfg.SmoothingAlpha = 0.3
	}
	if now == nil {
		now = time.Now
	}
	return &Advisor{history: history, thresholds: thresholds, cfg: cfg, now: now}
}

// Suggest computes a suggestion over the trailing window of completed days.
// Days of cover below the safety window gives high priority and a reorder
// amount up to the target stock; below twice the window gives medium.
func (a *Advisor) Suggest(_ context.Context, productID string, horizonDays int) (models.ReplenishmentSuggestion, error) {
	if horizonDays <= 0 {
		return models.ReplenishmentSuggestion{}, fmt.Errorf("%w: horizon must be positive, got %d", models.ErrInvalidAmount, horizonDays)
	}
	if horizonDays > maxHorizon {
		return models.ReplenishmentSuggestion{}, fmt.Errorf("%w: horizon %d exceeds %d days", models.ErrInvalidArgument, horizonDays, maxHorizon)
	}

	p, err := a.history.Get(productID)
	if err != nil {
		return models.ReplenishmentSuggestion{}, err
	}

	now := a.now()
	today := now.UTC().Truncate(day)
	from := today.Add(-time.Duration(a.cfg.WindowDays) * day)
	series, err := a.history.DailySeries(productID, from, today)
	if err != nil {
		return models.ReplenishmentSuggestion{}, err
	}

	total := 0
	for _, pt := range series {
		total += pt.Sales
	}
	avg := float64(total) / float64(a.cfg.WindowDays)

	category, _ := a.history.Category(productID)
	threshold, hasThreshold := a.thresholds.Resolve(productID, category)

	s := models.ReplenishmentSuggestion{
		ProductID:     productID,
		CurrentStock:  p.Stock,
		AvgDailySales: avg,
		History:       series,
		GeneratedAt:   now,
	}
	s.Forecast = a.forecast(series, p.Stock, today, horizonDays)

	if avg == 0 {
		s.Priority = models.PriorityLow
		s.Reason = ReasonNoHistory
		if hasThreshold && p.Stock < threshold.MinStock {
			s.SuggestedAmount = a.cfg.MinSuggestion
		}
		s.TargetStock = p.Stock + s.SuggestedAmount
		return s, nil
	}

	cover := float64(p.Stock) / avg
	s.DaysOfCover = &cover

	target := int(math.Ceil(avg * float64(horizonDays+a.cfg.SafetyDays)))
	if hasThreshold && threshold.MaxStock < target {
		target = threshold.MaxStock
	}
	s.TargetStock = target

	safety := float64(a.cfg.SafetyDays)
	switch {
	case cover < safety:
		s.Priority = models.PriorityHigh
		s.SuggestedAmount = max(0, target-p.Stock)
		s.Reason = fmt.Sprintf("stock covers %.1f days, below the %d-day safety window", cover, a.cfg.SafetyDays)
	case cover < 2*safety:
		s.Priority = models.PriorityMedium
		s.Reason = fmt.Sprintf("stock covers %.1f days, within twice the %d-day safety window", cover, a.cfg.SafetyDays)
	default:
		s.Priority = models.PriorityLow
		s.Reason = fmt.Sprintf("stock covers %.1f days", cover)
	}
	return s, nil
}

// forecast projects daily sales with simple exponential smoothing over the
// history and walks stock down by that level for each day of the horizon.
func (a *Advisor) forecast(series []models.DailyPoint, stock int, today time.Time, horizonDays int) []models.ForecastPoint {
	level := 0.0
	for i, pt := range series {
		if i == 0 {
			level = float64(pt.Sales)
			continue
		}
		level = a.cfg.SmoothingAlpha*float64(pt.Sales) + (1-a.cfg.SmoothingAlpha)*level
	}

	out := make([]models.ForecastPoint, 0, horizonDays)
	projected := float64(stock)
	for i := 0; i < horizonDays; i++ {
		projected = math.Max(0, projected-level)
		out = append(out, models.ForecastPoint{
			Date:           today.Add(time.Duration(i) * day),
			Sales:          level,
			ProjectedStock: projected,
		})
	}
	return out
}
