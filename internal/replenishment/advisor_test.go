package replenishment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-alert-service/internal/inventory"
	"stock-alert-service/internal/models"
	"stock-alert-service/internal/thresholds"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// seed creates P1 with dailySales outbound on each of the last `days` days,
// ending at finalStock.
func seed(t *testing.T, finalStock, dailySales, days int) *inventory.Catalog {
	t.Helper()
	c := inventory.NewCatalog(clock)
	_, err := c.Upsert(models.Product{ID: "P1", Category: "antibiotics", Stock: finalStock + dailySales*days})
	require.NoError(t, err)
	today := now.Truncate(24 * time.Hour)
	for i := 1; i <= days; i++ {
		_, err := c.ApplyMovement(models.Movement{
			ProductID: "P1",
			Kind:      models.MovementOutbound,
			Quantity:  dailySales,
			At:        today.Add(-time.Duration(i)*24*time.Hour + 9*time.Hour),
		})
		require.NoError(t, err)
	}
	return c
}

func thresholdStore(t *testing.T, min, max int) *thresholds.Store {
	t.Helper()
	s := thresholds.NewStore()
	require.NoError(t, s.Set(models.ProductKey("P1"), models.AlertThreshold{MinStock: min, MaxStock: max, IsEnabled: true}))
	return s
}

func TestSuggestHighPriorityScenario(t *testing.T) {
	c := seed(t, 85, 3, 30)
	a := NewAdvisor(c, thresholdStore(t, 100, 1000), AdvisorConfig{WindowDays: 30, SafetyDays: 30}, clock)

	s, err := a.Suggest(context.Background(), "P1", 30)
	require.NoError(t, err)

	assert.Equal(t, 85, s.CurrentStock)
	assert.InDelta(t, 3.0, s.AvgDailySales, 1e-9)
	require.NotNil(t, s.DaysOfCover)
	assert.InDelta(t, 28.33, *s.DaysOfCover, 0.01)
	assert.Equal(t, models.PriorityHigh, s.Priority)
	assert.Equal(t, 180, s.TargetStock)
	assert.Equal(t, 95, s.SuggestedAmount)
	assert.Len(t, s.History, 30)
	require.Len(t, s.Forecast, 30)
	assert.InDelta(t, 82.0, s.Forecast[0].ProjectedStock, 1e-9)
}

func TestSuggestPriorityBands(t *testing.T) {
	tests := []struct {
		name       string
		stock      int
		wantPrio   models.Priority
		wantAmount int
	}{
		{name: "under safety window", stock: 60, wantPrio: models.PriorityHigh, wantAmount: 120},
		{name: "within twice the window", stock: 120, wantPrio: models.PriorityMedium, wantAmount: 0},
		{name: "well stocked", stock: 300, wantPrio: models.PriorityLow, wantAmount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := seed(t, tt.stock, 3, 30)
			a := NewAdvisor(c, thresholdStore(t, 10, 1000), AdvisorConfig{WindowDays: 30, SafetyDays: 30}, clock)
			s, err := a.Suggest(context.Background(), "P1", 30)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrio, s.Priority)
			assert.Equal(t, tt.wantAmount, s.SuggestedAmount)
		})
	}
}

func TestSuggestCapsTargetAtMaxStock(t *testing.T) {
	c := seed(t, 85, 3, 30)
	a := NewAdvisor(c, thresholdStore(t, 100, 150), AdvisorConfig{WindowDays: 30, SafetyDays: 30}, clock)

	s, err := a.Suggest(context.Background(), "P1", 30)
	require.NoError(t, err)
	assert.Equal(t, 150, s.TargetStock)
	assert.Equal(t, 65, s.SuggestedAmount)
}

func TestSuggestWithoutConsumption(t *testing.T) {
	c := inventory.NewCatalog(clock)
	_, err := c.Upsert(models.Product{ID: "P1", Stock: 40})
	require.NoError(t, err)
	a := NewAdvisor(c, thresholdStore(t, 100, 1000), AdvisorConfig{MinSuggestion: 50}, clock)

	s, err := a.Suggest(context.Background(), "P1", 14)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, s.Priority)
	assert.Equal(t, ReasonNoHistory, s.Reason)
	assert.Nil(t, s.DaysOfCover)
	assert.Equal(t, 50, s.SuggestedAmount)
	assert.Len(t, s.Forecast, 14)
}

func TestSuggestRejectsBadInput(t *testing.T) {
	c := seed(t, 85, 3, 30)
	a := NewAdvisor(c, thresholds.NewStore(), AdvisorConfig{}, clock)

	_, err := a.Suggest(context.Background(), "P1", 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = a.Suggest(context.Background(), "P1", 1000)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = a.Suggest(context.Background(), "nope", 30)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
