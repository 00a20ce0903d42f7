package thresholds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-alert-service/internal/models"
)

func intPtr(v int) *int { return &v }

func TestSetValidatesRange(t *testing.T) {
	tests := []struct {
		name    string
		min     int
		max     int
		wantErr error
	}{
		{name: "valid band", min: 100, max: 1000},
		{name: "zero min", min: 0, max: 1},
		{name: "equal bounds", min: 50, max: 50, wantErr: models.ErrInvalidRange},
		{name: "inverted bounds", min: 60, max: 50, wantErr: models.ErrInvalidRange},
		{name: "negative min", min: -1, max: 50, wantErr: models.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := s.Set(models.ProductKey("P1"), models.AlertThreshold{MinStock: tt.min, MaxStock: tt.max, IsEnabled: true})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, getErr := s.Get(models.ProductKey("P1"))
				assert.ErrorIs(t, getErr, models.ErrNotFound)
				return
			}
			require.NoError(t, err)
			got, err := s.Get(models.ProductKey("P1"))
			require.NoError(t, err)
			assert.Equal(t, tt.min, got.MinStock)
			assert.Equal(t, models.FrequencyRealtime, got.Frequency)
		})
	}
}

func TestSetRejectsAutoReplenishWithoutAmount(t *testing.T) {
	s := NewStore()
	err := s.Set(models.ProductKey("P1"), models.AlertThreshold{MinStock: 1, MaxStock: 10, AutoReplenish: true})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestResolvePrefersProductOverCategory(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(models.CategoryKey("antibiotics"), models.AlertThreshold{MinStock: 10, MaxStock: 500, IsEnabled: true}))
	require.NoError(t, s.Set(models.ProductKey("P1"), models.AlertThreshold{MinStock: 100, MaxStock: 1000, IsEnabled: true}))

	got, ok := s.Resolve("P1", "antibiotics")
	require.True(t, ok)
	assert.Equal(t, 100, got.MinStock)
	assert.Equal(t, 1000, got.MaxStock)

	got, ok = s.Resolve("P2", "antibiotics")
	require.True(t, ok)
	assert.Equal(t, 10, got.MinStock)

	_, ok = s.Resolve("P3", "vitamins")
	assert.False(t, ok)
}

func TestSetBatchCreatesAndMerges(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(models.CategoryKey("a"), models.AlertThreshold{MinStock: 10, MaxStock: 100, IsEnabled: true, Contacts: []string{"ops@example.com"}}))

	n, err := s.SetBatch([]string{"a", "b"}, models.ThresholdPatch{MinStock: intPtr(20), MaxStock: intPtr(200)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, err := s.Get(models.CategoryKey("a"))
	require.NoError(t, err)
	assert.Equal(t, 20, a.MinStock)
	assert.Equal(t, []string{"ops@example.com"}, a.Contacts)

	b, err := s.Get(models.CategoryKey("b"))
	require.NoError(t, err)
	assert.Equal(t, 200, b.MaxStock)
	assert.True(t, b.IsEnabled)
}

func TestSetBatchIsAllOrNothing(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(models.CategoryKey("a"), models.AlertThreshold{MinStock: 10, MaxStock: 100, IsEnabled: true}))
	require.NoError(t, s.Set(models.CategoryKey("b"), models.AlertThreshold{MinStock: 10, MaxStock: 500, IsEnabled: true}))

	// 300 fits under b's max but not under a's.
	_, err := s.SetBatch([]string{"b", "a"}, models.ThresholdPatch{MinStock: intPtr(300)})
	assert.ErrorIs(t, err, models.ErrInvalidRange)

	b, err := s.Get(models.CategoryKey("b"))
	require.NoError(t, err)
	assert.Equal(t, 10, b.MinStock)
}

func TestListOrdersProductsFirst(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(models.CategoryKey("c"), models.AlertThreshold{MinStock: 1, MaxStock: 2}))
	require.NoError(t, s.Set(models.ProductKey("P2"), models.AlertThreshold{MinStock: 1, MaxStock: 2}))
	require.NoError(t, s.Set(models.ProductKey("P1"), models.AlertThreshold{MinStock: 1, MaxStock: 2}))

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "P1", list[0].Key.ID)
	assert.Equal(t, "P2", list[1].Key.ID)
	assert.Equal(t, models.ScopeCategory, list[2].Key.Scope)
}
