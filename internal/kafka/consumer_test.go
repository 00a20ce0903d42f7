package kafka

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-alert-service/internal/config"
	"stock-alert-service/internal/evaluator"
	"stock-alert-service/internal/inventory"
	"stock-alert-service/internal/ledger"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
	"stock-alert-service/internal/services"
	"stock-alert-service/internal/thresholds"
)

func TestDecode(t *testing.T) {
	at := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

	m, reading, err := decode([]byte(`{"product_id":"P1","kind":"outbound","quantity":12,"reference":"order-77","at":"2026-04-02T10:30:00Z"}`))
	require.NoError(t, err)
	assert.Nil(t, reading)
	assert.Equal(t, models.Movement{ProductID: "P1", Kind: models.MovementOutbound, Quantity: 12, Reference: "order-77", At: at}, m)

	m, reading, err = decode([]byte(`{"product_id":"P2","stock":0}`))
	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.Equal(t, 0, *reading)
	assert.Equal(t, "P2", m.ProductID)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{name: "missing product", payload: `{"kind":"inbound","quantity":1}`, wantErr: models.ErrInvalidArgument},
		{name: "unknown kind", payload: `{"product_id":"P1","kind":"transfer","quantity":1}`, wantErr: models.ErrInvalidArgument},
		{name: "negative reading", payload: `{"product_id":"P1","stock":-4}`, wantErr: models.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decode([]byte(tt.payload))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, _, err := decode([]byte(`not json`))
	assert.Error(t, err)
}

type recordingSink struct {
	mu      sync.Mutex
	refuse  int // offers to refuse before accepting, -1 refuses forever
	offers  int
	updates []string
}

func (s *recordingSink) accept(update string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers++
	if s.refuse < 0 || s.offers <= s.refuse {
		return false
	}
	s.updates = append(s.updates, update)
	return true
}

func (s *recordingSink) QueueMovement(m models.Movement) bool {
	return s.accept(fmt.Sprintf("%s %s %d", m.ProductID, m.Kind, m.Quantity))
}

func (s *recordingSink) QueueReading(id string, stock int) bool {
	return s.accept(fmt.Sprintf("%s reading %d", id, stock))
}

func newTestConsumer(sink StockSink) *Consumer {
	return &Consumer{sink: sink, logger: logging.NewNop(), delay: time.Millisecond}
}

func TestHandleRoutesMessages(t *testing.T) {
	sink := &recordingSink{}
	c := newTestConsumer(sink)
	ctx := context.Background()

	assert.True(t, c.handle(ctx, []byte(`{"product_id":"P1","kind":"inbound","quantity":5}`)))
	assert.True(t, c.handle(ctx, []byte(`{"product_id":"P1","stock":85}`)))
	// Unparseable messages are skipped, not retried.
	assert.True(t, c.handle(ctx, []byte(`{"product_id":""}`)))

	assert.Equal(t, []string{"P1 inbound 5", "P1 reading 85"}, sink.updates)
}

func TestHandleRetriesWhileQueueFull(t *testing.T) {
	sink := &recordingSink{refuse: 7}
	c := newTestConsumer(sink)

	assert.True(t, c.handle(context.Background(), []byte(`{"product_id":"P1","kind":"outbound","quantity":3}`)))
	assert.Equal(t, 8, sink.offers)
	assert.Equal(t, []string{"P1 outbound 3"}, sink.updates)
}

func TestHandleStopsWhenCancelled(t *testing.T) {
	sink := &recordingSink{refuse: -1}
	c := newTestConsumer(sink)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.False(t, c.handle(ctx, []byte(`{"product_id":"P1","stock":10}`)))
	assert.Empty(t, sink.updates)
}

func TestFeedAppliesInArrivalOrder(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC) }
	logger := logging.NewNop()
	catalog := inventory.NewCatalog(clock)
	store := thresholds.NewStore()
	ev := evaluator.New(store, catalog, ledger.NewMemory(clock), logger, clock)

	var cfg config.Config
	cfg.Notification.MaxWorkers = 4
	cfg.Notification.QueueSize = 64
	svc := services.New(catalog, ev, nil, logger, cfg)
	_, _, err := svc.UpsertProduct(context.Background(), models.Product{ID: "P1", Stock: 200})
	require.NoError(t, err)

	c := newTestConsumer(svc)
	ctx := context.Background()
	require.True(t, c.handle(ctx, []byte(`{"product_id":"P1","kind":"outbound","quantity":50}`)))
	require.True(t, c.handle(ctx, []byte(`{"product_id":"P1","stock":100}`)))
	require.True(t, c.handle(ctx, []byte(`{"product_id":"P1","kind":"inbound","quantity":5}`)))

	var wg sync.WaitGroup
	svc.Start(&wg)
	svc.Stop()
	wg.Wait()

	p, err := catalog.Get("P1")
	require.NoError(t, err)
	assert.Equal(t, 105, p.Stock)
}
