package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-alert-service/internal/config"
	"stock-alert-service/internal/evaluator"
	"stock-alert-service/internal/inventory"
	"stock-alert-service/internal/ledger"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
	"stock-alert-service/internal/notification"
	"stock-alert-service/internal/providers"
	"stock-alert-service/internal/replenishment"
	"stock-alert-service/internal/services"
	"stock-alert-service/internal/thresholds"
)

var now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type testServer struct {
	router *gin.Engine
	deps   Deps
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logging.NewNop()

	var cfg config.Config
	cfg.API.BasePath = "/api/v0"
	cfg.Notification.MaxWorkers = 1
	cfg.Notification.QueueSize = 8

	catalog := inventory.NewCatalog(clock)
	store := thresholds.NewStore()
	l := ledger.NewMemory(clock)
	deliveries := notification.NewMemoryLog()
	hub := providers.NewHub(logger)
	ev := evaluator.New(store, catalog, l, logger, clock)
	planner := replenishment.NewPlanner(replenishment.NewMemoryRepository(), catalog, logger, clock)
	dispatcher := notification.New(l, store, catalog, deliveries, logger, notification.Options{Now: clock}, hub)
	ev.OnAlert(dispatcher.HandleEvent)

	deps := Deps{
		Stock:      services.New(catalog, ev, planner, logger, cfg),
		Catalog:    catalog,
		Thresholds: store,
		Ledger:     l,
		Advisor:    replenishment.NewAdvisor(catalog, store, replenishment.AdvisorConfig{}, clock),
		Planner:    planner,
		Deliveries: deliveries,
		Hub:        hub,
	}
	return &testServer{router: NewRouter(NewHandler(deps, logger), logger, cfg), deps: deps}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v0"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/products", models.Product{ID: "P1", Name: "Amoxicillin 500mg", Category: "antibiotics", Stock: 150})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodPut, "/thresholds/products/P1", models.AlertThreshold{
		MinStock:      100,
		MaxStock:      1000,
		IsEnabled:     true,
		NotifyMethods: models.NotifyMethods{System: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStockReadingRaisesAlert(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(t, http.MethodPut, "/products/P1/stock", gin.H{"stock": 85})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[stockResponse](t, w)
	assert.Equal(t, 85, resp.Product.Stock)
	require.NotNil(t, resp.Alert)
	assert.Equal(t, models.AlertLowStock, resp.Alert.Type)
	assert.Equal(t, 100, resp.Alert.ThresholdAtTrigger)

	// Still low: no second alert.
	w = s.do(t, http.MethodPost, "/products/P1/movements", gin.H{"kind": "outbound", "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[stockResponse](t, w).Alert)

	w = s.do(t, http.MethodGet, "/alerts?product_id=P1&status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	alerts := decode[[]models.AlertEvent](t, w)
	require.Len(t, alerts, 1)

	// The realtime system notification went out and was recorded.
	w = s.do(t, http.MethodGet, "/notifications?channel=system", nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[[]models.Notification](t, w)
	require.Len(t, notes, 1)
	assert.Equal(t, models.DeliverySuccess, notes[0].Status)
	require.Len(t, notes[0].EventIDs, 1)
	assert.Equal(t, alerts[0].ID, notes[0].EventIDs[0])
}

func TestAlertStatusLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	w := s.do(t, http.MethodPut, "/products/P1/stock", gin.H{"stock": 10})
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[stockResponse](t, w).Alert.ID.String()

	w = s.do(t, http.MethodPatch, "/alerts/"+id+"/status", gin.H{"status": "processed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.AlertProcessed, decode[models.AlertEvent](t, w).Status)

	w = s.do(t, http.MethodPatch, "/alerts/"+id+"/status", gin.H{"status": "ignored"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, "/alerts/"+id+"/status", gin.H{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/alerts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/alerts/6f1c1d3e-0000-4000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThresholdErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body models.AlertThreshold
		want int
	}{
		{name: "inverted range", body: models.AlertThreshold{MinStock: 500, MaxStock: 100}, want: http.StatusBadRequest},
		{name: "equal bounds", body: models.AlertThreshold{MinStock: 100, MaxStock: 100}, want: http.StatusBadRequest},
		{name: "negative", body: models.AlertThreshold{MinStock: -1, MaxStock: 100}, want: http.StatusBadRequest},
		{name: "valid", body: models.AlertThreshold{MinStock: 20, MaxStock: 200, IsEnabled: true}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPut, "/thresholds/categories/vitamins", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := s.do(t, http.MethodGet, "/thresholds/categories/vitamins", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.AlertThreshold](t, w)
	assert.Equal(t, 20, got.MinStock)
	assert.Equal(t, models.FrequencyRealtime, got.Frequency)

	w = s.do(t, http.MethodGet, "/thresholds/products/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThresholdBatchIsAllOrNothing(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPut, "/thresholds/categories/vitamins", models.AlertThreshold{MinStock: 20, MaxStock: 200, IsEnabled: true})
	require.Equal(t, http.StatusOK, w.Code)

	// min 300 is above the vitamins max, so neither category is written.
	w = s.do(t, http.MethodPost, "/thresholds/batch", gin.H{
		"category_ids": []string{"vitamins", "antibiotics"},
		"patch":        gin.H{"min_stock": 300},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/thresholds/categories/vitamins", nil)
	assert.Equal(t, 20, decode[models.AlertThreshold](t, w).MinStock)
	w = s.do(t, http.MethodGet, "/thresholds/categories/antibiotics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/thresholds/batch", gin.H{
		"category_ids": []string{"vitamins", "antibiotics"},
		"patch":        gin.H{"min_stock": 10, "max_stock": 400},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"updated":2}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/thresholds", nil)
	assert.Len(t, decode[[]models.AlertThreshold](t, w), 2)
}

func TestProductErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/products", gin.H{"name": "no id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.seed(t)
	w = s.do(t, http.MethodPut, "/products/P1/stock", gin.H{"stock": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/products/P1/stock", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/products/P1/movements", gin.H{"kind": "outbound", "quantity": 9999})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/products?category=antibiotics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Product](t, w), 1)
}

func TestSuggestionAndPlans(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(t, http.MethodGet, "/products/P1/replenishment?horizon_days=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/products/P1/replenishment?horizon_days=14", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sug := decode[models.ReplenishmentSuggestion](t, w)
	assert.Equal(t, "P1", sug.ProductID)
	assert.Equal(t, replenishment.ReasonNoHistory, sug.Reason)

	w = s.do(t, http.MethodPost, "/plans", gin.H{"product_id": "P1", "plan_amount": 200, "unit_cost": 2.5, "supplier": "Acme Pharma"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plan := decode[models.ReplenishmentPlan](t, w)
	assert.Equal(t, models.PlanDraft, plan.Status)
	assert.InDelta(t, 500.0, plan.EstimatedCost, 1e-9)

	w = s.do(t, http.MethodPost, "/plans", gin.H{"product_id": "P1", "plan_amount": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/plans", gin.H{"plan_amount": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := "/plans/" + plan.ID.String() + "/status"
	for _, st := range []string{"scheduled", "in_progress", "completed"} {
		w = s.do(t, http.MethodPatch, path, gin.H{"status": st})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPatch, path, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/plans?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ReplenishmentPlan](t, w), 1)

	w = s.do(t, http.MethodGet, "/plans/"+plan.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PlanCompleted, decode[models.ReplenishmentPlan](t, w).Status)
}

func TestDashboardWebsocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v0/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.deps.Hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	s.seed(t)
	_, _, err = s.deps.Stock.SetStock(context.Background(), "P1", 50)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.ChannelSystem, msg.Channel)
	assert.Equal(t, "Low stock: P1", msg.Subject)
}
