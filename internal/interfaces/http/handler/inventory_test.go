package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	inventoryapp "github.com/tripcore/backend/internal/application/inventory"
	pricingapp "github.com/tripcore/backend/internal/application/pricing"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/infrastructure/cache"
	"github.com/tripcore/backend/internal/infrastructure/persistence/memory"
	"github.com/tripcore/backend/internal/interfaces/http/dto"
	"github.com/tripcore/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

type testServer struct {
	engine *gin.Engine
	ledger *inventoryapp.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	middleware.SetupValidator()

	records := memory.NewInventoryRecordRepository()
	rules := memory.NewPricingRuleRepository()
	overrides := memory.NewRateOverrideRepository()

	ledger := inventoryapp.NewLedger(records, inventoryapp.LedgerConfig{MaxInitializeDays: 31, MaxRetries: inventoryapp.DefaultMaxRetries}, zap.NewNop())
	ledger.SetIdempotencyStore(cache.NewInMemoryIdempotencyStore())
	coordinator := inventoryapp.NewReservationCoordinator(ledger, 2, 0)

	calendar, err := pricing.NewSeasonalCalendar(pricing.DefaultCalendarConfig())
	require.NoError(t, err)
	calculator := pricingapp.NewRateCalculator(records, rules, overrides, calendar, pricingapp.CalculatorConfig{}, zap.NewNop())
	refresher := pricingapp.NewPriceRefresher(records, calculator, ledger, 30, 50, zap.NewNop())

	inv := NewInventoryHandler(ledger, coordinator)
	pr := NewPricingHandler(
		calculator,
		pricingapp.NewRuleService(rules, calculator, zap.NewNop()),
		pricingapp.NewOverrideService(overrides, calculator, zap.NewNop()),
		refresher,
	)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	api := engine.Group("/api/v1")

	g := api.Group("/inventory")
	g.POST("/initialize", inv.Initialize)
	g.GET("/availability", inv.Availability)
	g.GET("/calendar", inv.Calendar)
	g.POST("/reserve", inv.Reserve)
	g.POST("/release", inv.Release)
	g.POST("/block", inv.Block)
	g.POST("/unblock", inv.Unblock)
	g.POST("/close", inv.Close)
	g.POST("/reopen", inv.Reopen)

	p := api.Group("/pricing")
	p.GET("/quote", pr.Quote)
	p.POST("/rules", pr.CreateRule)
	p.GET("/rules", pr.ListRules)
	p.GET("/rules/:id", pr.GetRule)
	p.PUT("/rules/:id", pr.UpdateRule)
	p.DELETE("/rules/:id", pr.DeactivateRule)
	p.PUT("/overrides", pr.UpsertOverride)
	p.GET("/overrides", pr.GetOverrides)
	p.DELETE("/overrides", pr.DeactivateOverride)
	p.POST("/refresh", pr.Refresh)

	return &testServer{engine: engine, ledger: ledger}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func (s *testServer) initialize(t *testing.T, capacity int) {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/initialize", map[string]any{
		"provider_type":  "hotel",
		"item_id":        "room-1",
		"start_date":     "2025-10-06",
		"end_date":       "2025-10-08",
		"total_capacity": capacity,
		"base_price":     "100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(3), resp.Data.(map[string]any)["created"])
}

func capacityBody(qty int) map[string]any {
	return map[string]any{
		"provider_type": "hotel",
		"item_id":       "room-1",
		"date":          "2025-10-07",
		"quantity":      qty,
	}
}

func availability(t *testing.T, s *testServer) map[string]any {
	t.Helper()
	w, resp := s.do(t, http.MethodGet, "/api/v1/inventory/availability?providerType=hotel&itemId=room-1&date=2025-10-07", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return resp.Data.(map[string]any)
}

func TestInventoryHandler_Initialize(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, 10)

	t.Run("existing dates are not recreated", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/initialize", map[string]any{
			"provider_type":  "hotel",
			"item_id":        "room-1",
			"start_date":     "2025-10-06",
			"end_date":       "2025-10-09",
			"total_capacity": 10,
			"base_price":     "100",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, float64(1), resp.Data.(map[string]any)["created"])
	})

	t.Run("reversed range", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/initialize", map[string]any{
			"provider_type":  "hotel",
			"item_id":        "room-1",
			"start_date":     "2025-10-09",
			"end_date":       "2025-10-01",
			"total_capacity": 10,
			"base_price":     "100",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidDateRange, resp.Error.Code)
	})

	t.Run("unknown provider type", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/initialize", map[string]any{
			"provider_type": "train",
			"item_id":       "x",
			"start_date":    "2025-10-01",
			"end_date":      "2025-10-01",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "provider_type", resp.Error.Details[0].Field)
	})
}

func TestInventoryHandler_ReserveAndRelease(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, 2)

	w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/reserve", capacityBody(2))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), resp.Data.(map[string]any)["version"])

	snap := availability(t, s)
	assert.Equal(t, float64(0), snap["available"])
	assert.Equal(t, "exhausted", snap["state"])

	w, resp = s.do(t, http.MethodPost, "/api/v1/inventory/reserve", capacityBody(1))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeOutOfCapacity, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)

	w, _ = s.do(t, http.MethodPost, "/api/v1/inventory/release", capacityBody(1), IdempotencyKeyHeader, "cancel-42")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("replayed release is a no-op", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, "/api/v1/inventory/release", capacityBody(1), IdempotencyKeyHeader, "cancel-42")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), availability(t, s)["allocated"])
	})

	t.Run("releasing more than allocated", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/release", capacityBody(5))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	})
}

func TestInventoryHandler_MissingRecord(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/reserve", capacityBody(1))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/inventory/availability?providerType=hotel&itemId=room-1&date=2025-10-07", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestInventoryHandler_BadInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"zero quantity", capacityBody(0)},
		{"bad date", map[string]any{"provider_type": "hotel", "item_id": "room-1", "date": "07/10/2025", "quantity": 1}},
		{"missing item", map[string]any{"provider_type": "hotel", "date": "2025-10-07", "quantity": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/reserve", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		})
	}
}

func TestInventoryHandler_BlockCloseReopen(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, 5)

	w, _ := s.do(t, http.MethodPost, "/api/v1/inventory/block", capacityBody(3))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), availability(t, s)["available"])

	w, _ = s.do(t, http.MethodPost, "/api/v1/inventory/unblock", capacityBody(1))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), availability(t, s)["available"])

	record := map[string]any{"provider_type": "hotel", "item_id": "room-1", "date": "2025-10-07"}
	w, _ = s.do(t, http.MethodPost, "/api/v1/inventory/close", record)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "blocked", availability(t, s)["state"])

	w, resp := s.do(t, http.MethodPost, "/api/v1/inventory/reserve", capacityBody(1))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/inventory/reopen", record)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "open", availability(t, s)["state"])
}

func TestInventoryHandler_Calendar(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, 4)

	w, resp := s.do(t, http.MethodGet, "/api/v1/inventory/calendar?providerType=hotel&itemId=room-1&startDate=2025-10-01&endDate=2025-10-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	days := resp.Data.([]any)
	require.Len(t, days, 3)
	assert.Equal(t, "2025-10-06", days[0].(map[string]any)["date"])

	w, resp = s.do(t, http.MethodGet, "/api/v1/inventory/calendar?providerType=hotel&itemId=room-1&startDate=2025-10-31&endDate=2025-10-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidDateRange, resp.Error.Code)
}
