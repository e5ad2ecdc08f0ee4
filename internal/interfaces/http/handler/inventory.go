package handler

import (
	"github.com/gin-gonic/gin"
	inventoryapp "github.com/tripcore/backend/internal/application/inventory"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/shared"
)

// IdempotencyKeyHeader lets clients supply the release idempotency key as a header
const IdempotencyKeyHeader = "Idempotency-Key"

// InventoryHandler handles capacity ledger endpoints
type InventoryHandler struct {
	BaseHandler
	ledger      *inventoryapp.Ledger
	coordinator *inventoryapp.ReservationCoordinator
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(ledger *inventoryapp.Ledger, coordinator *inventoryapp.ReservationCoordinator) *InventoryHandler {
	return &InventoryHandler{
		ledger:      ledger,
		coordinator: coordinator,
	}
}

// Initialize creates capacity for every date of a range.
// POST /inventory/initialize
func (h *InventoryHandler) Initialize(c *gin.Context) {
	var req inventoryapp.InitializeRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	created, err := h.ledger.InitializeRange(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, inventoryapp.InitializeRangeResponse{Created: created})
}

// Availability returns the capacity snapshot of one record.
// GET /inventory/availability?providerType=&itemId=&date=
func (h *InventoryHandler) Availability(c *gin.Context) {
	var q inventoryapp.AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	key, err := inventoryapp.ParseKey(q.ProviderType, q.ItemID, q.Date)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	snapshot, err := h.ledger.GetAvailability(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// Calendar returns the snapshots of an item over a date range; missing dates are omitted.
// GET /inventory/calendar?providerType=&itemId=&startDate=&endDate=
func (h *InventoryHandler) Calendar(c *gin.Context) {
	var q inventoryapp.CalendarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	providerType, err := inventory.ParseProviderType(q.ProviderType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	start, err := shared.ParseDate(q.StartDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	end, err := shared.ParseDate(q.EndDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	days, err := h.ledger.ListRange(c.Request.Context(), providerType, q.ItemID, start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, days)
}

// Reserve allocates capacity, absorbing lost races up to the configured retry budget.
// POST /inventory/reserve
func (h *InventoryHandler) Reserve(c *gin.Context) {
	req, key, ok := h.bindCapacity(c)
	if !ok {
		return
	}

	version, err := h.coordinator.TryReserve(c.Request.Context(), key, req.Quantity, -1)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, inventoryapp.VersionResponse{Version: version})
}

// Release returns allocated capacity. An idempotency key in the body or the
// Idempotency-Key header makes the call safe to replay.
// POST /inventory/release
func (h *InventoryHandler) Release(c *gin.Context) {
	req, key, ok := h.bindCapacity(c)
	if !ok {
		return
	}
	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = c.GetHeader(IdempotencyKeyHeader)
	}

	version, err := h.ledger.Release(c.Request.Context(), key, req.Quantity, idempotencyKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, inventoryapp.VersionResponse{Version: version})
}

// Block withholds capacity from sale.
// POST /inventory/block
func (h *InventoryHandler) Block(c *gin.Context) {
	req, key, ok := h.bindCapacity(c)
	if !ok {
		return
	}

	version, err := h.ledger.Block(c.Request.Context(), key, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, inventoryapp.VersionResponse{Version: version})
}

// Unblock returns blocked capacity to sale.
// POST /inventory/unblock
func (h *InventoryHandler) Unblock(c *gin.Context) {
	req, key, ok := h.bindCapacity(c)
	if !ok {
		return
	}

	version, err := h.ledger.Unblock(c.Request.Context(), key, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, inventoryapp.VersionResponse{Version: version})
}

// Close stops sales on a record.
// POST /inventory/close
func (h *InventoryHandler) Close(c *gin.Context) {
	key, ok := h.bindRecord(c)
	if !ok {
		return
	}

	version, err := h.ledger.Close(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, inventoryapp.VersionResponse{Version: version})
}

// Reopen resumes sales on a closed record.
// POST /inventory/reopen
func (h *InventoryHandler) Reopen(c *gin.Context) {
	key, ok := h.bindRecord(c)
	if !ok {
		return
	}

	version, err := h.ledger.Reopen(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, inventoryapp.VersionResponse{Version: version})
}

func (h *InventoryHandler) bindCapacity(c *gin.Context) (inventoryapp.CapacityRequest, inventory.RecordKey, bool) {
	var req inventoryapp.CapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return req, inventory.RecordKey{}, false
	}
	key, err := inventoryapp.ParseKey(req.ProviderType, req.ItemID, req.Date)
	if err != nil {
		h.HandleError(c, err)
		return req, inventory.RecordKey{}, false
	}
	return req, key, true
}

func (h *InventoryHandler) bindRecord(c *gin.Context) (inventory.RecordKey, bool) {
	var req inventoryapp.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return inventory.RecordKey{}, false
	}
	key, err := inventoryapp.ParseKey(req.ProviderType, req.ItemID, req.Date)
	if err != nil {
		h.HandleError(c, err)
		return inventory.RecordKey{}, false
	}
	return key, true
}
