package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stock-alert-service/internal/models"
)

type stockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

type movementRequest struct {
	Kind      models.MovementKind `json:"kind" binding:"required"`
	Quantity  int                 `json:"quantity"`
	Reference string              `json:"reference"`
	At        time.Time           `json:"at"`
}

// stockResponse is returned by every stock write. Alert is set when the
// write crossed a threshold.
type stockResponse struct {
	Product models.Product     `json:"product"`
	Alert   *models.AlertEvent `json:"alert,omitempty"`
}

type batchRequest struct {
	CategoryIDs []string              `json:"category_ids" binding:"required"`
	Patch       models.ThresholdPatch `json:"patch"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) UpsertProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		h.badRequest(c, "Invalid request body for product", err)
		return
	}
	product, event, err := h.Stock.UpsertProduct(c.Request.Context(), p)
	if err != nil {
		h.fail(c, "Failed to save product", err)
		return
	}
	h.logger.Infof("Saved product %s (stock %d)", product.ID, product.Stock)
	c.JSON(http.StatusCreated, stockResponse{Product: product, Alert: event})
}

func (h *Handler) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, h.Catalog.List(c.Query("category")))
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.Catalog.Get(c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get product", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) SetStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body for stock reading", err)
		return
	}
	product, event, err := h.Stock.SetStock(c.Request.Context(), c.Param("id"), *req.Stock)
	if err != nil {
		h.fail(c, "Failed to record stock", err)
		return
	}
	c.JSON(http.StatusOK, stockResponse{Product: product, Alert: event})
}

func (h *Handler) ApplyMovement(c *gin.Context) {
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body for movement", err)
		return
	}
	product, event, err := h.Stock.ApplyMovement(c.Request.Context(), models.Movement{
		ProductID: c.Param("id"),
		Kind:      req.Kind,
		Quantity:  req.Quantity,
		Reference: req.Reference,
		At:        req.At,
	})
	if err != nil {
		h.fail(c, "Failed to apply movement", err)
		return
	}
	c.JSON(http.StatusOK, stockResponse{Product: product, Alert: event})
}

func (h *Handler) ListThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, h.Thresholds.List())
}

func (h *Handler) SetProductThreshold(c *gin.Context) {
	h.setThreshold(c, models.ProductKey(c.Param("id")))
}

func (h *Handler) SetCategoryThreshold(c *gin.Context) {
	h.setThreshold(c, models.CategoryKey(c.Param("id")))
}

func (h *Handler) GetProductThreshold(c *gin.Context) {
	h.getThreshold(c, models.ProductKey(c.Param("id")))
}

func (h *Handler) GetCategoryThreshold(c *gin.Context) {
	h.getThreshold(c, models.CategoryKey(c.Param("id")))
}

func (h *Handler) setThreshold(c *gin.Context, key models.ThresholdKey) {
	var t models.AlertThreshold
	if err := c.ShouldBindJSON(&t); err != nil {
		h.badRequest(c, "Invalid request body for threshold", err)
		return
	}
	if err := h.Thresholds.Set(key, t); err != nil {
		h.fail(c, "Failed to set threshold", err)
		return
	}
	stored, err := h.Thresholds.Get(key)
	if err != nil {
		h.fail(c, "Failed to read threshold", err)
		return
	}
	h.logger.Infof("Set threshold %s: min=%d max=%d", key, stored.MinStock, stored.MaxStock)
	c.JSON(http.StatusOK, stored)
}

func (h *Handler) getThreshold(c *gin.Context, key models.ThresholdKey) {
	t, err := h.Thresholds.Get(key)
	if err != nil {
		h.fail(c, "Failed to get threshold", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) SetThresholdBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body for batch update", err)
		return
	}
	n, err := h.Thresholds.SetBatch(req.CategoryIDs, req.Patch)
	if err != nil {
		h.fail(c, "Failed to apply batch update", err)
		return
	}
	h.logger.Infof("Batch updated %d category thresholds", n)
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) ListAlerts(c *gin.Context) {
	f := models.AlertFilter{
		ProductID: c.Query("product_id"),
		Status:    models.AlertStatus(c.Query("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		h.badRequest(c, "Invalid status", nil)
		return
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.badRequest(c, "Invalid since, expected RFC3339", err)
			return
		}
		f.Since = t
	}
	events, err := h.Ledger.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "Failed to list alerts", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) GetAlert(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	e, err := h.Ledger.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get alert", err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) UpdateAlertStatus(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body for status", err)
		return
	}
	e, err := h.Ledger.UpdateStatus(c.Request.Context(), id, models.AlertStatus(req.Status))
	if err != nil {
		h.fail(c, "Failed to update alert status", err)
		return
	}
	h.logger.Infof("Alert %s marked %s", id, e.Status)
	c.JSON(http.StatusOK, e)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	f := models.NotificationFilter{
		Channel: models.Channel(c.Query("channel")),
		Status:  c.Query("status"),
		Limit:   100,
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.badRequest(c, "Invalid limit", err)
			return
		}
		f.Limit = n
	}
	list, err := h.Deliveries.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "Failed to get notifications", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.badRequest(c, "Invalid id", err)
		return uuid.Nil, false
	}
	return id, true
}
