package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stock-alert-service/internal/models"
)

const defaultHorizonDays = 30

type planRequest struct {
	models.PlanCreate
	// FromSuggestion fills empty fields from a fresh suggestion over
	// HorizonDays.
	FromSuggestion bool `json:"from_suggestion"`
	HorizonDays    int  `json:"horizon_days"`
}

func (h *Handler) Suggest(c *gin.Context) {
	horizon := defaultHorizonDays
	if v := c.Query("horizon_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.badRequest(c, "Invalid horizon_days", err)
			return
		}
		horizon = n
	}
	s, err := h.Advisor.Suggest(c.Request.Context(), c.Param("id"), horizon)
	if err != nil {
		h.fail(c, "Failed to compute suggestion", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) CreatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body for plan", err)
		return
	}

	ctx := c.Request.Context()
	var (
		plan models.ReplenishmentPlan
		err  error
	)
	if req.FromSuggestion {
		horizon := req.HorizonDays
		if horizon == 0 {
			horizon = defaultHorizonDays
		}
		s, serr := h.Advisor.Suggest(ctx, req.ProductID, horizon)
		if serr != nil {
			h.fail(c, "Failed to compute suggestion", serr)
			return
		}
		plan, err = h.Planner.Confirm(ctx, s, req.PlanCreate)
	} else {
		plan, err = h.Planner.Create(ctx, req.PlanCreate)
	}
	if err != nil {
		h.fail(c, "Failed to create plan", err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *Handler) ListPlans(c *gin.Context) {
	f := models.PlanFilter{
		ProductID: c.Query("product_id"),
		Status:    models.PlanStatus(c.Query("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		h.badRequest(c, "Invalid status", nil)
		return
	}
	plans, err := h.Planner.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "Failed to list plans", err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *Handler) GetPlan(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	p, err := h.Planner.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get plan", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePlanStatus(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body for status", err)
		return
	}
	p, err := h.Planner.Transition(c.Request.Context(), id, models.PlanStatus(req.Status))
	if err != nil {
		h.fail(c, "Failed to update plan status", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
