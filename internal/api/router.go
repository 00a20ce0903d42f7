package api

import (
	"github.com/gin-gonic/gin"

	"stock-alert-service/internal/config"
	"stock-alert-service/internal/logging"
)

func NewRouter(h *Handler, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/health", h.Health)

	api := r.Group(cfg.API.BasePath)
	{
		// Products and stock
		api.POST("/products", h.UpsertProduct)
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.PUT("/products/:id/stock", h.SetStock)
		api.POST("/products/:id/movements", h.ApplyMovement)
		api.GET("/products/:id/replenishment", h.Suggest)

		// Thresholds
		api.GET("/thresholds", h.ListThresholds)
		api.PUT("/thresholds/products/:id", h.SetProductThreshold)
		api.GET("/thresholds/products/:id", h.GetProductThreshold)
		api.PUT("/thresholds/categories/:id", h.SetCategoryThreshold)
		api.GET("/thresholds/categories/:id", h.GetCategoryThreshold)
		api.POST("/thresholds/batch", h.SetThresholdBatch)

		// Alerts
		api.GET("/alerts", h.ListAlerts)
		api.GET("/alerts/:id", h.GetAlert)
		api.PATCH("/alerts/:id/status", h.UpdateAlertStatus)

		// Replenishment plans
		api.POST("/plans", h.CreatePlan)
		api.GET("/plans", h.ListPlans)
		api.GET("/plans/:id", h.GetPlan)
		api.PATCH("/plans/:id/status", h.UpdatePlanStatus)

		// Notifications
		api.GET("/notifications", h.ListNotifications)
		api.GET("/ws", h.Dashboard)
	}
	return r
}
