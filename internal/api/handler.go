package api

import (
	"net/http"
	"strconv"
	"time"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"
	"pharmamarket/internal/redisclient"
	"pharmamarket/internal/service"
	"pharmamarket/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	returns  *service.ReturnService
	invoices *service.InvoiceService
	inbox    *redisclient.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(orders *service.OrderService, returns *service.ReturnService, invoices *service.InvoiceService, inbox *redisclient.Client) *Handler {
	return &Handler{
		orders:   orders,
		returns:  returns,
		invoices: invoices,
		inbox:    inbox,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(actorMiddleware())
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.changeOrderStatus)
		v1.DELETE("/orders/:id", h.cancelOrder)
		v1.PATCH("/orders/:id/notes", h.updateOrderNotes)
		v1.GET("/orders/:id/timeline", h.getOrderTimeline)

		v1.POST("/returns", h.requestReturn)
		v1.GET("/returns/:id", h.getReturn)
		v1.PATCH("/returns/:id/status", h.changeReturnStatus)

		v1.GET("/invoices/:id", h.getInvoice)
		v1.PATCH("/invoices/:id", h.updateInvoiceAmounts)
		v1.POST("/invoices/:id/payments", h.recordPayment)
		v1.GET("/invoices/:id/payments", h.listPayments)

		v1.GET("/notifications", h.listNotifications)
	}
}

// actorMiddleware extracts the already-verified identity pair supplied by
// the auth collaborator.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		role := c.GetHeader("X-User-Role")
		if err != nil || userID <= 0 || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"kind": "unauthorized", "message": "missing actor identity"},
			})
			return
		}
		c.Set("actor", models.Actor{UserID: userID, Role: role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	actor, _ := c.MustGet("actor").(models.Actor)
	return actor
}

// statusForKind maps business error kinds onto HTTP status codes.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidTransition, apperr.KindInvalidReturnTransition,
		apperr.KindWindowExpired, apperr.KindInvoiceCancelled:
		return http.StatusConflict
	case apperr.KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case apperr.KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	c.JSON(statusForKind(appErr.Kind), gin.H{
		"error": gin.H{
			"kind":    appErr.Kind,
			"message": appErr.Message,
			"context": appErr.Context,
		},
	})
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, apperr.Validation("id", "invalid id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("body", "invalid request body"))
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	order, items, err := h.orders.GetOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) changeOrderStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("status", "status is required"))
		return
	}

	if err := h.orders.ChangeStatus(c.Request.Context(), actorFrom(c), id, req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.orders.CancelOrder(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.OrderStatusCancelled})
}

func (h *Handler) updateOrderNotes(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req service.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("body", "invalid request body"))
		return
	}

	if err := h.orders.UpdateNotes(c.Request.Context(), actorFrom(c), id, &req); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getOrderTimeline(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	events, err := h.orders.GetTimeline(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) requestReturn(c *gin.Context) {
	var req service.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("body", "invalid request body"))
		return
	}

	ret, err := h.returns.RequestReturn(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ret)
}

func (h *Handler) getReturn(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ret, err := h.returns.GetReturn(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ret)
}

func (h *Handler) changeReturnStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("status", "status is required"))
		return
	}

	if err := h.returns.ChangeStatus(c.Request.Context(), actorFrom(c), id, req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (h *Handler) getInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	invoice, err := h.invoices.GetInvoice(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) updateInvoiceAmounts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req service.UpdateAmountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("body", "invalid request body"))
		return
	}

	if err := h.invoices.UpdateAmounts(c.Request.Context(), actorFrom(c), id, &req); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) recordPayment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("body", "invalid request body"))
		return
	}

	if err := h.invoices.RecordPayment(c.Request.Context(), actorFrom(c), id, &req); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) listPayments(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	payments, err := h.invoices.ListPayments(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *Handler) listNotifications(c *gin.Context) {
	limit := int64(20)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 || parsed > 100 {
			writeError(c, apperr.Validation("limit", "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	events, err := h.inbox.ListInbox(c.Request.Context(), actorFrom(c).UserID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": events})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
