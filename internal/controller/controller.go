package controller

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rider-order-sync/internal/client"
	"rider-order-sync/internal/dto"
	"rider-order-sync/internal/model"
	"rider-order-sync/internal/service"
	"rider-order-sync/internal/synchronizer"
)

type OrderController struct {
	Orders  *service.OrderService
	Scans   *service.ScanService
	Profile *service.ProfileService
}

func NewOrderController(orders *service.OrderService, scans *service.ScanService, profile *service.ProfileService) *OrderController {
	return &OrderController{Orders: orders, Scans: scans, Profile: profile}
}

// GET /orders?status=&statuses=&exclude=&q=&date=
func (ctl *OrderController) ListOrders(c *gin.Context) {
	ctl.respondView(c, filterFromQuery(c))
}

// GET /orders/home: everything not yet delivered
func (ctl *OrderController) HomeOrders(c *gin.Context) {
	ctl.respondView(c, synchronizer.HomeFilter.Merge(filterFromQuery(c)))
}

// GET /orders/pending
func (ctl *OrderController) PendingOrders(c *gin.Context) {
	ctl.respondView(c, synchronizer.PendingFilter.Merge(filterFromQuery(c)))
}

// GET /orders/delivered
func (ctl *OrderController) DeliveredOrders(c *gin.Context) {
	ctl.respondView(c, synchronizer.DeliveredFilter.Merge(filterFromQuery(c)))
}

func (ctl *OrderController) respondView(c *gin.Context, f synchronizer.Filter) {
	orders := ctl.Orders.View(f)
	c.JSON(http.StatusOK, dto.OrderViewResponse{Count: len(orders), Orders: orders})
}

// GET /orders/:orderId
func (ctl *OrderController) GetOrder(c *gin.Context) {
	o, ok := ctl.Orders.Get(c.Param("orderId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, o)
}

// PUT /orders/:orderId/status
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := ctl.Orders.SubmitStatus(c.Request.Context(), c.Param("orderId"), req.Status, req.Feedback)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "status updated", "order": o})
}

// POST /orders/refresh
func (ctl *OrderController) Refresh(c *gin.Context) {
	if err := ctl.Orders.Refresh(c.Request.Context()); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refreshed", "count": len(ctl.Orders.View(synchronizer.Filter{}))})
}

// GET /orders/stream emits a "changed" event after every mutation
func (ctl *OrderController) Stream(c *gin.Context) {
	changes, cancel := ctl.Orders.Subscribe()
	defer cancel()

	c.SSEvent("changed", gin.H{"count": len(ctl.Orders.View(synchronizer.Filter{}))})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-changes:
			c.SSEvent("changed", gin.H{"count": len(ctl.Orders.View(synchronizer.Filter{}))})
			return true
		}
	})
}

// POST /scan
func (ctl *OrderController) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := ctl.Scans.Scan(c.Request.Context(), req.TrackingID)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// GET /profile?refresh=true
func (ctl *OrderController) GetProfile(c *gin.Context) {
	if c.Query("refresh") != "true" {
		if r, ok := ctl.Profile.Current(); ok {
			c.JSON(http.StatusOK, r)
			return
		}
	}

	r, err := ctl.Profile.Load(c.Request.Context())
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, r)
}

func filterFromQuery(c *gin.Context) synchronizer.Filter {
	return synchronizer.Filter{
		Status:          model.Status(strings.TrimSpace(c.Query("status"))),
		Statuses:        splitStatuses(c.Query("statuses")),
		ExcludeStatuses: splitStatuses(c.Query("exclude")),
		Search:          c.Query("q"),
		Date:            c.Query("date"),
	}
}

func splitStatuses(raw string) []model.Status {
	if raw == "" {
		return nil
	}
	var out []model.Status
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, model.Status(part))
		}
	}
	return out
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, synchronizer.ErrInvalidUpdate),
		errors.Is(err, service.ErrStatusRequired),
		errors.Is(err, service.ErrFeedbackRequired):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, client.ErrTransientFetch):
		return http.StatusServiceUnavailable
	case errors.Is(err, client.ErrStatusUpdateRejected),
		errors.Is(err, client.ErrUnauthorized):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
