package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/middleware"
	"nguvuhire/internal/repository"
	"nguvuhire/internal/service"
	"nguvuhire/pkg/pesapal"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	reconciler *service.Reconciler
	payments   *service.PaymentService
	ipnEvents  *repository.IPNEventRepository
	adminRepo  *repository.AdminRepository
}

func NewAdminHandler(reconciler *service.Reconciler, payments *service.PaymentService, ipnEvents *repository.IPNEventRepository, adminRepo *repository.AdminRepository) *AdminHandler {
	return &AdminHandler{reconciler: reconciler, payments: payments, ipnEvents: ipnEvents, adminRepo: adminRepo}
}

// Dashboard returns order counts, revenue and credit totals plus daily revenue for ?days= (default 30).
func (h *AdminHandler) Dashboard(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 || days > 365 {
		days = 30
	}
	stats, err := h.adminRepo.GetDashboardStats(c.Request.Context())
	if err != nil {
		writeAdminError(c, err)
		return
	}
	revenue, err := h.adminRepo.RevenueByDay(c.Request.Context(), time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "revenue": revenue})
}

// ListPayments pages through all orders, optionally filtered by ?status=.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit := queryLimit(c)
	list, total, err := h.adminRepo.ListPayments(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "total": total, "page": page, "limit": limit})
}

// Reconcile runs one reconciliation sweep now.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	res, err := h.reconciler.Sweep(c.Request.Context())
	if err != nil {
		log.Printf("[ADMIN] reconcile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reverify re-checks one order with Pesapal.
func (h *AdminHandler) Reverify(c *gin.Context) {
	ac, _ := middleware.GetAuth(c)
	res, err := h.payments.Reverify(c.Request.Context(), ac, c.Param("reference"))
	if err != nil {
		writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":         res.Order,
		"paymentStatus": res.PaymentStatus,
		"applied":       res.Applied,
	})
}

// IPNEvents lists the IPN pings received for one tracking id.
func (h *AdminHandler) IPNEvents(c *gin.Context) {
	list, err := h.ipnEvents.ListByTrackingID(c.Request.Context(), c.Param("trackingId"))
	if err != nil {
		writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

func writeAdminError(c *gin.Context, err error) {
	var gwErr *pesapal.GatewayError
	switch {
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider error", "detail": gwErr.Raw})
	default:
		log.Printf("[ADMIN] %s: %v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
