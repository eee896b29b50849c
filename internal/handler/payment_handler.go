package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/middleware"
	"nguvuhire/internal/service"
	"nguvuhire/pkg/pesapal"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	orders   *service.OrderService
	payments *service.PaymentService
}

func NewPaymentHandler(orders *service.OrderService, payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{orders: orders, payments: payments}
}

type createPaymentRequest struct {
	Type      string `json:"type" binding:"required,oneof=verification boost"`
	Amount    int64  `json:"amount" binding:"min=0"`
	UserID    string `json:"userId"`
	PostID    *uint  `json:"postId"`
	PostType  string `json:"postType" binding:"omitempty,posttype"`
	BoostType string `json:"boostType" binding:"boosttype"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Create starts a Pesapal checkout and returns the hosted payment page.
func (h *PaymentHandler) Create(c *gin.Context) {
	ac, ok := middleware.GetAuth(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.orders.CreateOrder(c.Request.Context(), ac, service.CreateOrderInput{
		Kind:      req.Type,
		Amount:    req.Amount,
		UserID:    req.UserID,
		PostID:    req.PostID,
		PostType:  req.PostType,
		BoostType: req.BoostType,
		Billing: pesapal.BillingAddress{
			EmailAddress: req.Email,
			PhoneNumber:  req.Phone,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
		},
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Callback is where Pesapal redirects the browser after checkout.
func (h *PaymentHandler) Callback(c *gin.Context) {
	target := h.payments.HandleRedirectCallback(c.Request.Context(),
		c.Query("OrderTrackingId"), c.Query("OrderMerchantReference"))
	c.Redirect(http.StatusFound, target)
}

// IPN accepts Pesapal's server-to-server ping on GET or POST and always acks.
func (h *PaymentHandler) IPN(c *gin.Context) {
	in := service.IPNInput{
		TrackingID:       c.Query("OrderTrackingId"),
		Reference:        c.Query("OrderMerchantReference"),
		NotificationType: c.Query("OrderNotificationType"),
	}
	var raw []byte
	if c.Request.Method == http.MethodPost {
		raw, _ = io.ReadAll(c.Request.Body)
		var body struct {
			OrderTrackingID        string `json:"OrderTrackingId"`
			OrderMerchantReference string `json:"OrderMerchantReference"`
			OrderNotificationType  string `json:"OrderNotificationType"`
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				log.Printf("[IPN] unreadable body: %v", err)
				raw = nil
			}
		}
		if in.TrackingID == "" {
			in.TrackingID = body.OrderTrackingID
		}
		if in.Reference == "" {
			in.Reference = body.OrderMerchantReference
		}
		if in.NotificationType == "" {
			in.NotificationType = body.OrderNotificationType
		}
	}
	if len(raw) == 0 {
		raw, _ = json.Marshal(map[string]string{
			"OrderTrackingId":        in.TrackingID,
			"OrderMerchantReference": in.Reference,
			"OrderNotificationType":  in.NotificationType,
		})
	}
	in.Payload = raw
	c.JSON(http.StatusOK, h.payments.HandleIPN(c.Request.Context(), in))
}

func (h *PaymentHandler) GetOrder(c *gin.Context) {
	ac, _ := middleware.GetAuth(c)
	o, err := h.orders.GetOrder(c.Request.Context(), ac, c.Param("reference"))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *PaymentHandler) ListOrders(c *gin.Context) {
	ac, _ := middleware.GetAuth(c)
	list, err := h.orders.ListOrders(c.Request.Context(), ac, queryLimit(c))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func writePaymentError(c *gin.Context, err error) {
	var gwErr *pesapal.GatewayError
	var credErr *pesapal.CredentialsError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider rejected the order", "detail": gwErr.Raw})
	case errors.As(err, &credErr):
		log.Printf("[PAYMENT] credentials: %v", credErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
	default:
		log.Printf("[PAYMENT] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
