package handler

import (
	"log"
	"net/http"

	"nguvuhire/internal/middleware"
	"nguvuhire/internal/service"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	subs *service.SubscriptionService
}

func NewSubscriptionHandler(subs *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

func (h *SubscriptionHandler) Status(c *gin.Context) {
	ac, _ := middleware.GetAuth(c)
	st, err := h.subs.Status(c.Request.Context(), ac)
	if err != nil {
		log.Printf("[SUBSCRIPTION] status user=%s: %v", ac.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, st)
}
