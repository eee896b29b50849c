package handler

import (
	"net/http"
	"strconv"

	"nguvuhire/internal/middleware"
	"nguvuhire/internal/repository"
	"nguvuhire/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifSvc *service.NotificationService
	profiles *repository.ProfileRepository
}

func NewNotificationHandler(notifSvc *service.NotificationService, profiles *repository.ProfileRepository) *NotificationHandler {
	return &NotificationHandler{notifSvc: notifSvc, profiles: profiles}
}

func (h *NotificationHandler) List(c *gin.Context) {
	ac, _ := middleware.GetAuth(c)
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	list, err := h.notifSvc.List(c.Request.Context(), ac.UserID, queryLimit(c), offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	ac, _ := middleware.GetAuth(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.notifSvc.MarkRead(c.Request.Context(), ac.UserID, uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterFCMToken stores the device token used for payment push notifications.
func (h *NotificationHandler) RegisterFCMToken(c *gin.Context) {
	ac, _ := middleware.GetAuth(c)
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.profiles.SetFCMToken(c.Request.Context(), ac.UserID, req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
