package handler

import (
	"errors"
	"log"
	"net/http"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/middleware"
	"nguvuhire/internal/service"

	"github.com/gin-gonic/gin"
)

type BoostHandler struct {
	ledger *service.Ledger
}

func NewBoostHandler(ledger *service.Ledger) *BoostHandler {
	return &BoostHandler{ledger: ledger}
}

// BoostPost spends one credit to boost a post the caller owns.
func (h *BoostHandler) BoostPost(c *gin.Context) {
	ac, ok := middleware.GetAuth(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req struct {
		PostID    uint   `json:"postId" binding:"required"`
		PostType  string `json:"postType" binding:"required,posttype"`
		BoostType string `json:"boostType" binding:"boosttype"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.ledger.ApplyBoost(c.Request.Context(), ac, service.BoostInput{
		PostID:    req.PostID,
		PostType:  req.PostType,
		BoostType: req.BoostType,
	})
	if err != nil {
		writeBoostError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"boostEnd":         res.Boost.BoostEnd,
		"boostType":        res.Boost.BoostType,
		"creditsRemaining": res.CreditsRemaining,
	})
}

// Credits returns the caller's balance and recent credit history.
func (h *BoostHandler) Credits(c *gin.Context) {
	ac, _ := middleware.GetAuth(c)
	bal, err := h.ledger.GetBalance(c.Request.Context(), ac.UserID)
	if err != nil {
		writeBoostError(c, err)
		return
	}
	history, err := h.ledger.History(c.Request.Context(), ac.UserID, queryLimit(c))
	if err != nil {
		writeBoostError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"creditsAvailable": bal.CreditsAvailable,
		"creditsUsed":      bal.CreditsUsed,
		"history":          history,
	})
}

func writeBoostError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no boost credits left"})
	case errors.Is(err, domain.ErrAlreadyBoosted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "post is already boosted"})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only boost your own posts"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
	default:
		log.Printf("[BOOST] %s: %v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
