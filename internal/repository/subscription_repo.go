package repository

import (
	"context"
	"time"

	"nguvuhire/internal/models"

	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetCurrent returns the user's active subscription with its plan, if any.
func (r *SubscriptionRepository) GetCurrent(ctx context.Context, userID string, now time.Time) (*models.UserSubscription, error) {
	var s models.UserSubscription
	err := r.db.WithContext(ctx).Preload("Plan").
		Where("user_id = ? AND status = ? AND ends_at > ?", userID, "active", now).
		Order("ends_at DESC").First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}
