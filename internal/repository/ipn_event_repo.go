package repository

import (
	"context"

	"nguvuhire/internal/models"

	"gorm.io/gorm"
)

type IPNEventRepository struct {
	db *gorm.DB
}

func NewIPNEventRepository(db *gorm.DB) *IPNEventRepository {
	return &IPNEventRepository{db: db}
}

func (r *IPNEventRepository) Create(ctx context.Context, e *models.IPNEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *IPNEventRepository) SetOutcome(ctx context.Context, id uint, status, errText string) error {
	return r.db.WithContext(ctx).Model(&models.IPNEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error": errText}).Error
}

func (r *IPNEventRepository) ListByTrackingID(ctx context.Context, trackingID string) ([]models.IPNEvent, error) {
	var list []models.IPNEvent
	err := r.db.WithContext(ctx).Where("tracking_id = ?", trackingID).Order("id ASC").Find(&list).Error
	return list, err
}
