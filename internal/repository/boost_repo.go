package repository

import (
	"context"
	"errors"
	"time"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"

	"gorm.io/gorm"
)

type BoostRepository struct {
	db *gorm.DB
}

func NewBoostRepository(db *gorm.DB) *BoostRepository {
	return &BoostRepository{db: db}
}

func (r *BoostRepository) WithTx(tx *gorm.DB) *BoostRepository {
	return &BoostRepository{db: tx}
}

var expiredBoost = map[string]interface{}{"is_active": false, "active_key": nil}

// ExpireLapsed deactivates the post's boosts whose end time has passed.
func (r *BoostRepository) ExpireLapsed(ctx context.Context, postType string, postID uint, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.BoostRecord{}).
		Where("post_type = ? AND post_id = ? AND is_active = ? AND boost_end <= ?", postType, postID, true, now).
		Updates(expiredBoost).Error
}

// ExpireAll deactivates every lapsed boost and returns how many it touched.
func (r *BoostRepository) ExpireAll(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.BoostRecord{}).
		Where("is_active = ? AND boost_end <= ?", true, now).
		Updates(expiredBoost)
	return res.RowsAffected, res.Error
}

func (r *BoostRepository) GetActive(ctx context.Context, postType string, postID uint) (*models.BoostRecord, error) {
	var b models.BoostRecord
	err := r.db.WithContext(ctx).
		Where("post_type = ? AND post_id = ? AND is_active = ?", postType, postID, true).
		First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// Create inserts an active boost. A clash on the active key means another
// boost for the post won: ErrAlreadyBoosted.
func (r *BoostRepository) Create(ctx context.Context, b *models.BoostRecord) error {
	key := models.BoostActiveKey(b.PostType, b.PostID)
	b.ActiveKey = &key
	b.IsActive = true
	err := r.db.WithContext(ctx).Create(b).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyBoosted
	}
	return err
}

func (r *BoostRepository) ListActiveByUser(ctx context.Context, userID string) ([]models.BoostRecord, error) {
	var list []models.BoostRecord
	err := r.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).Order("boost_end ASC").Find(&list).Error
	return list, err
}
