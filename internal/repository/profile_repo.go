package repository

import (
	"context"
	"time"

	"nguvuhire/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) WithTx(tx *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// MarkVerified sets the verification badge, creating the profile row if needed.
func (r *ProfileRepository) MarkVerified(ctx context.Context, userID, reference string, at time.Time) error {
	p := models.Profile{UserID: userID, IsVerified: true, VerifiedAt: &at, VerificationRef: reference}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_verified", "verified_at", "verification_ref", "updated_at"}),
	}).Create(&p).Error
}

// SetFCMToken stores the device push token, creating the profile row if needed.
func (r *ProfileRepository) SetFCMToken(ctx context.Context, userID, token string) error {
	p := models.Profile{UserID: userID, FCMToken: token}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fcm_token", "updated_at"}),
	}).Create(&p).Error
}
