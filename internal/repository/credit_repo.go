package repository

import (
	"context"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) WithTx(tx *gorm.DB) *CreditRepository {
	return &CreditRepository{db: tx}
}

func (r *CreditRepository) GetByUserID(ctx context.Context, userID string) (*models.CreditBalance, error) {
	var b models.CreditBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// CreateIfMissing inserts a balance with the given credits unless one exists.
// It reports whether this call created the row.
func (r *CreditRepository) CreateIfMissing(ctx context.Context, userID string, credits int) (bool, error) {
	b := models.CreditBalance{UserID: userID, CreditsAvailable: credits}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&b)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DebitOne spends one credit in a single conditional update. No matching row
// means the balance was empty (or missing): ErrInsufficientCredits.
func (r *CreditRepository) DebitOne(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Model(&models.CreditBalance{}).
		Where("user_id = ? AND credits_available >= ?", userID, 1).
		Updates(map[string]interface{}{
			"credits_available": gorm.Expr("credits_available - ?", 1),
			"credits_used":      gorm.Expr("credits_used + ?", 1),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInsufficientCredits
	}
	return nil
}

// Grant adds n credits to an existing balance.
func (r *CreditRepository) Grant(ctx context.Context, userID string, n int) error {
	res := r.db.WithContext(ctx).Model(&models.CreditBalance{}).
		Where("user_id = ?", userID).
		Update("credits_available", gorm.Expr("credits_available + ?", n))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CreditRepository) RecordTransaction(ctx context.Context, tx *models.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *CreditRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	var list []models.CreditTransaction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}
