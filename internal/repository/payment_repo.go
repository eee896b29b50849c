package repository

import (
	"context"
	"errors"
	"time"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentOrderRepository struct {
	db *gorm.DB
}

func NewPaymentOrderRepository(db *gorm.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *PaymentOrderRepository) WithTx(tx *gorm.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: tx}
}

func (r *PaymentOrderRepository) Create(ctx context.Context, o *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *PaymentOrderRepository) GetByReference(ctx context.Context, ref string) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := r.db.WithContext(ctx).Where("reference = ?", ref).First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *PaymentOrderRepository) GetByTrackingID(ctx context.Context, trackingID string) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := r.db.WithContext(ctx).Where("provider_tracking_id = ?", trackingID).First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// SetSubmitted stores what Pesapal returned for a submitted order.
func (r *PaymentOrderRepository) SetSubmitted(ctx context.Context, id uint, trackingID, redirectURL string) error {
	return r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"provider_tracking_id": trackingID,
			"redirect_url":         redirectURL,
		}).Error
}

// Transition moves an open (PENDING or IPN_RECEIVED) order to status. It
// reports false when the order was already terminal, meaning another caller
// won the race and owns the side effects.
func (r *PaymentOrderRepository) Transition(ctx context.Context, id uint, status string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": status}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ? AND status IN ?", id, domain.OpenOrderStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkIPNReceived moves PENDING to IPN_RECEIVED; later IPNs leave the order alone.
func (r *PaymentOrderRepository) MarkIPNReceived(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", id, domain.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":          domain.OrderStatusIPNReceived,
			"ipn_received_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordStatus keeps the latest non-final gateway answer on an open order.
func (r *PaymentOrderRepository) RecordStatus(ctx context.Context, id uint, paymentStatus string, raw []byte) error {
	return r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ? AND status IN ?", id, domain.OpenOrderStatuses).
		Updates(map[string]interface{}{
			"last_payment_status": paymentStatus,
			"last_status_payload": datatypes.JSON(raw),
		}).Error
}

// ListStale returns open orders with a tracking id created before cutoff.
// Never-checked orders come first, then the ones checked longest ago, so
// orders Pesapal keeps reporting as pending rotate out of the batch.
func (r *PaymentOrderRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentOrder, error) {
	var list []models.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("status IN ? AND provider_tracking_id IS NOT NULL AND created_at < ?", domain.OpenOrderStatuses, cutoff).
		Order("last_checked_at IS NOT NULL, last_checked_at ASC, created_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkChecked stamps the time the reconciler last asked Pesapal about an order.
func (r *PaymentOrderRepository) MarkChecked(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ?", id).UpdateColumn("last_checked_at", at).Error
}

// ListAbandoned returns pending orders that never got a tracking id.
func (r *PaymentOrderRepository) ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentOrder, error) {
	var list []models.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND provider_tracking_id IS NULL AND created_at < ?", domain.OrderStatusPending, cutoff).
		Order("created_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

// FindRecentPending returns the newest submitted PENDING order for the same
// checkout key created after since.
func (r *PaymentOrderRepository) FindRecentPending(ctx context.Context, key CheckoutKey, since time.Time) (*models.PaymentOrder, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND status = ? AND redirect_url <> '' AND created_at >= ?", key.UserID, key.Kind, domain.OrderStatusPending, since).
		Where("boost_type = ? AND amount = ?", key.BoostType, key.Amount)
	if key.PostID != nil {
		q = q.Where("target_post_id = ? AND target_post_type = ?", *key.PostID, key.PostType)
	} else {
		q = q.Where("target_post_id IS NULL")
	}
	var o models.PaymentOrder
	if err := q.Order("created_at DESC").First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *PaymentOrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.PaymentOrder, error) {
	var list []models.PaymentOrder
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
