package models

import (
	"time"

	"nguvuhire/internal/domain"

	"gorm.io/datatypes"
)

// PaymentOrder is one checkout attempt with Pesapal. Reference is the merchant
// reference sent to the gateway; ProviderTrackingID is assigned by Pesapal.
type PaymentOrder struct {
	ID                 uint           `gorm:"primaryKey" json:"-"`
	Reference          string         `gorm:"size:64;not null;uniqueIndex" json:"reference"`
	UserID             string         `gorm:"size:64;not null;index:idx_orders_dedupe,priority:1" json:"user_id"`
	Kind               string         `gorm:"size:20;not null;index:idx_orders_dedupe,priority:2" json:"kind"` // verification | boost
	Amount             int64          `gorm:"not null" json:"amount"`
	Currency           string         `gorm:"size:3;not null;default:'KES'" json:"currency"`
	TargetPostID       *uint          `gorm:"index:idx_orders_dedupe,priority:3" json:"target_post_id,omitempty"`
	TargetPostType     string         `gorm:"size:20" json:"target_post_type,omitempty"`
	BoostType          string         `gorm:"size:20" json:"boost_type,omitempty"`
	Status             string         `gorm:"size:20;not null;index:idx_orders_status_created,priority:1" json:"status"` // PENDING, IPN_RECEIVED, COMPLETED, FAILED
	ProviderTrackingID *string        `gorm:"size:128;uniqueIndex" json:"order_tracking_id,omitempty"`
	RedirectURL        string         `gorm:"size:512" json:"-"`
	LastPaymentStatus  string         `gorm:"size:20" json:"payment_status,omitempty"`
	LastStatusPayload  datatypes.JSON `json:"-"`
	FailureReason      string         `gorm:"size:255" json:"failure_reason,omitempty"`
	IPNReceivedAt      *time.Time     `gorm:"column:ipn_received_at" json:"ipn_received_at,omitempty"`
	LastCheckedAt      *time.Time     `gorm:"index" json:"last_checked_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `gorm:"index:idx_orders_status_created,priority:2" json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}

// TrackingID returns the provider tracking id or "" before submission.
func (o *PaymentOrder) TrackingID() string {
	if o.ProviderTrackingID == nil {
		return ""
	}
	return *o.ProviderTrackingID
}

func (o *PaymentOrder) IsTerminal() bool {
	return o.Status == domain.OrderStatusCompleted || o.Status == domain.OrderStatusFailed
}
