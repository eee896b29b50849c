package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	IPNEventReceived     = "received"
	IPNEventHandled      = "handled"
	IPNEventHandleFailed = "handle_failed"
)

// IPNEvent logs every IPN ping Pesapal sends, whether or not it matched an order.
type IPNEvent struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	TrackingID       string         `gorm:"size:128;index" json:"order_tracking_id"`
	Reference        string         `gorm:"size:64;index" json:"merchant_reference"`
	NotificationType string         `gorm:"size:30" json:"notification_type"`
	Status           string         `gorm:"size:20;not null;index" json:"status"`
	Error            string         `gorm:"type:text" json:"error,omitempty"`
	Payload          datatypes.JSON `json:"payload"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (IPNEvent) TableName() string {
	return "payment_ipn_events"
}
