package models

import "time"

// CreditBalance holds a user's boost credits.
type CreditBalance struct {
	ID               uint      `gorm:"primaryKey" json:"-"`
	UserID           string    `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	CreditsAvailable int       `gorm:"not null;default:0" json:"credits_available"`
	CreditsUsed      int       `gorm:"not null;default:0" json:"credits_used"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (CreditBalance) TableName() string {
	return "user_boost_credits"
}
