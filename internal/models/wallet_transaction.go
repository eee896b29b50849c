package models

import "time"

// CreditTransaction records every grant/debit of boost credits.
type CreditTransaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         string    `gorm:"size:64;not null;index" json:"user_id"`
	Delta          int       `gorm:"not null" json:"delta"`                     // positive = grant, negative = debit
	Reason         string    `gorm:"size:30;not null;index" json:"reason"`      // FREE_ALLOTMENT, PURCHASE, BOOST
	Reference      string    `gorm:"size:128;index" json:"reference,omitempty"` // order reference or boost id
	AvailableAfter int       `gorm:"not null" json:"available_after"`
	CreatedAt      time.Time `json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
