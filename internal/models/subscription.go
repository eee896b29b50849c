package models

import "time"

type SubscriptionPlan struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Price         int64     `gorm:"not null" json:"price"`
	Currency      string    `gorm:"size:3;not null;default:'KES'" json:"currency"`
	BoostCredits  int       `gorm:"not null;default:0" json:"boost_credits"`
	DurationDays  int       `gorm:"not null;default:30" json:"duration_days"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

type UserSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"`
	PlanID    uint      `gorm:"not null" json:"plan_id"`
	Status    string    `gorm:"size:20;not null;index" json:"status"` // active, expired, cancelled
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `gorm:"index" json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Plan SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan"`
}

func (UserSubscription) TableName() string {
	return "user_subscriptions"
}
