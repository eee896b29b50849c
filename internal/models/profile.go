package models

import "time"

// Profile is the part of a user profile this service owns: the paid
// verification badge and the push token. Accounts live with the auth provider.
type Profile struct {
	ID              uint       `gorm:"primaryKey" json:"-"`
	UserID          string     `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	IsVerified      bool       `gorm:"not null;default:false" json:"is_verified"`
	VerifiedAt      *time.Time `json:"verified_at"`
	VerificationRef string     `gorm:"size:64" json:"verification_ref,omitempty"`
	FCMToken        string     `gorm:"size:512" json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
