package models

import (
	"fmt"
	"time"
)

// BoostRecord is a time-limited promotion of a post. ActiveKey is set while the
// boost is active and cleared when it lapses; its unique index keeps a post to
// one active boost.
type BoostRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      uint      `gorm:"not null;index:idx_boost_post,priority:2" json:"post_id"`
	PostType    string    `gorm:"size:20;not null;index:idx_boost_post,priority:1" json:"post_type"` // job | availability
	UserID      string    `gorm:"size:64;not null;index" json:"user_id"`
	BoostType   string    `gorm:"size:20;not null" json:"boost_type"` // standard, premium, ultra
	CreditsUsed int       `gorm:"not null;default:1" json:"credits_used"`
	BoostStart  time.Time `gorm:"not null" json:"boost_start"`
	BoostEnd    time.Time `gorm:"not null;index" json:"boost_end"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"is_active"`
	ActiveKey   *string   `gorm:"size:64;uniqueIndex" json:"-"`
	OrderRef    string    `gorm:"size:64" json:"order_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (BoostRecord) TableName() string {
	return "boosted_posts"
}

func BoostActiveKey(postType string, postID uint) string {
	return fmt.Sprintf("%s:%d", postType, postID)
}
