package models

import "time"

// Job and AvailabilityPost are read here only to check who may boost them.
type Job struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255" json:"title"`
	CreatedBy string    `gorm:"size:64;not null;index" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (Job) TableName() string {
	return "jobs"
}

type AvailabilityPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255" json:"title"`
	CreatedBy string    `gorm:"size:64;not null;index" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (AvailabilityPost) TableName() string {
	return "availability_posts"
}
