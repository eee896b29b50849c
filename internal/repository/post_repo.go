package repository

import (
	"context"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"

	"gorm.io/gorm"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) WithTx(tx *gorm.DB) *PostRepository {
	return &PostRepository{db: tx}
}

// GetOwner returns created_by of a job or availability post.
func (r *PostRepository) GetOwner(ctx context.Context, postType string, postID uint) (string, error) {
	var model interface{}
	switch postType {
	case domain.PostTypeJob:
		model = &models.Job{}
	case domain.PostTypeAvailability:
		model = &models.AvailabilityPost{}
	default:
		return "", domain.ErrInvalidInput
	}
	var owners []string
	err := r.db.WithContext(ctx).Model(model).Where("id = ?", postID).Limit(1).Pluck("created_by", &owners).Error
	if err != nil {
		return "", err
	}
	if len(owners) == 0 || owners[0] == "" {
		return "", domain.ErrNotFound
	}
	return owners[0], nil
}
