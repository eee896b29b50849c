package repository

import (
	"context"
	"time"

	"nguvuhire/internal/domain"
	"nguvuhire/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	OrdersByStatus     map[string]int64 `json:"orders_by_status"`
	TotalRevenue       int64            `json:"total_revenue"`
	VerifiedProfiles   int64            `json:"verified_profiles"`
	ActiveBoosts       int64            `json:"active_boosts"`
	CreditsOutstanding int64            `json:"credits_outstanding"`
	CreditsUsed        int64            `json:"credits_used"`
}

type RevenuePoint struct {
	Date   string `json:"date"`
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
	Orders int64  `json:"orders"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	db := r.db.WithContext(ctx)
	s := DashboardStats{OrdersByStatus: map[string]int64{}}

	var byStatus []struct {
		Status string
		Total  int64
	}
	if err := db.Model(&models.PaymentOrder{}).Select("status, COUNT(*) AS total").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		s.OrdersByStatus[row.Status] = row.Total
	}

	var rev struct{ Total int64 }
	if err := db.Model(&models.PaymentOrder{}).Select("COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", domain.OrderStatusCompleted).Scan(&rev).Error; err != nil {
		return nil, err
	}
	s.TotalRevenue = rev.Total

	if err := db.Model(&models.Profile{}).Where("is_verified = ?", true).Count(&s.VerifiedProfiles).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.BoostRecord{}).Where("is_active = ?", true).Count(&s.ActiveBoosts).Error; err != nil {
		return nil, err
	}

	var credits struct{ Available, Used int64 }
	if err := db.Model(&models.CreditBalance{}).
		Select("COALESCE(SUM(credits_available), 0) AS available, COALESCE(SUM(credits_used), 0) AS used").
		Scan(&credits).Error; err != nil {
		return nil, err
	}
	s.CreditsOutstanding, s.CreditsUsed = credits.Available, credits.Used
	return &s, nil
}

// RevenueByDay sums completed orders per day and kind since the given time.
func (r *AdminRepository) RevenueByDay(ctx context.Context, since time.Time) ([]RevenuePoint, error) {
	var list []RevenuePoint
	err := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Select("DATE(completed_at) AS date, kind, SUM(amount) AS amount, COUNT(*) AS orders").
		Where("status = ? AND completed_at >= ?", domain.OrderStatusCompleted, since).
		Group("DATE(completed_at), kind").
		Order("date ASC, kind ASC").
		Scan(&list).Error
	return list, err
}

// ListPayments returns orders with optional status filter, newest first.
func (r *AdminRepository) ListPayments(ctx context.Context, status string, page, limit int) ([]models.PaymentOrder, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.PaymentOrder{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	var list []models.PaymentOrder
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
