package repository

import (
	"context"
	"time"

	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	statisticsdomain "github.com/smallbiznis/tirta/internal/statistics/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() statisticsdomain.Repository {
	return &repo{}
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, scope statisticsdomain.Scope, year int) ([]paymentdomain.Payment, error) {
	query := `SELECT id, apartment_id, period_year, period_month,
			cold_volume, hot_volume, cold_water_cost, hot_water_cost, sewage_cost,
			total_amount, status
		 FROM payments
		 WHERE period_year = ?`
	args := []any{year}
	if !scope.All() {
		query += ` AND apartment_id = ?`
		args = append(args, scope.ApartmentID)
	}
	query += ` ORDER BY period_month ASC, id ASC`

	var items []paymentdomain.Payment
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListServiceRequests(ctx context.Context, db *gorm.DB, scope statisticsdomain.Scope, year int) ([]statisticsdomain.ServiceRequest, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	query := `SELECT id, apartment_id, category, status, created_at, updated_at
		 FROM service_requests
		 WHERE created_at >= ? AND created_at < ?`
	args := []any{from, to}
	if !scope.All() {
		query += ` AND apartment_id = ?`
		args = append(args, scope.ApartmentID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var items []statisticsdomain.ServiceRequest
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
