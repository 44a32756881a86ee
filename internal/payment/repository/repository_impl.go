package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"gorm.io/gorm"
)

const paymentColumns = `id, apartment_id, period_year, period_month, tariff_id,
	cold_volume, hot_volume, cold_water_cost, hot_water_cost, sewage_cost,
	total_amount, currency, status, due_at, paid_at, created_at, updated_at`

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*paymentdomain.Payment, error) {
	var item paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByApartmentPeriod(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, period billingperiod.Period) (*paymentdomain.Payment, error) {
	var item paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE apartment_id = ? AND period_year = ? AND period_month = ?
		 LIMIT 1`,
		apartmentID,
		period.Year,
		int(period.Month),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, p *paymentdomain.Payment) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (apartment_id, period_year, period_month) DO NOTHING`,
		p.ID,
		p.ApartmentID,
		p.PeriodYear,
		p.PeriodMonth,
		p.TariffID,
		p.ColdVolume,
		p.HotVolume,
		p.ColdWaterCost,
		p.HotWaterCost,
		p.SewageCost,
		p.TotalAmount,
		p.Currency,
		p.Status,
		p.DueAt,
		p.PaidAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateBilling(ctx context.Context, db *gorm.DB, p *paymentdomain.Payment, expected paymentdomain.Status) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET tariff_id = ?, cold_volume = ?, hot_volume = ?,
		     cold_water_cost = ?, hot_water_cost = ?, sewage_cost = ?, total_amount = ?,
		     currency = ?, status = ?, due_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		p.TariffID,
		p.ColdVolume,
		p.HotVolume,
		p.ColdWaterCost,
		p.HotWaterCost,
		p.SewageCost,
		p.TotalAmount,
		p.Currency,
		p.Status,
		p.DueAt,
		p.UpdatedAt,
		p.ID,
		expected,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to paymentdomain.Status, paidAt *time.Time, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		paidAt,
		updatedAt,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListOverdueCandidates(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]paymentdomain.Payment, error) {
	var items []paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE status = ? AND due_at < ?
		 ORDER BY due_at ASC, id ASC
		 LIMIT ?`,
		paymentdomain.StatusPending,
		asOf.UTC(),
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter paymentdomain.ListFilter) ([]paymentdomain.Payment, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 8)

	if filter.ApartmentID != nil {
		conditions = append(conditions, "apartment_id = ?")
		args = append(args, *filter.ApartmentID)
	}
	if filter.Year > 0 {
		conditions = append(conditions, "period_year = ?")
		args = append(args, filter.Year)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.AfterID != 0 {
		conditions = append(conditions, "((period_year * 100 + period_month) < ? OR ((period_year * 100 + period_month) = ? AND id < ?))")
		args = append(args, filter.AfterPeriodKey, filter.AfterPeriodKey, filter.AfterID)
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY period_year DESC, period_month DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var items []paymentdomain.Payment
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertTransition(ctx context.Context, db *gorm.DB, t *paymentdomain.PaymentTransition) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_transitions (
			id, payment_id, from_status, to_status, action,
			actor_type, actor_id, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.PaymentID,
		t.FromStatus,
		t.ToStatus,
		t.Action,
		t.ActorType,
		t.ActorID,
		t.Metadata,
		t.CreatedAt,
	).Error
}

func (r *repo) ListTransitions(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]paymentdomain.PaymentTransition, error) {
	var items []paymentdomain.PaymentTransition
	err := db.WithContext(ctx).Raw(
		`SELECT id, payment_id, from_status, to_status, action,
		 actor_type, actor_id, metadata, created_at
		 FROM payment_transitions
		 WHERE payment_id = ?
		 ORDER BY created_at ASC, id ASC`,
		paymentID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
