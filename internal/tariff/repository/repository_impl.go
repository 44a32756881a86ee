package repository

import (
	"context"
	"time"

	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tariffdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rate *tariffdomain.TariffRate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tariff_rates (
			id, cold_water_rate, hot_water_rate, sewage_rate, valid_from, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		rate.ID,
		rate.ColdWaterRate,
		rate.HotWaterRate,
		rate.SewageRate,
		rate.ValidFrom,
		rate.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]tariffdomain.TariffRate, error) {
	var items []tariffdomain.TariffRate
	err := db.WithContext(ctx).Raw(
		`SELECT id, cold_water_rate, hot_water_rate, sewage_rate, valid_from, created_at
		 FROM tariff_rates
		 ORDER BY valid_from DESC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindEffective(ctx context.Context, db *gorm.DB, at time.Time) (*tariffdomain.TariffRate, error) {
	var item tariffdomain.TariffRate
	err := db.WithContext(ctx).Raw(
		`SELECT id, cold_water_rate, hot_water_rate, sewage_rate, valid_from, created_at
		 FROM tariff_rates
		 WHERE valid_from <= ?
		 ORDER BY valid_from DESC
		 LIMIT 1`,
		at.UTC(),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
