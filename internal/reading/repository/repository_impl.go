package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() readingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *readingdomain.MeterReading) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meter_readings (
			id, apartment_id, period_year, period_month, water_type,
			location, indication, recorded_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.ApartmentID,
		m.PeriodYear,
		m.PeriodMonth,
		m.WaterType,
		m.Location,
		m.Indication,
		m.RecordedAt,
		m.CreatedAt,
	).Error
}

func (r *repo) ListForPeriod(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, period billingperiod.Period) ([]readingdomain.MeterReading, error) {
	var items []readingdomain.MeterReading
	err := db.WithContext(ctx).Raw(
		`SELECT id, apartment_id, period_year, period_month, water_type,
		 location, indication, recorded_at, created_at
		 FROM meter_readings
		 WHERE apartment_id = ? AND period_year = ? AND period_month = ?
		 ORDER BY recorded_at ASC, id ASC`,
		apartmentID,
		period.Year,
		int(period.Month),
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) LatestPeriodBefore(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, period billingperiod.Period) (billingperiod.Period, bool, error) {
	var row struct {
		PeriodYear  int `gorm:"column:period_year"`
		PeriodMonth int `gorm:"column:period_month"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT period_year, period_month
		 FROM meter_readings
		 WHERE apartment_id = ?
		   AND (period_year < ? OR (period_year = ? AND period_month < ?))
		 ORDER BY period_year DESC, period_month DESC
		 LIMIT 1`,
		apartmentID,
		period.Year,
		period.Year,
		int(period.Month),
	).Scan(&row).Error
	if err != nil {
		return billingperiod.Period{}, false, err
	}
	if row.PeriodYear == 0 {
		return billingperiod.Period{}, false, nil
	}
	return billingperiod.FromKey(row.PeriodYear*100 + row.PeriodMonth), true, nil
}

func (r *repo) ListApartmentIDs(ctx context.Context, db *gorm.DB, period billingperiod.Period) ([]snowflake.ID, error) {
	var ids []int64
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT apartment_id
		 FROM meter_readings
		 WHERE period_year = ? AND period_month = ?
		 ORDER BY apartment_id ASC`,
		period.Year,
		int(period.Month),
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}

	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		out = append(out, snowflake.ID(id))
	}
	return out, nil
}
