package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reading *MeterReading) error
	ListForPeriod(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, period billingperiod.Period) ([]MeterReading, error)
	// LatestPeriodBefore returns the greatest period strictly before period
	// that holds readings for the apartment, or false if there is none.
	LatestPeriodBefore(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, period billingperiod.Period) (billingperiod.Period, bool, error)
	ListApartmentIDs(ctx context.Context, db *gorm.DB, period billingperiod.Period) ([]snowflake.ID, error)
}
