package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rate *TariffRate) error
	List(ctx context.Context, db *gorm.DB) ([]TariffRate, error)
	// FindEffective returns the rate with the greatest valid_from not after at.
	FindEffective(ctx context.Context, db *gorm.DB, at time.Time) (*TariffRate, error)
}
