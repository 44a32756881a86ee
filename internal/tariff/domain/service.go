package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	// Resolve returns the tariff active for period: the one with the latest
	// valid-from on or before the first day of the period.
	Resolve(ctx context.Context, period billingperiod.Period) (*TariffRate, error)
}

type CreateRequest struct {
	ColdWaterRate decimal.Decimal `json:"cold_water_rate"`
	HotWaterRate  decimal.Decimal `json:"hot_water_rate"`
	SewageRate    decimal.Decimal `json:"sewage_rate"`
	ValidFrom     string          `json:"valid_from"`
}

type Response struct {
	ID            string          `json:"id"`
	ColdWaterRate decimal.Decimal `json:"cold_water_rate"`
	HotWaterRate  decimal.Decimal `json:"hot_water_rate"`
	SewageRate    decimal.Decimal `json:"sewage_rate"`
	ValidFrom     string          `json:"valid_from"`
	CreatedAt     time.Time       `json:"created_at"`
}

var (
	ErrInvalidRate      = errors.New("invalid_rate")
	ErrInvalidValidFrom = errors.New("invalid_valid_from")
	ErrDuplicateTariff  = errors.New("duplicate_tariff")
	ErrMissingTariff    = errors.New("missing_tariff")
)

// MissingTariffError reports that no tariff was in effect for a period.
type MissingTariffError struct {
	Period billingperiod.Period
}

func (e *MissingTariffError) Error() string {
	return fmt.Sprintf("no tariff configured for period %s", e.Period)
}

func (e *MissingTariffError) Unwrap() error { return ErrMissingTariff }
