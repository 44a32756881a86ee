package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
)

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*Response, error)
	List(ctx context.Context, apartmentID string, period string) ([]Response, error)

	ListForPeriod(ctx context.Context, apartmentID snowflake.ID, period billingperiod.Period) ([]MeterReading, error)
	// PriorPeriodReadings returns the collapsed readings of the most recent
	// period before period. ok is false when the apartment has no history.
	PriorPeriodReadings(ctx context.Context, apartmentID snowflake.ID, period billingperiod.Period) (readings []MeterReading, prior billingperiod.Period, ok bool, err error)
	ApartmentsWithReadings(ctx context.Context, period billingperiod.Period) ([]snowflake.ID, error)
}

type RecordRequest struct {
	ApartmentID string          `json:"apartment_id"`
	Period      string          `json:"period"`
	WaterType   WaterType       `json:"water_type"`
	Location    string          `json:"location"`
	Indication  decimal.Decimal `json:"indication"`
	RecordedAt  *time.Time      `json:"recorded_at,omitempty"`
}

type Response struct {
	ID          string          `json:"id"`
	ApartmentID string          `json:"apartment_id"`
	Period      string          `json:"period"`
	WaterType   WaterType       `json:"water_type"`
	Location    string          `json:"location"`
	Indication  decimal.Decimal `json:"indication"`
	RecordedAt  time.Time       `json:"recorded_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

var (
	ErrInvalidApartment  = errors.New("invalid_apartment")
	ErrInvalidWaterType  = errors.New("invalid_water_type")
	ErrInvalidLocation   = errors.New("invalid_location")
	ErrInvalidIndication = errors.New("invalid_indication")
)
