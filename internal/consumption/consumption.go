// Package consumption derives per-period water volumes from meter readings.
package consumption

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
)

var (
	ErrNoReading           = errors.New("no_reading")
	ErrNegativeConsumption = errors.New("negative_consumption")
	ErrForeignReading      = errors.New("foreign_reading")
)

// Record is the volume attributed to one apartment for one period, in m³.
// It is derived on demand and never persisted on its own.
type Record struct {
	ApartmentID snowflake.ID
	Period      billingperiod.Period
	Cold        decimal.Decimal
	Hot         decimal.Decimal
}

func (r Record) Total() decimal.Decimal {
	return r.Cold.Add(r.Hot)
}

// NoReadingError means the billed period has no readings at all.
type NoReadingError struct {
	ApartmentID snowflake.ID
	Period      billingperiod.Period
}

func (e *NoReadingError) Error() string {
	return fmt.Sprintf("no meter readings for apartment %s in period %s", e.ApartmentID, e.Period)
}

func (e *NoReadingError) Unwrap() error { return ErrNoReading }

// NegativeConsumptionError means the current total of a water type is below
// the prior total, which points at a meter replacement or a bad reading.
type NegativeConsumptionError struct {
	ApartmentID snowflake.ID
	Period      billingperiod.Period
	WaterType   readingdomain.WaterType
	Current     decimal.Decimal
	Prior       decimal.Decimal
}

func (e *NegativeConsumptionError) Error() string {
	return fmt.Sprintf("negative %s water consumption for apartment %s in period %s: current %s < prior %s",
		e.WaterType, e.ApartmentID, e.Period, e.Current, e.Prior)
}

func (e *NegativeConsumptionError) Unwrap() error { return ErrNegativeConsumption }

// ComputeDelta sums indications per water type over the current and prior
// readings of one apartment and returns their difference. With no prior
// readings the current totals are the delta. Superseded readings are
// collapsed first. Nothing is rounded here.
func ComputeDelta(apartmentID snowflake.ID, period billingperiod.Period, current, prior []readingdomain.MeterReading) (Record, error) {
	if len(current) == 0 {
		return Record{}, &NoReadingError{ApartmentID: apartmentID, Period: period}
	}

	currentTotal, err := totals(apartmentID, readingdomain.Collapse(current))
	if err != nil {
		return Record{}, err
	}
	priorTotal, err := totals(apartmentID, readingdomain.Collapse(prior))
	if err != nil {
		return Record{}, err
	}

	record := Record{ApartmentID: apartmentID, Period: period}
	for _, waterType := range []readingdomain.WaterType{readingdomain.WaterCold, readingdomain.WaterHot} {
		delta := currentTotal[waterType].Sub(priorTotal[waterType])
		if delta.IsNegative() {
			return Record{}, &NegativeConsumptionError{
				ApartmentID: apartmentID,
				Period:      period,
				WaterType:   waterType,
				Current:     currentTotal[waterType],
				Prior:       priorTotal[waterType],
			}
		}
		switch waterType {
		case readingdomain.WaterCold:
			record.Cold = delta
		case readingdomain.WaterHot:
			record.Hot = delta
		}
	}
	return record, nil
}

func totals(apartmentID snowflake.ID, readings []readingdomain.MeterReading) (map[readingdomain.WaterType]decimal.Decimal, error) {
	out := map[readingdomain.WaterType]decimal.Decimal{
		readingdomain.WaterCold: decimal.Zero,
		readingdomain.WaterHot:  decimal.Zero,
	}
	for _, r := range readings {
		if r.ApartmentID != apartmentID {
			return nil, fmt.Errorf("%w: reading %s belongs to apartment %s", ErrForeignReading, r.ID, r.ApartmentID)
		}
		if !r.WaterType.Valid() {
			return nil, fmt.Errorf("%w: reading %s", readingdomain.ErrInvalidWaterType, r.ID)
		}
		out[r.WaterType] = out[r.WaterType].Add(r.Indication)
	}
	return out, nil
}
