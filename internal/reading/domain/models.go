package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
)

type WaterType string

const (
	WaterCold WaterType = "cold"
	WaterHot  WaterType = "hot"
)

func (t WaterType) Valid() bool {
	return t == WaterCold || t == WaterHot
}

// MeterReading is an immutable counter value captured for one meter. A newer
// reading with the same apartment, period, water type and location
// supersedes the older one.
type MeterReading struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID    `json:"apartment_id" gorm:"column:apartment_id;not null;index:idx_meter_readings_apartment_period,priority:1"`
	PeriodYear  int             `json:"period_year" gorm:"column:period_year;not null;index:idx_meter_readings_apartment_period,priority:2"`
	PeriodMonth int             `json:"period_month" gorm:"column:period_month;not null;index:idx_meter_readings_apartment_period,priority:3"`
	WaterType   WaterType       `json:"water_type" gorm:"column:water_type;type:text;not null"`
	Location    string          `json:"location" gorm:"column:location;type:text;not null"`
	Indication  decimal.Decimal `json:"indication" gorm:"column:indication;type:numeric(18,4);not null"`
	RecordedAt  time.Time       `json:"recorded_at" gorm:"column:recorded_at;not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
}

func (MeterReading) TableName() string { return "meter_readings" }

func (r MeterReading) Period() billingperiod.Period {
	return billingperiod.Period{Year: r.PeriodYear, Month: time.Month(r.PeriodMonth)}
}

type meterKey struct {
	apartmentID snowflake.ID
	period      int
	waterType   WaterType
	location    string
}

// Collapse keeps only the latest reading per meter, ordered by recorded_at
// and then id. The result is sorted by water type, location.
func Collapse(readings []MeterReading) []MeterReading {
	latest := make(map[meterKey]MeterReading, len(readings))
	for _, r := range readings {
		key := meterKey{
			apartmentID: r.ApartmentID,
			period:      r.Period().Key(),
			waterType:   r.WaterType,
			location:    r.Location,
		}
		current, ok := latest[key]
		if !ok || supersedes(r, current) {
			latest[key] = r
		}
	}

	out := make([]MeterReading, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ApartmentID != out[j].ApartmentID {
			return out[i].ApartmentID < out[j].ApartmentID
		}
		if out[i].PeriodYear != out[j].PeriodYear || out[i].PeriodMonth != out[j].PeriodMonth {
			return out[i].Period().Before(out[j].Period())
		}
		if out[i].WaterType != out[j].WaterType {
			return out[i].WaterType < out[j].WaterType
		}
		return out[i].Location < out[j].Location
	})
	return out
}

func supersedes(candidate, current MeterReading) bool {
	if !candidate.RecordedAt.Equal(current.RecordedAt) {
		return candidate.RecordedAt.After(current.RecordedAt)
	}
	return candidate.ID > current.ID
}
