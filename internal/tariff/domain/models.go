package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TariffRate is an effective-dated price table. Rates are per cubic meter.
type TariffRate struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	ColdWaterRate decimal.Decimal `json:"cold_water_rate" gorm:"column:cold_water_rate;type:numeric(18,4);not null"`
	HotWaterRate  decimal.Decimal `json:"hot_water_rate" gorm:"column:hot_water_rate;type:numeric(18,4);not null"`
	SewageRate    decimal.Decimal `json:"sewage_rate" gorm:"column:sewage_rate;type:numeric(18,4);not null"`
	ValidFrom     time.Time       `json:"valid_from" gorm:"column:valid_from;not null;uniqueIndex:ux_tariff_rates_valid_from"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
}

func (TariffRate) TableName() string { return "tariff_rates" }
