package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	default:
		return false
	}
}

// Mutable reports whether generation may still overwrite the billed amounts.
func (s Status) Mutable() bool {
	return s == StatusPending || s == StatusOverdue
}

type Action string

const (
	ActionPay         Action = "pay"
	ActionCancel      Action = "cancel"
	ActionRestore     Action = "restore"
	ActionMarkOverdue Action = "mark_overdue"

	// History-only actions written by the generator.
	ActionCreate Action = "create"
	ActionRebill Action = "rebill"
)

// Payment is the billed amount of one apartment for one period. There is at
// most one row per (apartment_id, period_year, period_month).
type Payment struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	ApartmentID   snowflake.ID    `json:"apartment_id" gorm:"column:apartment_id;not null;uniqueIndex:ux_payments_apartment_period,priority:1"`
	PeriodYear    int             `json:"period_year" gorm:"column:period_year;not null;uniqueIndex:ux_payments_apartment_period,priority:2;index:idx_payments_period,priority:1"`
	PeriodMonth   int             `json:"period_month" gorm:"column:period_month;not null;uniqueIndex:ux_payments_apartment_period,priority:3;index:idx_payments_period,priority:2"`
	TariffID      snowflake.ID    `json:"tariff_id" gorm:"column:tariff_id;not null"`
	ColdVolume    decimal.Decimal `json:"cold_volume" gorm:"column:cold_volume;type:numeric(18,4);not null"`
	HotVolume     decimal.Decimal `json:"hot_volume" gorm:"column:hot_volume;type:numeric(18,4);not null"`
	ColdWaterCost decimal.Decimal `json:"cold_water_cost" gorm:"column:cold_water_cost;type:numeric(18,4);not null"`
	HotWaterCost  decimal.Decimal `json:"hot_water_cost" gorm:"column:hot_water_cost;type:numeric(18,4);not null"`
	SewageCost    decimal.Decimal `json:"sewage_cost" gorm:"column:sewage_cost;type:numeric(18,4);not null"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"column:total_amount;type:numeric(18,4);not null"`
	Currency      string          `json:"currency" gorm:"column:currency;type:text;not null"`
	Status        Status          `json:"status" gorm:"column:status;type:text;not null;index:idx_payments_status_due,priority:1"`
	DueAt         time.Time       `json:"due_at" gorm:"column:due_at;not null;index:idx_payments_status_due,priority:2"`
	PaidAt        *time.Time      `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

func (p Payment) Period() billingperiod.Period {
	return billingperiod.Period{Year: p.PeriodYear, Month: time.Month(p.PeriodMonth)}
}

// PaymentTransition is one entry of a payment's status history.
type PaymentTransition struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	PaymentID  snowflake.ID      `json:"payment_id" gorm:"column:payment_id;not null;index"`
	FromStatus string            `json:"from_status" gorm:"column:from_status;type:text;not null"`
	ToStatus   Status            `json:"to_status" gorm:"column:to_status;type:text;not null"`
	Action     Action            `json:"action" gorm:"column:action;type:text;not null"`
	ActorType  string            `json:"actor_type" gorm:"column:actor_type;type:text;not null"`
	ActorID    string            `json:"actor_id" gorm:"column:actor_id;type:text"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null"`
}

func (PaymentTransition) TableName() string { return "payment_transitions" }
