package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MonthlyBreakdown is one month of a yearly payment rollup. Paid amounts only
// include payments whose status is paid.
type MonthlyBreakdown struct {
	Month           int             `json:"month"`
	Period          string          `json:"period"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	WaterAmount     decimal.Decimal `json:"water_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	PaidWaterAmount decimal.Decimal `json:"paid_water_amount"`
	ColdVolume      decimal.Decimal `json:"cold_volume"`
	HotVolume       decimal.Decimal `json:"hot_volume"`
	PaymentCount    int64           `json:"payment_count"`
	PendingCount    int64           `json:"pending_count"`
	PaidCount       int64           `json:"paid_count"`
	OverdueCount    int64           `json:"overdue_count"`
	CancelledCount  int64           `json:"cancelled_count"`
}

type ServiceRequestBreakdown struct {
	Month    int              `json:"month"`
	Period   string           `json:"period"`
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// ServiceRequest is a resident ticket. Rows are owned by the ticketing
// frontend; statistics only reads them.
type ServiceRequest struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID `json:"apartment_id" gorm:"column:apartment_id;not null;index:idx_service_requests_apartment_created,priority:1"`
	Category    string       `json:"category" gorm:"column:category;type:text;not null"`
	Status      string       `json:"status" gorm:"column:status;type:text;not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;index:idx_service_requests_apartment_created,priority:2"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (ServiceRequest) TableName() string { return "service_requests" }

// Scope narrows a rollup to one apartment. A zero ApartmentID means every
// apartment.
type Scope struct {
	ApartmentID snowflake.ID
}

func (s Scope) All() bool { return s.ApartmentID == 0 }

func (s Scope) String() string {
	if s.All() {
		return "all"
	}
	return s.ApartmentID.String()
}
