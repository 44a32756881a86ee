package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"gorm.io/gorm"
)

type ListFilter struct {
	ApartmentID *snowflake.ID
	Year        int
	Status      Status
	// Keyset position: rows strictly after (AfterPeriodKey, AfterID) in
	// period-descending, id-descending order.
	AfterPeriodKey int
	AfterID        snowflake.ID
	Limit          int
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByApartmentPeriod(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, period billingperiod.Period) (*Payment, error)
	// InsertIfAbsent inserts p unless a payment for the same apartment and
	// period exists. It reports whether the row was written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, p *Payment) (bool, error)
	// UpdateBilling overwrites amounts, due date and status when the stored
	// status still equals expected.
	UpdateBilling(ctx context.Context, db *gorm.DB, p *Payment, expected Status) (bool, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, paidAt *time.Time, updatedAt time.Time) (bool, error)
	ListOverdueCandidates(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]Payment, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Payment, error)

	InsertTransition(ctx context.Context, db *gorm.DB, t *PaymentTransition) error
	ListTransitions(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]PaymentTransition, error)
}
