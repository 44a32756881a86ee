package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
)

type Service interface {
	// Generate creates or re-bills the payment of an apartment for a period.
	Generate(ctx context.Context, req GenerateRequest) (*Response, error)
	GenerateForApartment(ctx context.Context, apartmentID snowflake.ID, period billingperiod.Period, actor Actor) (*Response, error)
	ApplyAction(ctx context.Context, req ActionRequest) (*Response, error)
	// RunOverdueSweep marks every pending payment due before asOf as overdue
	// and returns how many were transitioned.
	RunOverdueSweep(ctx context.Context, asOf time.Time) (int, error)

	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	ListTransitions(ctx context.Context, id string) ([]TransitionResponse, error)
}

// Actor is recorded on the transition history.
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type GenerateRequest struct {
	ApartmentID string `json:"apartment_id"`
	Period      string `json:"period"`
	Actor       Actor  `json:"-"`
}

type ActionRequest struct {
	PaymentID string `json:"-"`
	Action    Action `json:"action"`
	Actor     Actor  `json:"-"`
}

type ListRequest struct {
	pagination.Pagination
	ApartmentID string `form:"apartment_id"`
	Year        int    `form:"year"`
	Status      string `form:"status"`
}

type ListResponse struct {
	Data     []Response          `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID            string          `json:"id"`
	ApartmentID   string          `json:"apartment_id"`
	Period        string          `json:"period"`
	TariffID      string          `json:"tariff_id"`
	ColdVolume    decimal.Decimal `json:"cold_volume"`
	HotVolume     decimal.Decimal `json:"hot_volume"`
	ColdWaterCost decimal.Decimal `json:"cold_water_cost"`
	HotWaterCost  decimal.Decimal `json:"hot_water_cost"`
	SewageCost    decimal.Decimal `json:"sewage_cost"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	DueAt         time.Time       `json:"due_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type TransitionResponse struct {
	ID         string         `json:"id"`
	PaymentID  string         `json:"payment_id"`
	FromStatus string         `json:"from_status,omitempty"`
	ToStatus   Status         `json:"to_status"`
	Action     Action         `json:"action"`
	ActorType  string         `json:"actor_type"`
	ActorID    string         `json:"actor_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidApartment   = errors.New("invalid_apartment")
	ErrInvalidAction      = errors.New("invalid_action")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidYear        = errors.New("invalid_year")
	ErrNotFound           = errors.New("not_found")
	ErrImmutablePayment   = errors.New("immutable_payment")
	ErrConcurrentModified = errors.New("concurrent_modification")
)

// ImmutablePaymentError is returned when generation targets a payment that
// is already paid or cancelled.
type ImmutablePaymentError struct {
	PaymentID   snowflake.ID
	ApartmentID snowflake.ID
	Period      billingperiod.Period
	Status      Status
}

func (e *ImmutablePaymentError) Error() string {
	return fmt.Sprintf("payment %s for apartment %s in period %s is %s and cannot be re-billed",
		e.PaymentID, e.ApartmentID, e.Period, e.Status)
}

func (e *ImmutablePaymentError) Unwrap() error { return ErrImmutablePayment }
