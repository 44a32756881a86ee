package domain

import (
	"context"
	"errors"
)

type Service interface {
	Payments(ctx context.Context, req Request) (*PaymentsResponse, error)
	ServiceRequests(ctx context.Context, req Request) (*ServiceRequestsResponse, error)
}

type Request struct {
	ApartmentID string `form:"apartment_id"`
	Year        int    `form:"year"`
}

type PaymentsResponse struct {
	Scope  string             `json:"scope"`
	Year   int                `json:"year"`
	Months []MonthlyBreakdown `json:"months"`
}

type ServiceRequestsResponse struct {
	Scope  string                    `json:"scope"`
	Year   int                       `json:"year"`
	Months []ServiceRequestBreakdown `json:"months"`
}

var (
	ErrInvalidApartment = errors.New("invalid_apartment")
	ErrInvalidYear      = errors.New("invalid_year")
)
