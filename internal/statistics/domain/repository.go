package domain

import (
	"context"

	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"gorm.io/gorm"
)

type Repository interface {
	ListPayments(ctx context.Context, db *gorm.DB, scope Scope, year int) ([]paymentdomain.Payment, error)
	ListServiceRequests(ctx context.Context, db *gorm.DB, scope Scope, year int) ([]ServiceRequest, error)
}
