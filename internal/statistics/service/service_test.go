package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/clock"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	statisticsdomain "github.com/smallbiznis/tirta/internal/statistics/domain"
	"github.com/smallbiznis/tirta/internal/statistics/repository"
	"github.com/smallbiznis/tirta/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *snowflake.Node, statisticsdomain.Service) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&paymentdomain.Payment{}, &statisticsdomain.ServiceRequest{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)),
	})
	return conn, node, svc
}

func insertPayment(t *testing.T, conn *gorm.DB, node *snowflake.Node, apartment snowflake.ID, month int, status paymentdomain.Status, total int64) {
	t.Helper()
	now := time.Date(2024, time.Month(month), 20, 0, 0, 0, 0, time.UTC)
	water := decimal.NewFromInt(total).Mul(decimal.RequireFromString("0.8"))
	require.NoError(t, conn.Create(&paymentdomain.Payment{
		ID:            node.Generate(),
		ApartmentID:   apartment,
		PeriodYear:    2024,
		PeriodMonth:   month,
		TariffID:      1,
		ColdVolume:    decimal.NewFromInt(5),
		HotVolume:     decimal.NewFromInt(4),
		ColdWaterCost: water,
		HotWaterCost:  decimal.Zero,
		SewageCost:    decimal.NewFromInt(total).Sub(water),
		TotalAmount:   decimal.NewFromInt(total),
		Currency:      "IDR",
		Status:        status,
		DueAt:         now.AddDate(0, 1, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error)
}

func TestPaymentsForApartment(t *testing.T) {
	conn, node, svc := setup(t)
	insertPayment(t, conn, node, 1001, 3, paymentdomain.StatusPaid, 24000)
	insertPayment(t, conn, node, 1001, 7, paymentdomain.StatusPending, 18000)
	insertPayment(t, conn, node, 2002, 7, paymentdomain.StatusPaid, 5000)

	resp, err := svc.Payments(context.Background(), statisticsdomain.Request{ApartmentID: "1001", Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "1001", resp.Scope)
	require.Len(t, resp.Months, 12)

	zero := 0
	for _, m := range resp.Months {
		if m.PaymentCount == 0 {
			zero++
			assert.True(t, m.TotalAmount.IsZero())
		}
	}
	assert.Equal(t, 10, zero)
	assert.True(t, resp.Months[2].TotalAmount.Equal(decimal.NewFromInt(24000)))
	assert.True(t, resp.Months[2].PaidAmount.Equal(decimal.NewFromInt(24000)))
	assert.True(t, resp.Months[6].TotalAmount.Equal(decimal.NewFromInt(18000)))
	assert.True(t, resp.Months[6].PaidAmount.IsZero())
}

func TestPaymentsForAllApartments(t *testing.T) {
	conn, node, svc := setup(t)
	insertPayment(t, conn, node, 1001, 7, paymentdomain.StatusPending, 18000)
	insertPayment(t, conn, node, 2002, 7, paymentdomain.StatusPaid, 5000)

	resp, err := svc.Payments(context.Background(), statisticsdomain.Request{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "all", resp.Scope)
	assert.True(t, resp.Months[6].TotalAmount.Equal(decimal.NewFromInt(23000)))
	assert.True(t, resp.Months[6].PaidAmount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, int64(2), resp.Months[6].PaymentCount)
}

func TestPaymentsDefaultsToCurrentYear(t *testing.T) {
	_, _, svc := setup(t)

	resp, err := svc.Payments(context.Background(), statisticsdomain.Request{})
	require.NoError(t, err)
	assert.Equal(t, 2024, resp.Year)
	assert.Len(t, resp.Months, 12)
}

func TestPaymentsValidation(t *testing.T) {
	_, _, svc := setup(t)

	_, err := svc.Payments(context.Background(), statisticsdomain.Request{ApartmentID: "flat-1"})
	require.ErrorIs(t, err, statisticsdomain.ErrInvalidApartment)

	_, err = svc.Payments(context.Background(), statisticsdomain.Request{Year: -1})
	require.ErrorIs(t, err, statisticsdomain.ErrInvalidYear)
}

func TestServiceRequests(t *testing.T) {
	conn, node, svc := setup(t)
	for _, r := range []struct {
		apartment snowflake.ID
		status    string
		at        time.Time
	}{
		{1001, "open", time.Date(2024, 2, 3, 8, 0, 0, 0, time.UTC)},
		{1001, "resolved", time.Date(2024, 2, 9, 8, 0, 0, 0, time.UTC)},
		{2002, "open", time.Date(2024, 2, 9, 8, 0, 0, 0, time.UTC)},
		{1001, "open", time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)},
	} {
		require.NoError(t, conn.Create(&statisticsdomain.ServiceRequest{
			ID:          node.Generate(),
			ApartmentID: r.apartment,
			Category:    "plumbing",
			Status:      r.status,
			CreatedAt:   r.at,
			UpdatedAt:   r.at,
		}).Error)
	}

	resp, err := svc.ServiceRequests(context.Background(), statisticsdomain.Request{ApartmentID: "1001", Year: 2024})
	require.NoError(t, err)
	require.Len(t, resp.Months, 12)
	assert.Equal(t, int64(2), resp.Months[1].Total)
	assert.Equal(t, int64(1), resp.Months[1].ByStatus["resolved"])
	assert.Equal(t, int64(0), resp.Months[11].Total)

	all, err := svc.ServiceRequests(context.Background(), statisticsdomain.Request{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Months[1].Total)
}
