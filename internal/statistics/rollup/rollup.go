// Package rollup folds payments and service requests into twelve monthly rows.
package rollup

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	statisticsdomain "github.com/smallbiznis/tirta/internal/statistics/domain"
)

const months = 12

// Payments returns one row per month of year. Payments from other years are
// ignored and months without payments are zero.
func Payments(year int, payments []paymentdomain.Payment) []statisticsdomain.MonthlyBreakdown {
	rows := make([]statisticsdomain.MonthlyBreakdown, months)
	for i := range rows {
		rows[i] = statisticsdomain.MonthlyBreakdown{
			Month:           i + 1,
			Period:          billingperiod.Period{Year: year, Month: time.Month(i + 1)}.String(),
			TotalAmount:     decimal.Zero,
			WaterAmount:     decimal.Zero,
			PaidAmount:      decimal.Zero,
			PaidWaterAmount: decimal.Zero,
			ColdVolume:      decimal.Zero,
			HotVolume:       decimal.Zero,
		}
	}

	for _, p := range payments {
		if p.PeriodYear != year || p.PeriodMonth < 1 || p.PeriodMonth > months {
			continue
		}
		row := &rows[p.PeriodMonth-1]
		water := p.ColdWaterCost.Add(p.HotWaterCost)

		row.TotalAmount = row.TotalAmount.Add(p.TotalAmount)
		row.WaterAmount = row.WaterAmount.Add(water)
		row.ColdVolume = row.ColdVolume.Add(p.ColdVolume)
		row.HotVolume = row.HotVolume.Add(p.HotVolume)
		row.PaymentCount++

		switch p.Status {
		case paymentdomain.StatusPending:
			row.PendingCount++
		case paymentdomain.StatusPaid:
			row.PaidCount++
			row.PaidAmount = row.PaidAmount.Add(p.TotalAmount)
			row.PaidWaterAmount = row.PaidWaterAmount.Add(water)
		case paymentdomain.StatusOverdue:
			row.OverdueCount++
		case paymentdomain.StatusCancelled:
			row.CancelledCount++
		}
	}
	return rows
}

// ServiceRequests buckets requests by the UTC month they were opened in.
func ServiceRequests(year int, requests []statisticsdomain.ServiceRequest) []statisticsdomain.ServiceRequestBreakdown {
	rows := make([]statisticsdomain.ServiceRequestBreakdown, months)
	for i := range rows {
		rows[i] = statisticsdomain.ServiceRequestBreakdown{
			Month:    i + 1,
			Period:   billingperiod.Period{Year: year, Month: time.Month(i + 1)}.String(),
			ByStatus: map[string]int64{},
		}
	}

	for _, r := range requests {
		created := r.CreatedAt.UTC()
		if created.Year() != year {
			continue
		}
		row := &rows[int(created.Month())-1]
		row.Total++
		row.ByStatus[r.Status]++
	}
	return rows
}
