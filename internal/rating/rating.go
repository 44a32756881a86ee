// Package rating prices a consumption record against a tariff.
package rating

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/consumption"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
)

// Lines is the itemized cost of one billing period.
type Lines struct {
	ColdWater decimal.Decimal
	HotWater  decimal.Decimal
	Sewage    decimal.Decimal
	Total     decimal.Decimal
}

// Compose applies tariff rates to a consumption record. Sewage is billed on
// the combined cold and hot volume. No rounding is applied.
func Compose(record consumption.Record, tariff tariffdomain.TariffRate) Lines {
	cold := record.Cold.Mul(tariff.ColdWaterRate)
	hot := record.Hot.Mul(tariff.HotWaterRate)
	sewage := record.Total().Mul(tariff.SewageRate)
	return Lines{
		ColdWater: cold,
		HotWater:  hot,
		Sewage:    sewage,
		Total:     cold.Add(hot).Add(sewage),
	}
}

// Round rounds every line and the total to scale fraction digits (half away
// from zero) and folds any residual into the largest line so that the lines
// still sum to the rounded total. Ties go to the first line in cold, hot,
// sewage order.
func (l Lines) Round(scale int32) Lines {
	rounded := Lines{
		ColdWater: l.ColdWater.Round(scale),
		HotWater:  l.HotWater.Round(scale),
		Sewage:    l.Sewage.Round(scale),
		Total:     l.Total.Round(scale),
	}

	residual := rounded.Total.Sub(rounded.ColdWater.Add(rounded.HotWater).Add(rounded.Sewage))
	if residual.IsZero() {
		return rounded
	}

	largest := &rounded.ColdWater
	for _, line := range []*decimal.Decimal{&rounded.HotWater, &rounded.Sewage} {
		if line.GreaterThan(*largest) {
			largest = line
		}
	}
	*largest = largest.Add(residual)
	return rounded
}

// Balanced reports whether the lines sum exactly to the total.
func (l Lines) Balanced() bool {
	return l.ColdWater.Add(l.HotWater).Add(l.Sewage).Equal(l.Total)
}
