package rating

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/consumption"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
	"github.com/stretchr/testify/assert"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func tariff(cold, hot, sewage string) tariffdomain.TariffRate {
	return tariffdomain.TariffRate{
		ColdWaterRate: dec(cold),
		HotWaterRate:  dec(hot),
		SewageRate:    dec(sewage),
	}
}

func TestComposeExampleScenario(t *testing.T) {
	lines := Compose(
		consumption.Record{Cold: dec("5"), Hot: dec("4")},
		tariff("1500", "3000", "500"),
	)

	assert.Equal(t, "7500", lines.ColdWater.String())
	assert.Equal(t, "12000", lines.HotWater.String())
	assert.Equal(t, "4500", lines.Sewage.String())
	assert.Equal(t, "24000", lines.Total.String())
	assert.True(t, lines.Balanced())

	rounded := lines.Round(2)
	assert.Equal(t, "24000", rounded.Total.String())
	assert.True(t, rounded.Balanced())
}

func TestComposeZeroConsumption(t *testing.T) {
	lines := Compose(consumption.Record{Cold: decimal.Zero, Hot: decimal.Zero}, tariff("1500", "3000", "500"))
	assert.True(t, lines.Total.IsZero())
	assert.True(t, lines.Round(2).Balanced())
}

func TestRoundFoldsResidualIntoLargestLine(t *testing.T) {
	// Each line rounds up by half a cent while the total rounds up only once.
	lines := Lines{
		ColdWater: dec("1.005"),
		HotWater:  dec("2.005"),
		Sewage:    dec("0.005"),
		Total:     dec("3.015"),
	}

	rounded := lines.Round(2)
	assert.Equal(t, "3.02", rounded.Total.StringFixed(2))
	assert.Equal(t, "1.01", rounded.ColdWater.StringFixed(2))
	assert.Equal(t, "2.00", rounded.HotWater.StringFixed(2))
	assert.Equal(t, "0.01", rounded.Sewage.StringFixed(2))
	assert.True(t, rounded.Balanced())
}

func TestRoundFractionalVolumes(t *testing.T) {
	lines := Compose(
		consumption.Record{Cold: dec("1.333"), Hot: dec("0.667")},
		tariff("1234.56", "2345.67", "345.678"),
	)

	rounded := lines.Round(2)
	assert.True(t, rounded.Balanced())
	assert.Equal(t, lines.Total.Round(2).String(), rounded.Total.String())
	assert.False(t, rounded.ColdWater.IsNegative())
	assert.False(t, rounded.HotWater.IsNegative())
	assert.False(t, rounded.Sewage.IsNegative())
}

func TestRoundZeroScale(t *testing.T) {
	lines := Lines{
		ColdWater: dec("0.5"),
		HotWater:  dec("0.5"),
		Sewage:    dec("0.5"),
		Total:     dec("1.5"),
	}

	rounded := lines.Round(0)
	assert.Equal(t, "2", rounded.Total.String())
	// 1+1+1 = 3, residual -1 goes to cold (first of the tied lines)
	assert.Equal(t, "0", rounded.ColdWater.String())
	assert.True(t, rounded.Balanced())
}
