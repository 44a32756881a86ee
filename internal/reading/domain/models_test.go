package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapseLatestWins(t *testing.T) {
	base := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	readings := []MeterReading{
		{ID: 1, ApartmentID: 10, PeriodYear: 2024, PeriodMonth: 3, WaterType: WaterCold, Location: "kitchen", Indication: decimal.NewFromInt(50), RecordedAt: base},
		{ID: 2, ApartmentID: 10, PeriodYear: 2024, PeriodMonth: 3, WaterType: WaterCold, Location: "kitchen", Indication: decimal.NewFromInt(55), RecordedAt: base.Add(time.Hour)},
		{ID: 3, ApartmentID: 10, PeriodYear: 2024, PeriodMonth: 3, WaterType: WaterCold, Location: "bath", Indication: decimal.NewFromInt(20), RecordedAt: base},
		{ID: 4, ApartmentID: 10, PeriodYear: 2024, PeriodMonth: 3, WaterType: WaterHot, Location: "bath", Indication: decimal.NewFromInt(12), RecordedAt: base},
		// same instant as ID 4: the higher id wins
		{ID: 5, ApartmentID: 10, PeriodYear: 2024, PeriodMonth: 3, WaterType: WaterHot, Location: "bath", Indication: decimal.NewFromInt(13), RecordedAt: base},
	}

	out := Collapse(readings)
	require.Len(t, out, 3)

	assert.Equal(t, WaterCold, out[0].WaterType)
	assert.Equal(t, "bath", out[0].Location)
	assert.Equal(t, WaterCold, out[1].WaterType)
	assert.Equal(t, "kitchen", out[1].Location)
	assert.True(t, out[1].Indication.Equal(decimal.NewFromInt(55)))
	assert.Equal(t, WaterHot, out[2].WaterType)
	assert.True(t, out[2].Indication.Equal(decimal.NewFromInt(13)))
}

func TestCollapseEmpty(t *testing.T) {
	assert.Empty(t, Collapse(nil))
}
