package consumption

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	march    = billingperiod.Period{Year: 2024, Month: time.March}
	february = billingperiod.Period{Year: 2024, Month: time.February}
)

func reading(id int64, period billingperiod.Period, waterType readingdomain.WaterType, location string, value string) readingdomain.MeterReading {
	return readingdomain.MeterReading{
		ID:          snowflake.ID(id),
		ApartmentID: 10,
		PeriodYear:  period.Year,
		PeriodMonth: int(period.Month),
		WaterType:   waterType,
		Location:    location,
		Indication:  decimal.RequireFromString(value),
		RecordedAt:  period.Start().Add(time.Duration(id) * time.Hour),
	}
}

func TestComputeDeltaSumsLocations(t *testing.T) {
	prior := []readingdomain.MeterReading{
		reading(1, february, readingdomain.WaterCold, "kitchen", "60"),
		reading(2, february, readingdomain.WaterCold, "bath", "40"),
		reading(3, february, readingdomain.WaterHot, "kitchen", "25"),
		reading(4, february, readingdomain.WaterHot, "bath", "15"),
	}
	current := []readingdomain.MeterReading{
		reading(5, march, readingdomain.WaterCold, "kitchen", "63"),
		reading(6, march, readingdomain.WaterCold, "bath", "42"),
		reading(7, march, readingdomain.WaterHot, "kitchen", "27"),
		reading(8, march, readingdomain.WaterHot, "bath", "17"),
	}

	record, err := ComputeDelta(10, march, current, prior)
	require.NoError(t, err)
	assert.True(t, record.Cold.Equal(decimal.NewFromInt(5)), "cold %s", record.Cold)
	assert.True(t, record.Hot.Equal(decimal.NewFromInt(4)), "hot %s", record.Hot)
	assert.True(t, record.Total().Equal(decimal.NewFromInt(9)))
}

func TestComputeDeltaFirstPeriod(t *testing.T) {
	current := []readingdomain.MeterReading{
		reading(1, march, readingdomain.WaterCold, "kitchen", "5"),
		reading(2, march, readingdomain.WaterHot, "kitchen", "3"),
	}

	record, err := ComputeDelta(10, march, current, nil)
	require.NoError(t, err)
	assert.True(t, record.Cold.Equal(decimal.NewFromInt(5)))
	assert.True(t, record.Hot.Equal(decimal.NewFromInt(3)))
}

func TestComputeDeltaKeepsFractions(t *testing.T) {
	prior := []readingdomain.MeterReading{reading(1, february, readingdomain.WaterCold, "kitchen", "100.125")}
	current := []readingdomain.MeterReading{reading(2, march, readingdomain.WaterCold, "kitchen", "101.5")}

	record, err := ComputeDelta(10, march, current, prior)
	require.NoError(t, err)
	assert.Equal(t, "1.375", record.Cold.String())
	assert.True(t, record.Hot.IsZero())
}

func TestComputeDeltaUsesLatestReading(t *testing.T) {
	current := []readingdomain.MeterReading{
		reading(1, march, readingdomain.WaterCold, "kitchen", "90"),
		reading(2, march, readingdomain.WaterCold, "kitchen", "105"),
	}
	prior := []readingdomain.MeterReading{reading(3, february, readingdomain.WaterCold, "kitchen", "100")}

	record, err := ComputeDelta(10, march, current, prior)
	require.NoError(t, err)
	assert.True(t, record.Cold.Equal(decimal.NewFromInt(5)))
}

func TestComputeDeltaNoReading(t *testing.T) {
	_, err := ComputeDelta(10, march, nil, []readingdomain.MeterReading{reading(1, february, readingdomain.WaterCold, "kitchen", "1")})
	require.ErrorIs(t, err, ErrNoReading)

	var noReading *NoReadingError
	require.True(t, errors.As(err, &noReading))
	assert.Equal(t, snowflake.ID(10), noReading.ApartmentID)
	assert.Equal(t, march, noReading.Period)
}

func TestComputeDeltaNegative(t *testing.T) {
	prior := []readingdomain.MeterReading{
		reading(1, february, readingdomain.WaterCold, "kitchen", "100"),
		reading(2, february, readingdomain.WaterHot, "kitchen", "40"),
	}
	current := []readingdomain.MeterReading{
		reading(3, march, readingdomain.WaterCold, "kitchen", "105"),
		reading(4, march, readingdomain.WaterHot, "kitchen", "2"),
	}

	_, err := ComputeDelta(10, march, current, prior)
	require.ErrorIs(t, err, ErrNegativeConsumption)

	var negative *NegativeConsumptionError
	require.True(t, errors.As(err, &negative))
	assert.Equal(t, readingdomain.WaterHot, negative.WaterType)
	assert.True(t, negative.Current.Equal(decimal.NewFromInt(2)))
	assert.True(t, negative.Prior.Equal(decimal.NewFromInt(40)))
}

func TestComputeDeltaRejectsForeignReading(t *testing.T) {
	foreign := reading(1, march, readingdomain.WaterCold, "kitchen", "1")
	foreign.ApartmentID = 99

	_, err := ComputeDelta(10, march, []readingdomain.MeterReading{foreign}, nil)
	require.ErrorIs(t, err, ErrForeignReading)
}
