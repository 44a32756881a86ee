package billingperiod

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse(" 2024-03 ")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2024, Month: time.March}, p)
	assert.Equal(t, "2024-03", p.String())

	for _, raw := range []string{"", "2024-13", "2024/03", "march", "0000-05"} {
		_, err := Parse(raw)
		if !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("expected ErrInvalidPeriod for %q, got %v", raw, err)
		}
	}
}

func TestBoundsAndNavigation(t *testing.T) {
	dec := Period{Year: 2023, Month: time.December}

	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), dec.Start())
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), dec.End())
	assert.Equal(t, Period{Year: 2024, Month: time.January}, dec.Next())
	assert.Equal(t, Period{Year: 2023, Month: time.November}, dec.Prev())
	assert.Equal(t, dec, dec.Next().Prev())
}

func TestOrdering(t *testing.T) {
	a := Period{Year: 2023, Month: time.December}
	b := Period{Year: 2024, Month: time.January}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, 202312, a.Key())
	assert.Equal(t, a, FromKey(a.Key()))
}

func TestValidate(t *testing.T) {
	_, err := New(2024, 0)
	require.ErrorIs(t, err, ErrInvalidPeriod)

	p, err := New(2024, time.July)
	require.NoError(t, err)
	assert.False(t, p.IsZero())
}

func TestJSONRoundTrip(t *testing.T) {
	var body struct {
		Period Period `json:"period"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"period":"2024-07"}`), &body))
	assert.Equal(t, Period{Year: 2024, Month: time.July}, body.Period)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2024-07"}`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"period":7}`), &body))
}
