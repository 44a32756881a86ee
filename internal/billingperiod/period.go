// Package billingperiod models the monthly (year, month) billing key.
package billingperiod

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid_period")

const layout = "2006-01"

// Period identifies one monthly billing cycle. Ordering is chronological and
// equality is an exact (year, month) match.
type Period struct {
	Year  int
	Month time.Month
}

func New(year int, month time.Month) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Of returns the period containing t, evaluated in UTC.
func Of(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// FromKey is the inverse of Key.
func FromKey(key int) Period {
	return Period{Year: key / 100, Month: time.Month(key % 100)}
}

func Parse(value string) (Period, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Period{}, ErrInvalidPeriod
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
	}
	p := Of(t)
	if err := p.Validate(); err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
	}
	return p, nil
}

func (p Period) Validate() error {
	if p.Year < 1 || p.Year > 9999 {
		return ErrInvalidPeriod
	}
	if p.Month < time.January || p.Month > time.December {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start is the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the period (exclusive bound).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

func (p Period) Next() Period {
	return Of(p.End())
}

func (p Period) Prev() Period {
	return Of(p.Start().AddDate(0, -1, 0))
}

// Key encodes the period as year*100+month, which sorts chronologically.
func (p Period) Key() int {
	return p.Year*100 + int(p.Month)
}

func (p Period) Compare(other Period) int {
	switch a, b := p.Key(), other.Key(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (p Period) Before(other Period) bool {
	return p.Compare(other) < 0
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Period) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidPeriod
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
