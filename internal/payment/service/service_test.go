package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/consumption"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"github.com/smallbiznis/tirta/internal/payment/lifecycle"
	paymentrepo "github.com/smallbiznis/tirta/internal/payment/repository"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	readingrepo "github.com/smallbiznis/tirta/internal/reading/repository"
	readingservice "github.com/smallbiznis/tirta/internal/reading/service"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
	tariffrepo "github.com/smallbiznis/tirta/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/tirta/internal/tariff/service"
	"github.com/smallbiznis/tirta/pkg/db"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const apartment = "1001"

var admin = paymentdomain.Actor{Type: "admin", ID: "1"}

type fixture struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	payments paymentdomain.Service
	readings readingdomain.Service
	tariffs  tariffdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithBilling(t, config.DefaultBillingConfig())
}

func newFixtureWithBilling(t *testing.T, billing config.BillingConfig) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&tariffdomain.TariffRate{},
		&readingdomain.MeterReading{},
		&paymentdomain.Payment{},
		&paymentdomain.PaymentTransition{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	tariffs := tariffservice.New(tariffservice.Params{DB: conn, Log: log, GenID: node, Repo: tariffrepo.Provide(), Clock: clk})
	readings := readingservice.New(readingservice.Params{DB: conn, Log: log, GenID: node, Repo: readingrepo.Provide(), Clock: clk})
	payments := New(Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Repo:       paymentrepo.Provide(),
		TariffSvc:  tariffs,
		ReadingSvc: readings,
		Billing:    config.NewStaticBillingConfigHolder(billing),
		Clock:      clk,
	})

	return &fixture{db: conn, clock: clk, payments: payments, readings: readings, tariffs: tariffs}
}

func (f *fixture) tariff(t *testing.T, validFrom string, cold, hot, sewage string) {
	t.Helper()
	_, err := f.tariffs.Create(context.Background(), tariffdomain.CreateRequest{
		ColdWaterRate: decimal.RequireFromString(cold),
		HotWaterRate:  decimal.RequireFromString(hot),
		SewageRate:    decimal.RequireFromString(sewage),
		ValidFrom:     validFrom,
	})
	require.NoError(t, err)
}

func (f *fixture) reading(t *testing.T, period string, waterType readingdomain.WaterType, value string) {
	t.Helper()
	f.readingAt(t, apartment, period, waterType, "kitchen", value)
}

func (f *fixture) readingAt(t *testing.T, apartmentID, period string, waterType readingdomain.WaterType, location, value string) {
	t.Helper()
	f.clock.Advance(time.Second)
	_, err := f.readings.Record(context.Background(), readingdomain.RecordRequest{
		ApartmentID: apartmentID,
		Period:      period,
		WaterType:   waterType,
		Location:    location,
		Indication:  decimal.RequireFromString(value),
	})
	require.NoError(t, err)
}

// exampleScenario seeds the reference tariff and February/March readings:
// delta {cold: 5, hot: 4} priced at 1500/3000/500.
func (f *fixture) exampleScenario(t *testing.T) {
	t.Helper()
	f.tariff(t, "2024-01-01", "1500", "3000", "500")
	f.readingAt(t, apartment, "2024-02", readingdomain.WaterCold, "kitchen", "60")
	f.readingAt(t, apartment, "2024-02", readingdomain.WaterCold, "bath", "40")
	f.readingAt(t, apartment, "2024-02", readingdomain.WaterHot, "kitchen", "40")
	f.readingAt(t, apartment, "2024-03", readingdomain.WaterCold, "kitchen", "63")
	f.readingAt(t, apartment, "2024-03", readingdomain.WaterCold, "bath", "42")
	f.readingAt(t, apartment, "2024-03", readingdomain.WaterHot, "kitchen", "44")
}

func (f *fixture) generate(t *testing.T, period string) *paymentdomain.Response {
	t.Helper()
	resp, err := f.payments.Generate(context.Background(), paymentdomain.GenerateRequest{
		ApartmentID: apartment,
		Period:      period,
		Actor:       admin,
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) countPayments(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&paymentdomain.Payment{}).Count(&count).Error)
	return count
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func assertBalanced(t *testing.T, p *paymentdomain.Response) {
	t.Helper()
	sum := p.ColdWaterCost.Add(p.HotWaterCost).Add(p.SewageCost)
	assert.True(t, sum.Equal(p.TotalAmount), "lines %s != total %s", sum, p.TotalAmount)
}

func TestGenerateExampleScenario(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)

	p := f.generate(t, "2024-03")

	assert.Equal(t, apartment, p.ApartmentID)
	assert.Equal(t, "2024-03", p.Period)
	assertDecimal(t, "5", p.ColdVolume)
	assertDecimal(t, "4", p.HotVolume)
	assertDecimal(t, "7500", p.ColdWaterCost)
	assertDecimal(t, "12000", p.HotWaterCost)
	assertDecimal(t, "4500", p.SewageCost)
	assertDecimal(t, "24000", p.TotalAmount)
	assertBalanced(t, p)
	assert.Equal(t, "IDR", p.Currency)
	assert.Equal(t, paymentdomain.StatusPending, p.Status)
	assert.True(t, p.DueAt.Equal(time.Date(2024, 4, 16, 0, 0, 0, 0, time.UTC)), "due %s", p.DueAt)
	assert.Nil(t, p.PaidAt)

	transitions, err := f.payments.ListTransitions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, paymentdomain.ActionCreate, transitions[0].Action)
	assert.Equal(t, "admin", transitions[0].ActorType)
	assert.Equal(t, "24000", transitions[0].Metadata["total_amount"])
}

func TestGenerateFirstPeriod(t *testing.T) {
	f := newFixture(t)
	f.tariff(t, "2024-01-01", "1500", "3000", "500")
	f.reading(t, "2024-03", readingdomain.WaterCold, "5")
	f.reading(t, "2024-03", readingdomain.WaterHot, "3")

	p := f.generate(t, "2024-03")
	assertDecimal(t, "5", p.ColdVolume)
	assertDecimal(t, "3", p.HotVolume)
	assertDecimal(t, "24000", p.TotalAmount)
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)

	first := f.generate(t, "2024-03")
	second := f.generate(t, "2024-03")

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))
	assert.True(t, first.ColdWaterCost.Equal(second.ColdWaterCost))
	assert.True(t, first.HotWaterCost.Equal(second.HotWaterCost))
	assert.True(t, first.SewageCost.Equal(second.SewageCost))
	assert.Equal(t, int64(1), f.countPayments(t))

	transitions, err := f.payments.ListTransitions(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Len(t, transitions, 1)
}

func TestGenerateRebillsPendingPayment(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)
	first := f.generate(t, "2024-03")

	// corrected kitchen reading supersedes the earlier one
	f.readingAt(t, apartment, "2024-03", readingdomain.WaterCold, "kitchen", "64")
	second := f.generate(t, "2024-03")

	assert.Equal(t, first.ID, second.ID)
	assertDecimal(t, "6", second.ColdVolume)
	assertDecimal(t, "9000", second.ColdWaterCost)
	assertDecimal(t, "5000", second.SewageCost)
	assertDecimal(t, "26000", second.TotalAmount)
	assertBalanced(t, second)
	assert.Equal(t, int64(1), f.countPayments(t))

	transitions, err := f.payments.ListTransitions(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, paymentdomain.ActionRebill, transitions[1].Action)
	assert.Equal(t, "24000", transitions[1].Metadata["previous_total_amount"])
}

func TestGenerateRebillsOverduePayment(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)
	first := f.generate(t, "2024-03")

	f.clock.Set(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	count, err := f.payments.RunOverdueSweep(context.Background(), f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	f.readingAt(t, apartment, "2024-03", readingdomain.WaterHot, "kitchen", "45")
	second := f.generate(t, "2024-03")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, paymentdomain.StatusOverdue, second.Status)
	assertDecimal(t, "5", second.HotVolume)
}

func TestGenerateRejectsSettledPayments(t *testing.T) {
	for _, action := range []paymentdomain.Action{paymentdomain.ActionPay, paymentdomain.ActionCancel} {
		t.Run(string(action), func(t *testing.T) {
			f := newFixture(t)
			f.exampleScenario(t)
			p := f.generate(t, "2024-03")

			_, err := f.payments.ApplyAction(context.Background(), paymentdomain.ActionRequest{PaymentID: p.ID, Action: action, Actor: admin})
			require.NoError(t, err)

			f.readingAt(t, apartment, "2024-03", readingdomain.WaterCold, "kitchen", "70")
			_, err = f.payments.Generate(context.Background(), paymentdomain.GenerateRequest{ApartmentID: apartment, Period: "2024-03"})
			require.ErrorIs(t, err, paymentdomain.ErrImmutablePayment)

			var immutable *paymentdomain.ImmutablePaymentError
			require.True(t, errors.As(err, &immutable))
			assert.Equal(t, p.ID, immutable.PaymentID.String())

			stored, err := f.payments.Get(context.Background(), p.ID)
			require.NoError(t, err)
			assertDecimal(t, "24000", stored.TotalAmount)
		})
	}
}

func TestGenerateComputationErrors(t *testing.T) {
	t.Run("missing tariff", func(t *testing.T) {
		f := newFixture(t)
		f.tariff(t, "2024-04-01", "1500", "3000", "500")
		f.reading(t, "2024-03", readingdomain.WaterCold, "5")

		_, err := f.payments.Generate(context.Background(), paymentdomain.GenerateRequest{ApartmentID: apartment, Period: "2024-03"})
		require.ErrorIs(t, err, tariffdomain.ErrMissingTariff)
	})

	t.Run("no reading", func(t *testing.T) {
		f := newFixture(t)
		f.tariff(t, "2024-01-01", "1500", "3000", "500")
		f.reading(t, "2024-02", readingdomain.WaterCold, "5")

		_, err := f.payments.Generate(context.Background(), paymentdomain.GenerateRequest{ApartmentID: apartment, Period: "2024-03"})
		require.ErrorIs(t, err, consumption.ErrNoReading)
	})

	t.Run("negative consumption", func(t *testing.T) {
		f := newFixture(t)
		f.tariff(t, "2024-01-01", "1500", "3000", "500")
		f.reading(t, "2024-02", readingdomain.WaterCold, "100")
		f.reading(t, "2024-03", readingdomain.WaterCold, "90")

		_, err := f.payments.Generate(context.Background(), paymentdomain.GenerateRequest{ApartmentID: apartment, Period: "2024-03"})
		require.ErrorIs(t, err, consumption.ErrNegativeConsumption)

		var negative *consumption.NegativeConsumptionError
		require.True(t, errors.As(err, &negative))
		assert.Equal(t, readingdomain.WaterCold, negative.WaterType)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.payments.Generate(context.Background(), paymentdomain.GenerateRequest{ApartmentID: "abc", Period: "2024-03"})
		require.ErrorIs(t, err, paymentdomain.ErrInvalidApartment)

		_, err = f.payments.Generate(context.Background(), paymentdomain.GenerateRequest{ApartmentID: apartment, Period: "March"})
		require.ErrorIs(t, err, billingperiod.ErrInvalidPeriod)
		assert.Equal(t, int64(0), f.countPayments(t))
	})
}

func TestGenerateConcurrentCallsKeepOnePayment(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			resp, err := f.payments.Generate(context.Background(), paymentdomain.GenerateRequest{ApartmentID: apartment, Period: "2024-03"})
			errs[i] = err
			if resp != nil {
				ids[i] = resp.ID
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), f.countPayments(t))
}

func TestGenerateRoundsToCurrencyScale(t *testing.T) {
	f := newFixture(t)
	f.tariff(t, "2024-01-01", "1234.567", "2345.678", "345.6789")
	f.reading(t, "2024-03", readingdomain.WaterCold, "1.333")
	f.reading(t, "2024-03", readingdomain.WaterHot, "0.667")

	p := f.generate(t, "2024-03")
	assertBalanced(t, p)
	for _, v := range []decimal.Decimal{p.ColdWaterCost, p.HotWaterCost, p.SewageCost, p.TotalAmount} {
		assert.LessOrEqual(t, -v.Exponent(), int32(2), "value %s has more than 2 fraction digits", v)
		assert.False(t, v.IsNegative())
	}
}

func TestGenerateBoundsScaleToStoredColumns(t *testing.T) {
	billing := config.DefaultBillingConfig()
	billing.CurrencyScale = 6
	f := newFixtureWithBilling(t, billing)
	f.tariff(t, "2024-01-01", "1234.5678", "2345.6789", "345.6789")
	f.reading(t, "2024-03", readingdomain.WaterCold, "1.3331")
	f.reading(t, "2024-03", readingdomain.WaterHot, "0.6671")

	first := f.generate(t, "2024-03")
	assertBalanced(t, first)
	for _, v := range []decimal.Decimal{first.ColdWaterCost, first.HotWaterCost, first.SewageCost, first.TotalAmount} {
		assert.LessOrEqual(t, -v.Exponent(), config.MaxCurrencyScale, "value %s exceeds stored scale", v)
	}

	second := f.generate(t, "2024-03")
	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))

	transitions, err := f.payments.ListTransitions(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Len(t, transitions, 1)
}

func TestApplyActionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)
	p := f.generate(t, "2024-03")
	ctx := context.Background()

	paid, err := f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: p.ID, Action: paymentdomain.ActionPay, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: p.ID, Action: paymentdomain.ActionRestore, Actor: admin})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	cancelled, err := f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: p.ID, Action: paymentdomain.ActionCancel, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.PaidAt)

	_, err = f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: p.ID, Action: paymentdomain.ActionPay, Actor: admin})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	restored, err := f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: p.ID, Action: paymentdomain.ActionRestore, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPending, restored.Status)

	stored, err := f.payments.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPending, stored.Status)
	assert.Nil(t, stored.PaidAt)

	transitions, err := f.payments.ListTransitions(ctx, p.ID)
	require.NoError(t, err)
	actions := make([]paymentdomain.Action, 0, len(transitions))
	for _, tr := range transitions {
		actions = append(actions, tr.Action)
	}
	assert.Equal(t, []paymentdomain.Action{
		paymentdomain.ActionCreate,
		paymentdomain.ActionPay,
		paymentdomain.ActionCancel,
		paymentdomain.ActionRestore,
	}, actions)
}

func TestApplyActionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: "x", Action: paymentdomain.ActionPay})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidID)

	_, err = f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: "42", Action: paymentdomain.ActionMarkOverdue})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidAction)

	_, err = f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: "42", Action: paymentdomain.ActionPay})
	require.ErrorIs(t, err, paymentdomain.ErrNotFound)
}

func TestRunOverdueSweep(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)
	p := f.generate(t, "2024-03")
	ctx := context.Background()

	count, err := f.payments.RunOverdueSweep(ctx, time.Date(2024, 4, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = f.payments.RunOverdueSweep(ctx, time.Date(2024, 4, 16, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := f.payments.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusOverdue, stored.Status)

	count, err = f.payments.RunOverdueSweep(ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	paid, err := f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: p.ID, Action: paymentdomain.ActionPay, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPaid, paid.Status)
}

func TestRunOverdueSweepAfterRestore(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)
	p := f.generate(t, "2024-03")
	ctx := context.Background()

	_, err := f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: p.ID, Action: paymentdomain.ActionCancel, Actor: admin})
	require.NoError(t, err)

	after := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	count, err := f.payments.RunOverdueSweep(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = f.payments.ApplyAction(ctx, paymentdomain.ActionRequest{PaymentID: p.ID, Action: paymentdomain.ActionRestore, Actor: admin})
	require.NoError(t, err)

	count, err = f.payments.RunOverdueSweep(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGenerateAfterDueDateStartsOverdue(t *testing.T) {
	f := newFixture(t)
	f.exampleScenario(t)
	f.clock.Set(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))

	p := f.generate(t, "2024-03")
	assert.Equal(t, paymentdomain.StatusOverdue, p.Status)

	transitions, err := f.payments.ListTransitions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, paymentdomain.StatusPending, transitions[0].ToStatus)
	assert.Equal(t, paymentdomain.ActionMarkOverdue, transitions[1].Action)
	assert.Equal(t, paymentdomain.StatusOverdue, transitions[1].ToStatus)
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t)
	f.tariff(t, "2024-01-01", "1500", "3000", "500")
	for _, r := range []struct{ period, value string }{
		{"2024-01", "1"},
		{"2024-02", "2"},
		{"2024-03", "4"},
	} {
		f.reading(t, r.period, readingdomain.WaterCold, r.value)
		f.generate(t, r.period)
	}
	ctx := context.Background()

	first, err := f.payments.List(ctx, paymentdomain.ListRequest{
		Pagination:  pagination.Pagination{PageSize: 2},
		ApartmentID: apartment,
		Year:        2024,
	})
	require.NoError(t, err)
	require.Len(t, first.Data, 2)
	assert.Equal(t, "2024-03", first.Data[0].Period)
	assert.Equal(t, "2024-02", first.Data[1].Period)
	require.True(t, first.PageInfo.HasMore)

	second, err := f.payments.List(ctx, paymentdomain.ListRequest{
		Pagination:  pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken},
		ApartmentID: apartment,
		Year:        2024,
	})
	require.NoError(t, err)
	require.Len(t, second.Data, 1)
	assert.Equal(t, "2024-01", second.Data[0].Period)
	assert.False(t, second.PageInfo.HasMore)

	filtered, err := f.payments.List(ctx, paymentdomain.ListRequest{Status: "paid"})
	require.NoError(t, err)
	assert.Empty(t, filtered.Data)

	_, err = f.payments.List(ctx, paymentdomain.ListRequest{Status: "lost"})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidStatus)
}
