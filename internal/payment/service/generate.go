package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/consumption"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"github.com/smallbiznis/tirta/internal/payment/lifecycle"
	"github.com/smallbiznis/tirta/internal/rating"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
	"github.com/smallbiznis/tirta/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeCreated   = "created"
	outcomeUpdated   = "updated"
	outcomeUnchanged = "unchanged"
)

var errLostInsertRace = errors.New("lost_insert_race")

// bill is the priced result of one apartment and period, before it is
// matched against the stored payment.
type bill struct {
	apartmentID snowflake.ID
	period      billingperiod.Period
	tariff      *tariffdomain.TariffRate
	record      consumption.Record
	lines       rating.Lines
	currency    string
	dueAt       time.Time
}

func (s *Service) Generate(ctx context.Context, req paymentdomain.GenerateRequest) (*paymentdomain.Response, error) {
	apartmentID, err := snowflake.ParseString(strings.TrimSpace(req.ApartmentID))
	if err != nil || apartmentID <= 0 {
		return nil, paymentdomain.ErrInvalidApartment
	}
	period, err := billingperiod.Parse(req.Period)
	if err != nil {
		return nil, err
	}
	return s.GenerateForApartment(ctx, apartmentID, period, req.Actor)
}

func (s *Service) GenerateForApartment(ctx context.Context, apartmentID snowflake.ID, period billingperiod.Period, actor paymentdomain.Actor) (*paymentdomain.Response, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	b, err := s.price(ctx, apartmentID, period)
	if err != nil {
		s.metrics.RecordGenerationFailure(ctx, paymentdomain.GenerationFailureReason(err))
		s.log.Warn("payment.generation_failed",
			zap.String("apartment_id", apartmentID.String()),
			zap.String("period", period.String()),
			zap.Error(err),
		)
		return nil, err
	}

	payment, outcome, err := s.persist(ctx, b, actor)
	if err != nil {
		s.metrics.RecordGenerationFailure(ctx, paymentdomain.GenerationFailureReason(err))
		return nil, err
	}

	s.metrics.RecordPaymentGenerated(ctx, outcome)
	if outcome != outcomeUnchanged {
		cold, _ := b.record.Cold.Float64()
		hot, _ := b.record.Hot.Float64()
		s.metrics.RecordBilledVolume(ctx, "cold", cold)
		s.metrics.RecordBilledVolume(ctx, "hot", hot)
	}
	s.log.Info("payment.generated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("apartment_id", apartmentID.String()),
		zap.String("period", period.String()),
		zap.String("outcome", outcome),
		zap.String("status", string(payment.Status)),
		zap.String("total_amount", payment.TotalAmount.String()),
	)

	return toResponse(payment), nil
}

// price resolves the tariff, derives consumption and composes rounded lines.
func (s *Service) price(ctx context.Context, apartmentID snowflake.ID, period billingperiod.Period) (*bill, error) {
	tariff, err := s.tariffSvc.Resolve(ctx, period)
	if err != nil {
		return nil, err
	}

	current, err := s.readingSvc.ListForPeriod(ctx, apartmentID, period)
	if err != nil {
		return nil, err
	}
	prior, _, _, err := s.readingSvc.PriorPeriodReadings(ctx, apartmentID, period)
	if err != nil {
		return nil, err
	}

	record, err := consumption.ComputeDelta(apartmentID, period, current, prior)
	if err != nil {
		return nil, err
	}

	policy := s.policy()
	return &bill{
		apartmentID: apartmentID,
		period:      period,
		tariff:      tariff,
		record:      record,
		lines:       rating.Compose(record, *tariff).Round(policy.Scale()),
		currency:    policy.Currency,
		dueAt:       period.End().AddDate(0, 0, policy.OverdueGraceDays),
	}, nil
}

// persist writes b as the single payment of its apartment and period. The
// unique key on (apartment_id, period_year, period_month) arbitrates
// concurrent creators; losers fall through to the update branch.
func (s *Service) persist(ctx context.Context, b *bill, actor paymentdomain.Actor) (*paymentdomain.Payment, string, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		existing, err := s.repo.FindByApartmentPeriod(ctx, s.db, b.apartmentID, b.period)
		if err != nil {
			return nil, "", err
		}

		if existing == nil {
			created, ok, err := s.create(ctx, b, actor)
			if err != nil {
				return nil, "", err
			}
			if ok {
				return created, outcomeCreated, nil
			}
			continue
		}

		if !existing.Status.Mutable() {
			return nil, "", &paymentdomain.ImmutablePaymentError{
				PaymentID:   existing.ID,
				ApartmentID: existing.ApartmentID,
				Period:      b.period,
				Status:      existing.Status,
			}
		}

		updated, outcome, ok, err := s.rebill(ctx, existing, b, actor)
		if err != nil {
			return nil, "", err
		}
		if ok {
			return updated, outcome, nil
		}
	}
	return nil, "", paymentdomain.ErrConcurrentModified
}

func (s *Service) create(ctx context.Context, b *bill, actor paymentdomain.Actor) (*paymentdomain.Payment, bool, error) {
	now := s.clock.Now().UTC()
	entity := &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		ApartmentID: b.apartmentID,
		PeriodYear:  b.period.Year,
		PeriodMonth: int(b.period.Month),
		Status:      paymentdomain.StatusPending,
		DueAt:       b.dueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyBill(entity, b)
	entity.Status = lifecycle.EvaluateOverdue(paymentdomain.StatusPending, entity.DueAt, now)

	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.InsertIfAbsent(ctx, tx, entity)
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errLostInsertRace
			}
			return err
		}
		if !ok {
			return errLostInsertRace
		}
		inserted = true

		if err := s.recordTransition(ctx, tx, entity.ID, "", paymentdomain.StatusPending, paymentdomain.ActionCreate, actor, billMetadata(b), now); err != nil {
			return err
		}
		if entity.Status == paymentdomain.StatusOverdue {
			return s.recordTransition(ctx, tx, entity.ID, string(paymentdomain.StatusPending), paymentdomain.StatusOverdue, paymentdomain.ActionMarkOverdue, actor, nil, now)
		}
		return nil
	})
	if errors.Is(err, errLostInsertRace) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		return nil, false, nil
	}

	if entity.Status == paymentdomain.StatusOverdue {
		s.metrics.RecordPaymentTransition(ctx, string(paymentdomain.StatusPending), string(paymentdomain.StatusOverdue), string(paymentdomain.ActionMarkOverdue))
	}
	return entity, true, nil
}

func (s *Service) rebill(ctx context.Context, existing *paymentdomain.Payment, b *bill, actor paymentdomain.Actor) (*paymentdomain.Payment, string, bool, error) {
	now := s.clock.Now().UTC()
	next := *existing
	applyBill(&next, b)
	next.DueAt = b.dueAt
	next.Status = lifecycle.EvaluateOverdue(existing.Status, next.DueAt, now)

	if sameBilling(existing, &next) {
		return existing, outcomeUnchanged, true, nil
	}
	next.UpdatedAt = now

	updated := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateBilling(ctx, tx, &next, existing.Status)
		if err != nil || !ok {
			return err
		}
		updated = true

		metadata := billMetadata(b)
		metadata["previous_total_amount"] = existing.TotalAmount.String()
		if err := s.recordTransition(ctx, tx, next.ID, string(existing.Status), existing.Status, paymentdomain.ActionRebill, actor, metadata, now); err != nil {
			return err
		}
		if next.Status != existing.Status {
			return s.recordTransition(ctx, tx, next.ID, string(existing.Status), next.Status, paymentdomain.ActionMarkOverdue, actor, nil, now)
		}
		return nil
	})
	if err != nil || !updated {
		return nil, "", false, err
	}

	if next.Status != existing.Status {
		s.metrics.RecordPaymentTransition(ctx, string(existing.Status), string(next.Status), string(paymentdomain.ActionMarkOverdue))
	}
	return &next, outcomeUpdated, true, nil
}

func (s *Service) policy() config.BillingConfig {
	if s.billing == nil {
		return config.DefaultBillingConfig()
	}
	return s.billing.Get()
}

func applyBill(p *paymentdomain.Payment, b *bill) {
	p.TariffID = b.tariff.ID
	p.ColdVolume = b.record.Cold
	p.HotVolume = b.record.Hot
	p.ColdWaterCost = b.lines.ColdWater
	p.HotWaterCost = b.lines.HotWater
	p.SewageCost = b.lines.Sewage
	p.TotalAmount = b.lines.Total
	p.Currency = b.currency
}

func sameBilling(a, b *paymentdomain.Payment) bool {
	return a.TariffID == b.TariffID &&
		a.ColdVolume.Equal(b.ColdVolume) &&
		a.HotVolume.Equal(b.HotVolume) &&
		a.ColdWaterCost.Equal(b.ColdWaterCost) &&
		a.HotWaterCost.Equal(b.HotWaterCost) &&
		a.SewageCost.Equal(b.SewageCost) &&
		a.TotalAmount.Equal(b.TotalAmount) &&
		a.Currency == b.Currency &&
		a.Status == b.Status &&
		a.DueAt.Equal(b.DueAt)
}

func billMetadata(b *bill) map[string]any {
	return map[string]any{
		"tariff_id":    b.tariff.ID.String(),
		"cold_volume":  b.record.Cold.String(),
		"hot_volume":   b.record.Hot.String(),
		"total_amount": b.lines.Total.String(),
	}
}
