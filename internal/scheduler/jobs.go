package scheduler

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	"github.com/smallbiznis/tirta/internal/config"
	obsmetrics "github.com/smallbiznis/tirta/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"go.uber.org/zap"
)

var jobActor = paymentdomain.Actor{Type: authorization.ActorSystem, ID: "scheduler"}

// OverdueSweepJob flips every pending payment past its due date to overdue.
func (s *Scheduler) OverdueSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobOverdueSweep, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	return s.withLock(ctx, JobOverdueSweep, func(ctx context.Context) error {
		if err := s.authorizeSystem(ctx, authorization.ObjectPayment, authorization.ActionPaymentMarkOverdue); err != nil {
			s.logSchedulerError(ctx, run, "scheduler.authorize.failed", JobOverdueSweep, 0, err)
			return err
		}

		count, err := s.paymentSvc.RunOverdueSweep(ctx, s.clock.Now())
		run.AddProcessed(count)
		schedMetrics := obsmetrics.Scheduler()
		schedMetrics.AddBatchProcessed(JobOverdueSweep, "payments", count)
		schedMetrics.AddPaymentTransitions(string(paymentdomain.StatusPending), string(paymentdomain.StatusOverdue), count)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.overdue_sweep.failed", JobOverdueSweep, 0, err,
				zap.Int("transitioned", count),
			)
			return err
		}
		return nil
	})
}

// GeneratePaymentsJob bills the previous period for every apartment that has
// readings in it. Settled payments and data errors are skipped and counted.
func (s *Scheduler) GeneratePaymentsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobGeneratePayments, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	if !s.billingPolicy().AutoGenerate {
		obsmetrics.Scheduler().IncBatchDeferred(JobGeneratePayments, "auto_generate_disabled")
		return nil
	}

	period := billingperiod.Of(s.clock.Now()).Prev()
	return s.withLock(ctx, JobGeneratePayments, func(ctx context.Context) error {
		if err := s.authorizeSystem(ctx, authorization.ObjectPayment, authorization.ActionPaymentGenerate); err != nil {
			s.logSchedulerError(ctx, run, "scheduler.authorize.failed", JobGeneratePayments, 0, err)
			return err
		}

		apartments, err := s.readingSvc.ApartmentsWithReadings(ctx, period)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.generate.list_failed", JobGeneratePayments, 0, err,
				zap.String("period", period.String()),
			)
			return err
		}

		var jobErr error
		for start := 0; start < len(apartments); start += s.cfg.BatchSize {
			end := min(start+s.cfg.BatchSize, len(apartments))
			processed, err := s.generateBatch(ctx, run, period, apartments[start:end])
			run.AddProcessed(processed)
			obsmetrics.Scheduler().AddBatchProcessed(JobGeneratePayments, "payments", processed)
			if err != nil {
				jobErr = errors.Join(jobErr, err)
			}
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}
		}
		return jobErr
	})
}

func (s *Scheduler) generateBatch(ctx context.Context, run *jobRun, period billingperiod.Period, apartments []snowflake.ID) (int, error) {
	processed := 0
	var batchErr error
	schedMetrics := obsmetrics.Scheduler()

	for _, apartmentID := range apartments {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		_, err := s.paymentSvc.GenerateForApartment(ctx, apartmentID, period, jobActor)
		switch {
		case err == nil:
			processed++
		case errors.Is(err, paymentdomain.ErrImmutablePayment):
			schedMetrics.IncBatchDeferred(JobGeneratePayments, paymentdomain.GenerationFailureReason(err))
		case paymentdomain.IsComputationError(err):
			schedMetrics.IncBatchDeferred(JobGeneratePayments, paymentdomain.GenerationFailureReason(err))
			s.logSchedulerError(ctx, run, "scheduler.generate.skipped", JobGeneratePayments, apartmentID, err,
				zap.String("period", period.String()),
			)
		default:
			batchErr = errors.Join(batchErr, err)
			s.logSchedulerError(ctx, run, "scheduler.generate.failed", JobGeneratePayments, apartmentID, err,
				zap.String("period", period.String()),
			)
		}
	}
	return processed, batchErr
}

func (s *Scheduler) billingPolicy() config.BillingConfig {
	if s.billing == nil {
		return config.DefaultBillingConfig()
	}
	return s.billing.Get()
}
