package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	obscontext "github.com/smallbiznis/tirta/internal/observability/context"
	obsmetrics "github.com/smallbiznis/tirta/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"github.com/smallbiznis/tirta/internal/ratelimit"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc paymentdomain.Service
	ReadingSvc readingdomain.Service
	AuthzSvc   authorization.Service
	Billing    *config.BillingConfigHolder
	Locker     *ratelimit.Locker `optional:"true"`
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	paymentSvc paymentdomain.Service
	readingSvc readingdomain.Service
	authzSvc   authorization.Service
	billing    *config.BillingConfigHolder
	locker     *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.PaymentSvc == nil || p.ReadingSvc == nil || p.AuthzSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		paymentSvc: p.PaymentSvc,
		readingSvc: p.ReadingSvc,
		authzSvc:   p.AuthzSvc,
		billing:    p.Billing,
		locker:     p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = obscontext.WithActor(ctx, authorization.ActorSystem, "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick resumes the work
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobGeneratePayments, s.GeneratePaymentsJob},
		{JobOverdueSweep, s.OverdueSweepJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list runs every job (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// withLock runs fn while holding the job's Redis lock. Without a locker the
// job runs unguarded; when another instance holds the lock the tick is skipped.
func (s *Scheduler) withLock(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	schedMetrics := obsmetrics.Scheduler()
	if s.locker == nil {
		schedMetrics.IncLockAttempt(job, obsmetrics.LockOutcomeDisabled)
		return fn(ctx)
	}

	key := "scheduler:" + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		schedMetrics.IncLockAttempt(job, obsmetrics.LockOutcomeError)
		return err
	}
	if !ok {
		schedMetrics.IncLockAttempt(job, obsmetrics.LockOutcomeHeld)
		s.logger(ctx).Debug("scheduler.lock.held", zap.String("job", job), zap.String("key", key))
		return nil
	}
	schedMetrics.IncLockAttempt(job, obsmetrics.LockOutcomeAcquired)

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger(ctx).Warn("scheduler.lock.release_failed", zap.String("job", job), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) authorizeSystem(ctx context.Context, object, action string) error {
	return s.authzSvc.Authorize(ctx, authorization.SystemActor(), object, action, "")
}
