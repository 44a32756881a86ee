package service

import (
	"context"
	"time"

	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"github.com/smallbiznis/tirta/internal/payment/lifecycle"
	"go.uber.org/zap"
)

var sweepActor = paymentdomain.Actor{Type: "system", ID: "overdue_sweep"}

func (s *Service) RunOverdueSweep(ctx context.Context, asOf time.Time) (int, error) {
	asOf = asOf.UTC()
	transitioned := 0

	for {
		if err := ctx.Err(); err != nil {
			return transitioned, err
		}

		candidates, err := s.repo.ListOverdueCandidates(ctx, s.db, asOf, sweepBatchSize)
		if err != nil {
			return transitioned, err
		}

		progressed := 0
		for i := range candidates {
			p := &candidates[i]
			if lifecycle.EvaluateOverdue(p.Status, p.DueAt, asOf) != paymentdomain.StatusOverdue {
				continue
			}
			next, err := lifecycle.Next(p.Status, paymentdomain.ActionMarkOverdue)
			if err != nil {
				return transitioned + progressed, err
			}
			ok, err := s.transition(ctx, p, next, paymentdomain.ActionMarkOverdue, p.PaidAt, sweepActor, s.clock.Now().UTC())
			if err != nil {
				return transitioned + progressed, err
			}
			if ok {
				progressed++
			}
		}
		transitioned += progressed

		if len(candidates) < sweepBatchSize || progressed == 0 {
			break
		}
	}

	s.log.Info("payment.overdue_sweep",
		zap.Time("as_of", asOf),
		zap.Int("transitioned", transitioned),
	)
	return transitioned, nil
}
