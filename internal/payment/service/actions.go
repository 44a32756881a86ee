package service

import (
	"context"
	"time"

	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
	"github.com/smallbiznis/tirta/internal/payment/lifecycle"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) ApplyAction(ctx context.Context, req paymentdomain.ActionRequest) (*paymentdomain.Response, error) {
	paymentID, err := parseID(req.PaymentID)
	if err != nil {
		return nil, err
	}
	switch req.Action {
	case paymentdomain.ActionPay, paymentdomain.ActionCancel, paymentdomain.ActionRestore:
	default:
		return nil, paymentdomain.ErrInvalidAction
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, err := s.repo.FindByID(ctx, s.db, paymentID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, paymentdomain.ErrNotFound
		}

		next, err := lifecycle.Next(current.Status, req.Action)
		if err != nil {
			return nil, err
		}

		now := s.clock.Now().UTC()
		var paidAt *time.Time
		if next == paymentdomain.StatusPaid {
			paidAt = &now
		}

		ok, err := s.transition(ctx, current, next, req.Action, paidAt, req.Actor, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		current.Status = next
		current.PaidAt = paidAt
		current.UpdatedAt = now
		return toResponse(current), nil
	}
	return nil, paymentdomain.ErrConcurrentModified
}

// transition moves p to next if its stored status is still p.Status and
// appends the history row in the same transaction.
func (s *Service) transition(
	ctx context.Context,
	p *paymentdomain.Payment,
	next paymentdomain.Status,
	action paymentdomain.Action,
	paidAt *time.Time,
	actor paymentdomain.Actor,
	now time.Time,
) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateStatus(ctx, tx, p.ID, p.Status, next, paidAt, now)
		if err != nil || !ok {
			return err
		}
		applied = true
		return s.recordTransition(ctx, tx, p.ID, string(p.Status), next, action, actor, nil, now)
	})
	if err != nil || !applied {
		return false, err
	}

	s.metrics.RecordPaymentTransition(ctx, string(p.Status), string(next), string(action))
	s.log.Info("payment.transitioned",
		zap.String("payment_id", p.ID.String()),
		zap.String("apartment_id", p.ApartmentID.String()),
		zap.String("period", p.Period().String()),
		zap.String("from_status", string(p.Status)),
		zap.String("to_status", string(next)),
		zap.String("action", string(action)),
		zap.String("actor_type", normalizeActor(actor).Type),
	)
	return true, nil
}
