// Package lifecycle is the payment status state machine. It performs no I/O.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
)

var ErrInvalidTransition = errors.New("invalid_transition")

// InvalidTransitionError reports an action that is not allowed from a status.
type InvalidTransitionError struct {
	From   paymentdomain.Status
	Action paymentdomain.Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s payment", e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

var transitions = map[paymentdomain.Status]map[paymentdomain.Action]paymentdomain.Status{
	paymentdomain.StatusPending: {
		paymentdomain.ActionPay:         paymentdomain.StatusPaid,
		paymentdomain.ActionCancel:      paymentdomain.StatusCancelled,
		paymentdomain.ActionMarkOverdue: paymentdomain.StatusOverdue,
	},
	paymentdomain.StatusOverdue: {
		paymentdomain.ActionPay:         paymentdomain.StatusPaid,
		paymentdomain.ActionCancel:      paymentdomain.StatusCancelled,
		paymentdomain.ActionMarkOverdue: paymentdomain.StatusOverdue,
	},
	paymentdomain.StatusPaid: {
		paymentdomain.ActionCancel: paymentdomain.StatusCancelled,
	},
	paymentdomain.StatusCancelled: {
		paymentdomain.ActionRestore: paymentdomain.StatusPending,
	},
}

// Next returns the status reached by applying action to from.
func Next(from paymentdomain.Status, action paymentdomain.Action) (paymentdomain.Status, error) {
	if next, ok := transitions[from][action]; ok {
		return next, nil
	}
	return "", &InvalidTransitionError{From: from, Action: action}
}

// EvaluateOverdue applies the time rule: a pending payment becomes overdue
// once now is past its due date. Every other status is returned unchanged.
func EvaluateOverdue(status paymentdomain.Status, dueAt time.Time, now time.Time) paymentdomain.Status {
	if status == paymentdomain.StatusPending && now.After(dueAt) {
		return paymentdomain.StatusOverdue
	}
	return status
}
