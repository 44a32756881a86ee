package authorization

import (
	"context"
	"errors"
)

const (
	ActorResident = "resident"
	ActorAdmin    = "admin"
	ActorSystem   = "system"
)

const (
	ObjectPayment    = "payment"
	ObjectReading    = "reading"
	ObjectTariff     = "tariff"
	ObjectStatistics = "statistics"
	ObjectScheduler  = "scheduler"
)

const (
	ActionPaymentView        = "payment.view"
	ActionPaymentPay         = "payment.pay"
	ActionPaymentCancel      = "payment.cancel"
	ActionPaymentRestore     = "payment.restore"
	ActionPaymentGenerate    = "payment.generate"
	ActionPaymentMarkOverdue = "payment.mark_overdue"

	ActionReadingRecord = "reading.record"
	ActionReadingView   = "reading.view"

	ActionTariffView   = "tariff.view"
	ActionTariffManage = "tariff.manage"

	ActionStatisticsView = "statistics.view"

	ActionSchedulerRun = "scheduler.run"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

// Actor identifies who performs an operation. Residents are bound to the
// apartment they live in; admins and the system act on every apartment.
type Actor struct {
	Type        string
	ID          string
	ApartmentID string
}

func SystemActor() Actor {
	return Actor{Type: ActorSystem, ID: "scheduler"}
}

// IsGlobal reports whether the actor is not restricted to one apartment.
func (a Actor) IsGlobal() bool {
	return a.Type == ActorAdmin || a.Type == ActorSystem
}

type Service interface {
	// Authorize checks whether actor may perform action on object. apartmentID
	// is the apartment the operation targets; empty means all apartments.
	Authorize(ctx context.Context, actor Actor, object string, action string, apartmentID string) error
}
