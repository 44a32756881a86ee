package domain

import (
	"errors"

	"github.com/smallbiznis/tirta/internal/consumption"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
)

// FailureReasonUnknown labels generation errors outside the billing rules.
const FailureReasonUnknown = "error"

// IsComputationError reports whether err rejects a bill on its inputs
// (tariff or readings) rather than on the stored payment.
func IsComputationError(err error) bool {
	return errors.Is(err, tariffdomain.ErrMissingTariff) ||
		errors.Is(err, consumption.ErrNoReading) ||
		errors.Is(err, consumption.ErrNegativeConsumption) ||
		errors.Is(err, consumption.ErrForeignReading)
}

// GenerationFailureReason maps a generation error onto a low-cardinality
// metric label.
func GenerationFailureReason(err error) string {
	for _, sentinel := range []error{
		tariffdomain.ErrMissingTariff,
		consumption.ErrNoReading,
		consumption.ErrNegativeConsumption,
		consumption.ErrForeignReading,
		ErrImmutablePayment,
		ErrConcurrentModified,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return FailureReasonUnknown
}
