package audit

import (
	"github.com/vadiminshakov/apiaudit/internal/domain"
)

// AssertCanceled fails unless the order carries the cancellation marker.
func AssertCanceled(o *domain.Order) error {
	if o.Canceled() {
		return nil
	}
	return Orderf("order not canceled: %s", o)
}

// AssertNotCanceled fails if the order carries the cancellation marker.
func AssertNotCanceled(o *domain.Order) error {
	if !o.Canceled() {
		return nil
	}
	return Orderf("order canceled: %s", o)
}

// AssertNotFilled fails unless the remaining amount equals the original.
func AssertNotFilled(o *domain.Order) error {
	if o.Amount.Equal(o.AmountOrig) {
		return nil
	}
	return Orderf("order partially or fully filled: %s", o)
}

// AssertPartiallyFilled fails unless the remaining amount is nonzero and
// strictly smaller in magnitude than the original.
func AssertPartiallyFilled(o *domain.Order) error {
	if !o.Amount.IsZero() && o.Amount.Abs().LessThan(o.AmountOrig.Abs()) {
		return nil
	}
	return Orderf("order not partially filled: %s", o)
}

// AssertFullyFilled fails unless the remaining amount is exactly zero.
func AssertFullyFilled(o *domain.Order) error {
	if o.Amount.IsZero() {
		return nil
	}
	return Orderf("order not fully filled: %s", o)
}
