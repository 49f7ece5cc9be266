package audit

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/domain"
)

var (
	// bookEpsilon absorbs floating-point accumulation in level sizes.
	bookEpsilon = decimal.RequireFromString("0.0000001")

	// virtualPriceTolerance is the relative price tolerance for virtual
	// books: their prices are derived through a live FX conversion and
	// cannot be expected to land on an identical tick.
	virtualPriceTolerance = decimal.RequireFromString("0.0005")
)

func findLevel(side []domain.Level, price decimal.Decimal, virtualMatch bool) (domain.Level, bool) {
	// an exact tick always wins over a tolerance neighbour
	for _, l := range side {
		if l.Price.Equal(price) {
			return l, true
		}
	}
	if !virtualMatch || price.IsZero() {
		return domain.Level{}, false
	}
	for _, l := range side {
		rel := l.Price.Sub(price).Abs().Div(price.Abs())
		if rel.LessThanOrEqual(virtualPriceTolerance) {
			return l, true
		}
	}
	return domain.Level{}, false
}

// OrderInserted reports whether the order's price level grew by the order's
// amount between the snapshot and current book. A non-nil error means the
// question could not be answered at all and must propagate unchanged through
// the negated assertions.
func OrderInserted(o *domain.Order, prev, cur *domain.OrderBook, virtualMatch bool) (bool, error) {
	if prev == nil || cur == nil {
		return false, Setupf("missing order book snapshot for %s", o.Symbol)
	}

	newLevel, inNew := findLevel(cur.SideFor(o.AmountOrig), o.Price, virtualMatch)
	if !inNew {
		return false, nil
	}

	oldLevel, inOld := findLevel(prev.SideFor(o.AmountOrig), o.Price, virtualMatch)
	if !inOld {
		// Inexact match: the level appeared between the books, so the
		// strongest available proof is that it holds at least the
		// order's amount.
		return newLevel.Amount.Abs().GreaterThanOrEqual(o.AmountOrig.Abs()), nil
	}

	delta := newLevel.Amount.Sub(oldLevel.Amount)
	return delta.Sub(o.AmountOrig).Abs().LessThanOrEqual(bookEpsilon), nil
}

// OrderRemoved reports whether the order's price level shrank by the order's
// amount between the snapshot and current book. The level must have existed
// in the snapshot; if it did not, the assertion's precondition is violated
// and an error is returned.
func OrderRemoved(o *domain.Order, prev, cur *domain.OrderBook, virtualMatch bool) (bool, error) {
	if prev == nil || cur == nil {
		return false, Setupf("missing order book snapshot for %s", o.Symbol)
	}

	oldLevel, inOld := findLevel(prev.SideFor(o.AmountOrig), o.Price, virtualMatch)
	if !inOld {
		return false, Bookf("price level %s for %s was never in the snapshot book", o.Price, o)
	}

	newLevel, inNew := findLevel(cur.SideFor(o.AmountOrig), o.Price, virtualMatch)
	if !inNew {
		// Level disappeared entirely; prove it held at least the order.
		return oldLevel.Amount.Abs().GreaterThanOrEqual(o.AmountOrig.Abs()), nil
	}

	delta := newLevel.Amount.Sub(oldLevel.Amount)
	return delta.Add(o.AmountOrig).Abs().LessThanOrEqual(bookEpsilon), nil
}

// AssertOrderInserted fails unless the order's level grew by its amount.
func AssertOrderInserted(o *domain.Order, prev, cur *domain.OrderBook, virtualMatch bool) error {
	ok, err := OrderInserted(o, prev, cur, virtualMatch)
	if err != nil {
		return err
	}
	if !ok {
		return Bookf("order not inserted into book: %s", o)
	}
	return nil
}

// AssertOrderRemoved fails unless the order's level shrank by its amount.
func AssertOrderRemoved(o *domain.Order, prev, cur *domain.OrderBook, virtualMatch bool) error {
	ok, err := OrderRemoved(o, prev, cur, virtualMatch)
	if err != nil {
		return err
	}
	if !ok {
		return Bookf("order not removed from book: %s", o)
	}
	return nil
}

// AssertOrderNotInserted is the direct negation of AssertOrderInserted. It
// shares the OrderInserted predicate, so failures unrelated to the property
// itself propagate unchanged instead of being mistaken for a pass.
func AssertOrderNotInserted(o *domain.Order, prev, cur *domain.OrderBook, virtualMatch bool) error {
	ok, err := OrderInserted(o, prev, cur, virtualMatch)
	if err != nil {
		return err
	}
	if ok {
		return Bookf("order inserted into book: %s", o)
	}
	return nil
}

// AssertOrderNotRemoved is the direct negation of AssertOrderRemoved.
func AssertOrderNotRemoved(o *domain.Order, prev, cur *domain.OrderBook, virtualMatch bool) error {
	ok, err := OrderRemoved(o, prev, cur, virtualMatch)
	if err != nil {
		return err
	}
	if ok {
		return Bookf("order removed from book: %s", o)
	}
	return nil
}
