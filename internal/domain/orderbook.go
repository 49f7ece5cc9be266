package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Level one price level of an order book side. Amount is signed: positive
// levels sit on the bid side, negative on the ask side.
type Level struct {
	Price  decimal.Decimal
	Count  int
	Amount decimal.Decimal
}

// OrderBook two-sided price-level book. Bids are ordered by descending price,
// asks by ascending price; a price appears at most once per side.
type OrderBook struct {
	Bids []Level
	Asks []Level
}

// NewOrderBook builds a book from snapshot levels, routing each level to a
// side by the sign of its amount.
func NewOrderBook(levels []Level) *OrderBook {
	b := &OrderBook{}
	for _, l := range levels {
		if l.Amount.IsZero() {
			continue
		}
		if l.Amount.IsPositive() {
			b.Bids = append(b.Bids, l)
		} else {
			b.Asks = append(b.Asks, l)
		}
	}

	sort.Slice(b.Bids, func(i, j int) bool { return b.Bids[i].Price.GreaterThan(b.Bids[j].Price) })
	sort.Slice(b.Asks, func(i, j int) bool { return b.Asks[i].Price.LessThan(b.Asks[j].Price) })

	return b
}

// Update applies a single level change: a non-zero amount inserts or replaces
// the level at that price, a zero amount removes the price level entirely.
func (b *OrderBook) Update(l Level) {
	if l.Amount.IsZero() {
		b.Bids = removeLevel(b.Bids, l.Price)
		b.Asks = removeLevel(b.Asks, l.Price)
		return
	}

	if l.Amount.IsPositive() {
		b.Asks = removeLevel(b.Asks, l.Price)
		b.Bids = upsertLevel(b.Bids, l, func(existing Level) bool {
			return existing.Price.GreaterThan(l.Price)
		})
		return
	}

	b.Bids = removeLevel(b.Bids, l.Price)
	b.Asks = upsertLevel(b.Asks, l, func(existing Level) bool {
		return existing.Price.LessThan(l.Price)
	})
}

// SideFor returns the side an order of the given signed amount rests on.
func (b *OrderBook) SideFor(amount decimal.Decimal) []Level {
	if amount.IsPositive() {
		return b.Bids
	}
	return b.Asks
}

// MidPrice returns the midpoint of the best bid and ask, or zero when either
// side is empty. Callers substitute their own fallback reference price; an
// empty book is expected early in a run, not an error.
func (b *OrderBook) MidPrice() decimal.Decimal {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return decimal.Zero
	}
	return b.Bids[0].Price.Add(b.Asks[0].Price).Div(decimal.NewFromInt(2))
}

// Clone returns an independent deep copy. Snapshots handed to verifiers must
// not alias live state, so subsequent updates cannot rewrite them.
func (b *OrderBook) Clone() *OrderBook {
	out := &OrderBook{}
	if len(b.Bids) > 0 {
		out.Bids = make([]Level, len(b.Bids))
		copy(out.Bids, b.Bids)
	}
	if len(b.Asks) > 0 {
		out.Asks = make([]Level, len(b.Asks))
		copy(out.Asks, b.Asks)
	}
	return out
}

func removeLevel(side []Level, price decimal.Decimal) []Level {
	for i := range side {
		if side[i].Price.Equal(price) {
			return append(side[:i], side[i+1:]...)
		}
	}
	return side
}

// upsertLevel replaces the level at l.Price or inserts it after every level
// for which before holds, keeping the side's price ordering.
func upsertLevel(side []Level, l Level, before func(existing Level) bool) []Level {
	for i := range side {
		if side[i].Price.Equal(l.Price) {
			side[i] = l
			return side
		}
	}

	pos := sort.Search(len(side), func(i int) bool { return !before(side[i]) })
	side = append(side, Level{})
	copy(side[pos+1:], side[pos:])
	side[pos] = l
	return side
}
