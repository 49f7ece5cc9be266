package suite

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/domain"
)

// OrderFactory builds the synthetic orders a scenario submits. Client ids
// come from the owning account's dataset, so parallel runs cannot collide.
type OrderFactory struct {
	symbol string
	amount decimal.Decimal
	acct   *Account
}

// NewOrderFactory creates a factory for the account, symbol and default
// amount of the run.
func NewOrderFactory(acct *Account, symbol string, amount decimal.Decimal) *OrderFactory {
	return &OrderFactory{symbol: symbol, amount: amount, acct: acct}
}

func (f *OrderFactory) gen(t domain.OrderType, amount, price decimal.Decimal) *domain.Order {
	return &domain.Order{
		CID:        f.acct.Data.NextClientID(),
		Symbol:     f.symbol,
		Type:       t,
		Amount:     amount,
		AmountOrig: amount,
		Price:      price,
	}
}

// LimitBuy generates an exchange LIMIT buy at the given price.
func (f *OrderFactory) LimitBuy(price decimal.Decimal) *domain.Order {
	return f.gen(domain.OrderTypeExchangeLimit, f.amount, price)
}

// LimitSell generates an exchange LIMIT sell at the given price.
func (f *OrderFactory) LimitSell(price decimal.Decimal) *domain.Order {
	return f.gen(domain.OrderTypeExchangeLimit, f.amount.Neg(), price)
}

// MarketBuy generates an exchange MARKET buy.
func (f *OrderFactory) MarketBuy() *domain.Order {
	return f.gen(domain.OrderTypeExchangeMarket, f.amount, decimal.Zero)
}

// MarketSell generates an exchange MARKET sell.
func (f *OrderFactory) MarketSell() *domain.Order {
	return f.gen(domain.OrderTypeExchangeMarket, f.amount.Neg(), decimal.Zero)
}

// FOKBuy generates a fill-or-kill buy at the given price.
func (f *OrderFactory) FOKBuy(price decimal.Decimal) *domain.Order {
	return f.gen(domain.OrderTypeExchangeFOK, f.amount, price)
}

// FOKSell generates a fill-or-kill sell at the given price.
func (f *OrderFactory) FOKSell(price decimal.Decimal) *domain.Order {
	return f.gen(domain.OrderTypeExchangeFOK, f.amount.Neg(), price)
}

// StopBuy generates a stop buy triggering at the given price.
func (f *OrderFactory) StopBuy(price decimal.Decimal) *domain.Order {
	return f.gen(domain.OrderTypeExchangeStop, f.amount, price)
}

// StopSell generates a stop sell triggering at the given price.
func (f *OrderFactory) StopSell(price decimal.Decimal) *domain.Order {
	return f.gen(domain.OrderTypeExchangeStop, f.amount.Neg(), price)
}

// StopLimitBuy generates a stop-limit buy triggering at price; once triggered
// it rests as a limit order at limitPrice.
func (f *OrderFactory) StopLimitBuy(price, limitPrice decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeStopLimit, f.amount, price)
	o.PriceAuxLimit = limitPrice
	return o
}

// StopLimitSell generates a stop-limit sell triggering at price.
func (f *OrderFactory) StopLimitSell(price, limitPrice decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeStopLimit, f.amount.Neg(), price)
	o.PriceAuxLimit = limitPrice
	return o
}

// TrailingStopBuy generates a trailing stop buy keeping the given distance
// above the top ask. The exchange computes the initial stop price itself.
func (f *OrderFactory) TrailingStopBuy(distance decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeTrailingStop, f.amount, decimal.Zero)
	o.PriceTrailing = distance
	return o
}

// TrailingStopSell generates a trailing stop sell keeping the given distance
// below the top bid.
func (f *OrderFactory) TrailingStopSell(distance decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeTrailingStop, f.amount.Neg(), decimal.Zero)
	o.PriceTrailing = distance
	return o
}

// HiddenLimitBuy generates a limit buy that never shows in the public book.
func (f *OrderFactory) HiddenLimitBuy(price decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeLimit, f.amount, price)
	o.Hidden = true
	return o
}

// HiddenLimitSell generates a hidden limit sell.
func (f *OrderFactory) HiddenLimitSell(price decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeLimit, f.amount.Neg(), price)
	o.Hidden = true
	return o
}

// PostOnlyLimitBuy generates a limit buy the exchange must cancel instead of
// matching when it would cross the book.
func (f *OrderFactory) PostOnlyLimitBuy(price decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeLimit, f.amount, price)
	o.PostOnly = true
	return o
}

// PostOnlyLimitSell generates a post-only limit sell.
func (f *OrderFactory) PostOnlyLimitSell(price decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeLimit, f.amount.Neg(), price)
	o.PostOnly = true
	return o
}

// OCOBuy generates a one-cancels-other limit buy with its stop leg armed at
// stopPrice.
func (f *OrderFactory) OCOBuy(price, stopPrice decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeLimit, f.amount, price)
	o.OCO = true
	o.PriceAuxLimit = stopPrice
	return o
}

// OCOSell generates a one-cancels-other limit sell with a stop at stopPrice.
func (f *OrderFactory) OCOSell(price, stopPrice decimal.Decimal) *domain.Order {
	o := f.gen(domain.OrderTypeExchangeLimit, f.amount.Neg(), price)
	o.OCO = true
	o.PriceAuxLimit = stopPrice
	return o
}

// CloneToVirtual projects an order onto a virtual pair by converting its
// price with the live FX rate. The virtual book replicates the primary one
// at approximately these prices.
func (f *OrderFactory) CloneToVirtual(o *domain.Order, rate decimal.Decimal, virtualSymbol string) *domain.Order {
	clone := *o
	clone.CID = f.acct.Data.NextClientID()
	clone.Symbol = virtualSymbol
	clone.Price = o.Price.Mul(rate)
	clone.History = nil
	return &clone
}

// Submit sends the order, waits out the observation window and folds the
// server-observed state back onto it.
func (f *OrderFactory) Submit(ctx context.Context, args *Args, o *domain.Order) error {
	if err := f.acct.WS.SubmitOrder(ctx, o); err != nil {
		return errors.Wrapf(err, "submit %s", o)
	}
	if err := args.Settle(ctx); err != nil {
		return err
	}
	if !f.acct.Data.ReconcileOrder(o) {
		return errors.Errorf("order never confirmed by the feed: %s", o)
	}
	return nil
}

// Update folds the latest server-observed state onto the order.
func (f *OrderFactory) Update(o *domain.Order) error {
	if !f.acct.Data.ReconcileOrder(o) {
		return errors.Errorf("order unknown to the feed: %s", o)
	}
	return nil
}
