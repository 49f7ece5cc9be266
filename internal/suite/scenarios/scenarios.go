// Package scenarios contains the audit scenarios the harness drives against
// the exchange: each one submits synthetic maker/taker orders and verifies
// the observed wallet, book and lifecycle deltas.
package scenarios

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

// All returns the full scenario set in execution order.
func All(args *suite.Args) []suite.Suite {
	suites := []suite.Suite{
		LimitEntry(args),
		LimitExec(args),
		LimitHidden(args),
		LimitPostOnly(args),
		LimitOCOExec(args),
		MarketExec(args),
		FOKCancel(args),
		FOKImmediateExec(args),
		StopMarketTrigger(args),
		StopLimitMarketTrigger(args),
		StopLimitNoImmediateTrigger(args),
		TrailingStopTrail(args),
		TrailingStopTrigger(args),
	}
	if args.VirtualPair != "" {
		suites = append(suites, VirtualLimitReplication(args))
	}
	return suites
}

func setup() []suite.Step {
	return []suite.Step{
		suite.StepCancelAllOrders(),
		suite.StepRefreshSnapshots(),
	}
}

func books(acct *suite.Account, symbol string) (prev, cur *domain.OrderBook) {
	prev, _ = acct.Data.OrderBookSnapshot(symbol)
	cur, _ = acct.Data.OrderBook(symbol)
	return prev, cur
}

func assertInserted(o *domain.Order, acct *suite.Account) error {
	prev, cur := books(acct, o.Symbol)
	return audit.AssertOrderInserted(o, prev, cur, false)
}

func assertRemoved(o *domain.Order, acct *suite.Account) error {
	prev, cur := books(acct, o.Symbol)
	return audit.AssertOrderRemoved(o, prev, cur, false)
}

func assertNotInserted(o *domain.Order, acct *suite.Account) error {
	prev, cur := books(acct, o.Symbol)
	return audit.AssertOrderNotInserted(o, prev, cur, false)
}

func assertVirtualInserted(o *domain.Order, acct *suite.Account) error {
	prev, cur := books(acct, o.Symbol)
	return audit.AssertOrderInserted(o, prev, cur, true)
}

func assertVirtualRemoved(o *domain.Order, acct *suite.Account) error {
	prev, cur := books(acct, o.Symbol)
	return audit.AssertOrderRemoved(o, prev, cur, true)
}

// restingOrder builds the book-side image of an order expected at a price
// level, for assertions about levels no submitted order directly owns.
func restingOrder(symbol string, price, amount decimal.Decimal) *domain.Order {
	return &domain.Order{Symbol: symbol, Price: price, Amount: amount, AmountOrig: amount}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
