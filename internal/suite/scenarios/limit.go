package scenarios

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

var (
	ratioAboveMid     = decimal.RequireFromString("1.002")
	ratioNearMid      = decimal.RequireFromString("1.001")
	ratioFarAboveMid  = decimal.RequireFromString("1.1")
	ratioFarBelowMid  = decimal.RequireFromString("0.9")
	ratioStopTrigger  = decimal.RequireFromString("1.003")
	amountDoubleRatio = decimal.RequireFromString("2")
)

// LimitEntry places resting limit orders on both sides of the mid price,
// checks they land in the book untouched and leave the book on cancel.
func LimitEntry(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)

	var sell, buy *domain.Order

	return suite.Suite{
		ID:     "limit-entry",
		Label:  "limit orders enter and leave the book",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "submit",
				Label: "submit resting limit orders",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					sell = maker.LimitSell(mid.Mul(ratioAboveMid))
					buy = maker.LimitBuy(mid.Mul(ratioNearMid))
					if err := maker.Submit(ctx, args, sell); err != nil {
						return err
					}
					return maker.Submit(ctx, args, buy)
				},
			},
			{
				ID:    "verify-open",
				Label: "orders are open, unfilled and visible in the book",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						audit.AssertNotCanceled(sell),
						audit.AssertNotCanceled(buy),
						audit.AssertNotFilled(sell),
						audit.AssertNotFilled(buy),
						assertInserted(sell, args.Maker),
						assertInserted(buy, args.Maker),
					)
				},
			},
			{
				ID:    "cancel",
				Label: "cancel both orders",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					if err := args.Maker.WS.CancelOrder(ctx, sell); err != nil {
						return err
					}
					if err := args.Maker.WS.CancelOrder(ctx, buy); err != nil {
						return err
					}
					if err := args.Settle(ctx); err != nil {
						return err
					}
					return firstErr(maker.Update(sell), maker.Update(buy))
				},
			},
			{
				ID:    "verify-canceled",
				Label: "orders are canceled, unfilled and gone from the book",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						audit.AssertCanceled(sell),
						audit.AssertCanceled(buy),
						audit.AssertNotFilled(sell),
						audit.AssertNotFilled(buy),
						assertRemoved(sell, args.Maker),
						assertRemoved(buy, args.Maker),
					)
				},
			},
		},
	}
}

// LimitExec crosses a resting maker limit with a taker limit at the same
// price and verifies the fill and the wallet movements on both sides.
func LimitExec(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var makerSell, takerBuy *domain.Order

	return suite.Suite{
		ID:     "limit-exec",
		Label:  "crossing limit orders execute and settle wallets",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-maker",
				Label: "maker rests a limit sell above mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					makerSell = maker.LimitSell(mid.Mul(ratioAboveMid))
					if err := maker.Submit(ctx, args, makerSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(makerSell),
						assertInserted(makerSell, args.Maker),
					)
				},
			},
			{
				ID:    "cross-taker",
				Label: "taker lifts the maker offer",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					takerBuy = taker.LimitBuy(makerSell.Price)
					if err := taker.Submit(ctx, args, takerBuy); err != nil {
						return err
					}
					return maker.Update(makerSell)
				},
			},
			{
				ID:    "verify-fill",
				Label: "both orders filled, maker level consumed",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						audit.AssertFullyFilled(makerSell),
						audit.AssertFullyFilled(takerBuy),
						audit.AssertNotCanceled(makerSell),
						audit.AssertNotCanceled(takerBuy),
						assertRemoved(makerSell, args.Maker),
					)
				},
			},
			{
				ID:    "verify-wallets",
				Label: "wallet deltas match notional and fees",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						args.Maker.Reconciler.VerifyWallets(makerSell, args.MakerFee),
						args.Taker.Reconciler.VerifyWallets(takerBuy, args.TakerFee),
					)
				},
			},
		},
	}
}
