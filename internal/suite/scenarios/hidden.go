package scenarios

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

var (
	ratioJustAboveMid = decimal.RequireFromString("1.00001")
	ratioJustBelowMid = decimal.RequireFromString("0.99999")
)

// LimitHidden rests hidden limit orders a hair away from mid and verifies
// they never surface in the public book, before or after a market order
// executes them. Hidden orders forfeit the maker rebate, so both sides of
// the cross settle at the taker fee.
func LimitHidden(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var hiddenSell, hiddenBuy *domain.Order

	return suite.Suite{
		ID:     "limit-hidden",
		Label:  "hidden limit orders execute without ever touching the book",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-hidden-sell",
				Label: "hidden sell rests invisibly just above mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					hiddenSell = maker.HiddenLimitSell(mid.Mul(ratioJustAboveMid))
					if err := maker.Submit(ctx, args, hiddenSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(hiddenSell),
						assertNotInserted(hiddenSell, args.Maker),
					)
				},
			},
			{
				ID:    "lift-hidden-sell",
				Label: "market buy fills the hidden sell at the taker fee",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					mktBuy := taker.MarketBuy()
					if err := taker.Submit(ctx, args, mktBuy); err != nil {
						return err
					}
					if err := maker.Update(hiddenSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertFullyFilled(hiddenSell),
						audit.AssertFullyFilled(mktBuy),
						args.Maker.Reconciler.VerifyWallets(hiddenSell, args.TakerFee),
						args.Taker.Reconciler.VerifyWallets(mktBuy, args.TakerFee),
						assertNotInserted(hiddenSell, args.Maker),
					)
				},
			},
			{
				ID:    "rest-hidden-buy",
				Label: "hidden buy rests invisibly just below mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					mid := args.MidOrInitial(args.Symbol)
					hiddenBuy = maker.HiddenLimitBuy(mid.Mul(ratioJustBelowMid))
					if err := maker.Submit(ctx, args, hiddenBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(hiddenBuy),
						assertNotInserted(hiddenBuy, args.Maker),
					)
				},
			},
			{
				ID:    "hit-hidden-buy",
				Label: "market sell fills the hidden buy at the taker fee",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					mktSell := taker.MarketSell()
					if err := taker.Submit(ctx, args, mktSell); err != nil {
						return err
					}
					if err := maker.Update(hiddenBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertFullyFilled(hiddenBuy),
						audit.AssertFullyFilled(mktSell),
						args.Maker.Reconciler.VerifyWallets(hiddenBuy, args.TakerFee),
						args.Taker.Reconciler.VerifyWallets(mktSell, args.TakerFee),
						assertNotInserted(hiddenBuy, args.Maker),
					)
				},
			},
		},
	}
}
