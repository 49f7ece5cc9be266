package scenarios

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

var (
	ratioAuxBelowMid  = decimal.RequireFromString("0.8")
	ratioAuxAboveMid  = decimal.RequireFromString("1.2")
	ratioAuxDeepBelow = decimal.RequireFromString("0.7")
	ratioAuxDeepAbove = decimal.RequireFromString("1.3")
)

// StopLimitMarketTrigger rests double-sized maker limits around mid, arms
// taker stop-limit orders at those prices and fires market orders through
// them. A triggered stop-limit must not execute; it converts to a limit
// order resting at its aux price.
func StopLimitMarketTrigger(args *suite.Args) suite.Suite {
	makerBig := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount.Mul(amountDoubleRatio))
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var (
		mid                 decimal.Decimal
		makerSell, makerBuy *domain.Order
		stopBuy, stopSell   *domain.Order
	)

	return suite.Suite{
		ID:     "stop-limit-market-trigger",
		Label:  "triggered stop-limit orders rest at the aux price instead of executing",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-liquidity",
				Label: "maker rests double-sized limit orders around mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid = args.MidOrInitial(args.Symbol)
					makerSell = makerBig.LimitSell(mid.Mul(ratioStopTrigger))
					makerBuy = makerBig.LimitBuy(mid.Mul(ratioAboveMid))
					if err := makerBig.Submit(ctx, args, makerSell); err != nil {
						return err
					}
					if err := makerBig.Submit(ctx, args, makerBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(makerSell),
						audit.AssertNotFilled(makerBuy),
						assertInserted(makerSell, args.Maker),
						assertInserted(makerBuy, args.Maker),
					)
				},
			},
			{
				ID:    "arm-stop-sell",
				Label: "taker arms a stop-limit sell at the maker bid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					stopSell = taker.StopLimitSell(makerBuy.Price, mid.Mul(ratioAuxAboveMid))
					if err := taker.Submit(ctx, args, stopSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(stopSell),
						makerBig.Update(makerBuy),
						audit.AssertNotFilled(makerBuy),
					)
				},
			},
			{
				ID:    "trigger-down",
				Label: "market sell triggers the stop-limit sell",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mktSell := taker.MarketSell()
					if err := taker.Submit(ctx, args, mktSell); err != nil {
						return err
					}
					if err := firstErr(taker.Update(stopSell), makerBig.Update(makerBuy)); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertFullyFilled(mktSell),
						audit.AssertNotFilled(stopSell),
						audit.AssertPartiallyFilled(makerBuy),
						args.Maker.Reconciler.VerifyWallets(makerBuy, args.MakerFee),
						args.Taker.Reconciler.VerifyWallets(mktSell, args.TakerFee),
					); err != nil {
						return err
					}
					rested := restingOrder(args.Symbol, stopSell.PriceAuxLimit, stopSell.AmountOrig)
					return assertInserted(rested, args.Taker)
				},
			},
			{
				ID:    "arm-stop-buy",
				Label: "taker arms a stop-limit buy at the maker ask",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					stopBuy = taker.StopLimitBuy(makerSell.Price, mid.Mul(ratioAuxBelowMid))
					if err := taker.Submit(ctx, args, stopBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(stopBuy),
						makerBig.Update(makerSell),
						audit.AssertNotFilled(makerSell),
					)
				},
			},
			{
				ID:    "trigger-up",
				Label: "market buy triggers the stop-limit buy",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mktBuy := taker.MarketBuy()
					if err := taker.Submit(ctx, args, mktBuy); err != nil {
						return err
					}
					if err := firstErr(taker.Update(stopBuy), makerBig.Update(makerSell)); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertFullyFilled(mktBuy),
						audit.AssertNotFilled(stopBuy),
						audit.AssertPartiallyFilled(makerSell),
						args.Maker.Reconciler.VerifyWallets(makerSell, args.MakerFee),
						args.Taker.Reconciler.VerifyWallets(mktBuy, args.TakerFee),
					); err != nil {
						return err
					}
					rested := restingOrder(args.Symbol, stopBuy.PriceAuxLimit, stopBuy.AmountOrig)
					return assertInserted(rested, args.Taker)
				},
			},
		},
	}
}

// StopLimitNoImmediateTrigger arms stop-limit orders whose triggers sit far
// away from the market and verifies nothing executes and nothing enters the
// book, neither at the trigger price nor at the aux price.
func StopLimitNoImmediateTrigger(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var (
		mid                 decimal.Decimal
		makerSell, makerBuy *domain.Order
		stopBuy, stopSell   *domain.Order
	)

	return suite.Suite{
		ID:     "stop-limit-no-immediate-trigger",
		Label:  "far-away stop-limit orders neither execute nor touch the book",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-liquidity",
				Label: "maker populates the book around mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid = args.MidOrInitial(args.Symbol)
					makerSell = maker.LimitSell(mid.Mul(ratioAboveMid))
					makerBuy = maker.LimitBuy(mid.Mul(ratioNearMid))
					if err := maker.Submit(ctx, args, makerSell); err != nil {
						return err
					}
					if err := maker.Submit(ctx, args, makerBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(makerSell),
						audit.AssertNotFilled(makerBuy),
						assertInserted(makerSell, args.Maker),
						assertInserted(makerBuy, args.Maker),
					)
				},
			},
			{
				ID:    "arm-stop-sell",
				Label: "stop-limit sell far below the market stays out of the book",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					stopSell = taker.StopLimitSell(mid.Mul(ratioAuxBelowMid), mid.Mul(ratioAuxDeepAbove))
					if err := taker.Submit(ctx, args, stopSell); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertNotFilled(stopSell),
						maker.Update(makerBuy),
						audit.AssertNotFilled(makerBuy),
						assertNotInserted(stopSell, args.Taker),
					); err != nil {
						return err
					}
					rested := restingOrder(args.Symbol, stopSell.PriceAuxLimit, stopSell.AmountOrig)
					return assertNotInserted(rested, args.Taker)
				},
			},
			{
				ID:    "arm-stop-buy",
				Label: "stop-limit buy far above the market stays out of the book",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					stopBuy = taker.StopLimitBuy(mid.Mul(ratioAuxAboveMid), mid.Mul(ratioAuxDeepBelow))
					if err := taker.Submit(ctx, args, stopBuy); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertNotFilled(stopBuy),
						maker.Update(makerSell),
						audit.AssertNotFilled(makerSell),
						assertNotInserted(stopBuy, args.Taker),
					); err != nil {
						return err
					}
					rested := restingOrder(args.Symbol, stopBuy.PriceAuxLimit, stopBuy.AmountOrig)
					return assertNotInserted(rested, args.Taker)
				},
			},
		},
	}
}
