package scenarios

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

var ratioStopTriggerDown = decimal.RequireFromString("0.997")

// StopMarketTrigger rests double-sized maker liquidity above and below mid,
// arms taker stop orders at those prices and fires market orders through
// them. A stop must convert to a market order the moment the last price
// prints at its trigger, and fill at the maker price.
func StopMarketTrigger(args *suite.Args) suite.Suite {
	makerBig := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount.Mul(amountDoubleRatio))
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var (
		makerSell, makerBuy *domain.Order
		stopBuy, stopSell   *domain.Order
	)

	return suite.Suite{
		ID:     "stop-market-trigger",
		Label:  "stop orders trigger on last price and fill at the maker level",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-liquidity",
				Label: "maker rests double-sized limit orders around mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					makerSell = makerBig.LimitSell(mid.Mul(ratioStopTrigger))
					makerBuy = makerBig.LimitBuy(mid.Mul(ratioStopTriggerDown))
					if err := makerBig.Submit(ctx, args, makerSell); err != nil {
						return err
					}
					return makerBig.Submit(ctx, args, makerBuy)
				},
			},
			{
				ID:    "arm-stops",
				Label: "taker arms stop orders at the maker prices",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					stopBuy = taker.StopBuy(makerSell.Price)
					stopSell = taker.StopSell(makerBuy.Price)
					if err := taker.Submit(ctx, args, stopBuy); err != nil {
						return err
					}
					if err := taker.Submit(ctx, args, stopSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotCanceled(stopBuy),
						audit.AssertNotFilled(stopBuy),
						audit.AssertNotCanceled(stopSell),
						audit.AssertNotFilled(stopSell),
					)
				},
			},
			{
				ID:    "trigger-up",
				Label: "market buy prints the upper trigger price",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := taker.Submit(ctx, args, taker.MarketBuy()); err != nil {
						return err
					}
					if last := args.LastOrInitial(args.Symbol); !last.Equal(makerSell.Price) {
						return audit.Orderf("last price %s did not print at the upper trigger %s", last, makerSell.Price)
					}
					return firstErr(taker.Update(stopBuy), makerBig.Update(makerSell))
				},
			},
			{
				ID:    "trigger-down",
				Label: "market sell prints the lower trigger price",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := taker.Submit(ctx, args, taker.MarketSell()); err != nil {
						return err
					}
					if last := args.LastOrInitial(args.Symbol); !last.Equal(makerBuy.Price) {
						return audit.Orderf("last price %s did not print at the lower trigger %s", last, makerBuy.Price)
					}
					return firstErr(taker.Update(stopSell), makerBig.Update(makerBuy))
				},
			},
			{
				ID:    "verify-stops",
				Label: "stops filled in full at the maker prices",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := firstErr(
						audit.AssertFullyFilled(stopBuy),
						audit.AssertFullyFilled(stopSell),
						audit.AssertFullyFilled(makerSell),
						audit.AssertFullyFilled(makerBuy),
					); err != nil {
						return err
					}
					if !stopBuy.PriceAvg.Equal(makerSell.Price) {
						return audit.Orderf("stop buy filled at %s, maker level was %s: %s",
							stopBuy.PriceAvg, makerSell.Price, stopBuy)
					}
					if !stopSell.PriceAvg.Equal(makerBuy.Price) {
						return audit.Orderf("stop sell filled at %s, maker level was %s: %s",
							stopSell.PriceAvg, makerBuy.Price, stopSell)
					}
					return nil
				},
			},
			{
				ID:    "verify-wallets",
				Label: "stop executions settle wallets with taker fees",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						args.Taker.Reconciler.VerifyWallets(stopBuy, args.TakerFee),
						args.Taker.Reconciler.VerifyWallets(stopSell, args.TakerFee),
					)
				},
			},
		},
	}
}
