package scenarios

import (
	"context"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

// MarketExec crosses resting maker liquidity with a taker market order and
// verifies the fill settles at the maker level's price.
func MarketExec(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var makerSell, marketBuy *domain.Order

	return suite.Suite{
		ID:     "market-exec",
		Label:  "market orders execute against the resting book",
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
					return assertInserted(makerSell, args.Maker)
				},
			},
			{
				ID:    "cross-market",
				Label: "taker sends a market buy",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					marketBuy = taker.MarketBuy()
					if err := taker.Submit(ctx, args, marketBuy); err != nil {
						return err
					}
					return maker.Update(makerSell)
				},
			},
			{
				ID:    "verify-fill",
				Label: "both orders filled at the maker price",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := firstErr(
						audit.AssertFullyFilled(marketBuy),
						audit.AssertFullyFilled(makerSell),
						assertRemoved(makerSell, args.Maker),
					); err != nil {
						return err
					}
					if !marketBuy.PriceAvg.Equal(makerSell.Price) {
						return audit.Orderf("market buy filled at %s, maker level was %s: %s",
							marketBuy.PriceAvg, makerSell.Price, marketBuy)
					}
					return nil
				},
			},
			{
				ID:    "verify-wallets",
				Label: "wallet deltas match notional and fees",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						args.Maker.Reconciler.VerifyWallets(makerSell, args.MakerFee),
						args.Taker.Reconciler.VerifyWallets(marketBuy, args.TakerFee),
					)
				},
			},
		},
	}
}
