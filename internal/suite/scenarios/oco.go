package scenarios

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

var (
	ratioOCOLimit = decimal.RequireFromString("1.02")
	ratioOCOSeed  = decimal.RequireFromString("1.01")
)

// LimitOCOExec submits a one-cancels-other sell whose stop leg is armed near
// the last price, then takes its limit leg and verifies the order executes
// and leaves the book like a plain limit.
func LimitOCOExec(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var (
		mid     decimal.Decimal
		ocoSell *domain.Order
	)

	return suite.Suite{
		ID:     "limit-oco-exec",
		Label:  "an OCO limit leg executes and clears the book",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "seed-last",
				Label: "print the last price just above mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid = args.MidOrInitial(args.Symbol)
					seed := maker.LimitSell(mid.Mul(ratioOCOSeed))
					if err := maker.Submit(ctx, args, seed); err != nil {
						return err
					}
					mktBuy := taker.MarketBuy()
					if err := taker.Submit(ctx, args, mktBuy); err != nil {
						return err
					}
					if err := maker.Update(seed); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertFullyFilled(seed),
						audit.AssertFullyFilled(mktBuy),
						args.Maker.Reconciler.VerifyWallets(seed, args.MakerFee),
						args.Taker.Reconciler.VerifyWallets(mktBuy, args.TakerFee),
					); err != nil {
						return err
					}
					if last := args.LastOrInitial(args.Symbol); !last.Equal(seed.Price) {
						return audit.Orderf("last price %s did not print at the seed level %s", last, seed.Price)
					}
					return nil
				},
			},
			{
				ID:    "rest-oco",
				Label: "OCO sell rests at its limit price",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					ocoSell = maker.OCOSell(mid.Mul(ratioOCOLimit), mid.Mul(ratioNearMid))
					if err := maker.Submit(ctx, args, ocoSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(ocoSell),
						assertInserted(ocoSell, args.Maker),
					)
				},
			},
			{
				ID:    "take-limit-leg",
				Label: "taker lifts the OCO limit leg",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					takerBuy := taker.LimitBuy(ocoSell.Price)
					if err := taker.Submit(ctx, args, takerBuy); err != nil {
						return err
					}
					if err := maker.Update(ocoSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertFullyFilled(ocoSell),
						audit.AssertFullyFilled(takerBuy),
						assertRemoved(ocoSell, args.Maker),
						args.Maker.Reconciler.VerifyWallets(ocoSell, args.MakerFee),
						args.Taker.Reconciler.VerifyWallets(takerBuy, args.TakerFee),
					)
				},
			},
		},
	}
}
