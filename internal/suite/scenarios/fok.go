package scenarios

import (
	"context"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

// FOKCancel sends fill-or-kill orders priced far away from the resting
// liquidity. They must cancel without touching the book or the wallets.
func FOKCancel(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var fokSell, fokBuy *domain.Order

	return suite.Suite{
		ID:     "fok-cancel",
		Label:  "unfillable fill-or-kill orders cancel immediately",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-liquidity",
				Label: "maker rests limit orders on both sides",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					if err := maker.Submit(ctx, args, maker.LimitSell(mid.Mul(ratioAboveMid))); err != nil {
						return err
					}
					return maker.Submit(ctx, args, maker.LimitBuy(mid.Mul(ratioNearMid)))
				},
			},
			{
				ID:    "send-fok",
				Label: "taker sends fill-or-kill orders far from the touch",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					args.RefreshSnapshots()
					fokSell = taker.FOKSell(mid.Mul(ratioFarAboveMid))
					fokBuy = taker.FOKBuy(mid.Mul(ratioFarBelowMid))
					if err := taker.Submit(ctx, args, fokSell); err != nil {
						return err
					}
					return taker.Submit(ctx, args, fokBuy)
				},
			},
			{
				ID:    "verify-canceled",
				Label: "both orders canceled and unfilled, book untouched",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						audit.AssertCanceled(fokSell),
						audit.AssertCanceled(fokBuy),
						audit.AssertNotFilled(fokSell),
						audit.AssertNotFilled(fokBuy),
						assertNotInserted(fokSell, args.Taker),
						assertNotInserted(fokBuy, args.Taker),
					)
				},
			},
		},
	}
}

// FOKImmediateExec sends fill-or-kill orders at the resting maker prices so
// they execute in full, then verifies lifecycle, book and wallet state on
// both sides.
func FOKImmediateExec(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var makerSell, makerBuy, fokBuy, fokSell *domain.Order

	return suite.Suite{
		ID:     "fok-immediate-exec",
		Label:  "fillable fill-or-kill orders execute in full",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-liquidity",
				Label: "maker rests limit orders on both sides",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					makerSell = maker.LimitSell(mid.Mul(ratioAboveMid))
					makerBuy = maker.LimitBuy(mid.Mul(ratioNearMid))
					if err := maker.Submit(ctx, args, makerSell); err != nil {
						return err
					}
					return maker.Submit(ctx, args, makerBuy)
				},
			},
			{
				ID:    "send-fok",
				Label: "taker crosses both maker levels with fill-or-kill",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					fokBuy = taker.FOKBuy(makerSell.Price)
					fokSell = taker.FOKSell(makerBuy.Price)
					if err := taker.Submit(ctx, args, fokBuy); err != nil {
						return err
					}
					if err := taker.Submit(ctx, args, fokSell); err != nil {
						return err
					}
					return firstErr(maker.Update(makerSell), maker.Update(makerBuy))
				},
			},
			{
				ID:    "verify-fill",
				Label: "all four orders filled, maker levels consumed",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						audit.AssertFullyFilled(fokBuy),
						audit.AssertFullyFilled(fokSell),
						audit.AssertFullyFilled(makerSell),
						audit.AssertFullyFilled(makerBuy),
						audit.AssertNotCanceled(fokBuy),
						audit.AssertNotCanceled(fokSell),
						assertRemoved(makerSell, args.Maker),
						assertRemoved(makerBuy, args.Maker),
					)
				},
			},
			{
				ID:    "verify-wallets",
				Label: "wallet deltas match notional and fees on both sides",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						args.Maker.Reconciler.VerifyWallets(makerSell, args.MakerFee),
						args.Maker.Reconciler.VerifyWallets(makerBuy, args.MakerFee),
						args.Taker.Reconciler.VerifyWallets(fokBuy, args.TakerFee),
						args.Taker.Reconciler.VerifyWallets(fokSell, args.TakerFee),
					)
				},
			},
		},
	}
}
