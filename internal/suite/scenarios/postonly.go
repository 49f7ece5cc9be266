package scenarios

import (
	"context"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

// LimitPostOnly submits post-only limit orders on both sides of a resting
// maker order. A post-only order that would cross must be canceled instead
// of matching; one that rests must enter the book untouched.
func LimitPostOnly(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var makerSell, makerBuy *domain.Order

	return suite.Suite{
		ID:     "limit-postonly",
		Label:  "post-only orders cancel instead of crossing the book",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-maker-sell",
				Label: "maker rests a limit sell far above mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					makerSell = maker.LimitSell(mid.Mul(ratioFarAboveMid))
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
				ID:    "crossing-buy-cancels",
				Label: "post-only buy above the offer is canceled, not matched",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					crossing := taker.PostOnlyLimitBuy(mid.Mul(ratioAuxAboveMid))
					if err := taker.Submit(ctx, args, crossing); err != nil {
						return err
					}
					if err := maker.Update(makerSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(makerSell),
						audit.AssertCanceled(crossing),
						audit.AssertNotFilled(crossing),
						assertNotInserted(crossing, args.Taker),
					)
				},
			},
			{
				ID:    "resting-buy-posts",
				Label: "post-only buy below the offer rests in the book",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					mid := args.MidOrInitial(args.Symbol)
					resting := taker.PostOnlyLimitBuy(mid.Mul(ratioAuxBelowMid))
					if err := taker.Submit(ctx, args, resting); err != nil {
						return err
					}
					if err := maker.Update(makerSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(makerSell),
						audit.AssertNotFilled(resting),
						audit.AssertNotCanceled(resting),
						assertInserted(resting, args.Taker),
					)
				},
			},
			{
				ID:     "rest-maker-buy",
				Label:  "maker rests a limit buy far below mid",
				Before: setup(),
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					makerBuy = maker.LimitBuy(mid.Mul(ratioFarBelowMid))
					if err := maker.Submit(ctx, args, makerBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(makerBuy),
						assertInserted(makerBuy, args.Maker),
					)
				},
			},
			{
				ID:    "crossing-sell-cancels",
				Label: "post-only sell below the bid is canceled, not matched",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					crossing := taker.PostOnlyLimitSell(mid.Mul(ratioAuxBelowMid))
					if err := taker.Submit(ctx, args, crossing); err != nil {
						return err
					}
					if err := maker.Update(makerBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(makerBuy),
						audit.AssertCanceled(crossing),
						audit.AssertNotFilled(crossing),
						assertNotInserted(crossing, args.Taker),
					)
				},
			},
			{
				ID:    "resting-sell-posts",
				Label: "post-only sell above the bid rests in the book",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					mid := args.MidOrInitial(args.Symbol)
					resting := taker.PostOnlyLimitSell(mid.Mul(ratioAuxAboveMid))
					if err := taker.Submit(ctx, args, resting); err != nil {
						return err
					}
					if err := maker.Update(makerBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(makerBuy),
						audit.AssertNotFilled(resting),
						audit.AssertNotCanceled(resting),
						assertInserted(resting, args.Taker),
					)
				},
			},
		},
	}
}
