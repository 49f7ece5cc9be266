package scenarios

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

var (
	ratioAskStepA = decimal.RequireFromString("1.0003")
	ratioAskStepB = decimal.RequireFromString("1.0002")
	ratioAskStepC = decimal.RequireFromString("1.0001")
	ratioBidStepA = decimal.RequireFromString("0.9997")
	ratioBidStepB = decimal.RequireFromString("0.9998")
	ratioBidStepC = decimal.RequireFromString("0.9999")

	ratioBidHigh = decimal.RequireFromString("1.004")
	ratioAskTop  = decimal.RequireFromString("1.008")
	ratioAskMid  = decimal.RequireFromString("1.006")
	ratioAskLow  = decimal.RequireFromString("1.005")

	ratioTrailWide   = decimal.RequireFromString("0.1")
	ratioTrailNarrow = decimal.RequireFromString("0.0025")
)

func assertTrailGap(trailing, ref *domain.Order, distance, dust decimal.Decimal) error {
	gap := trailing.Price.Sub(ref.Price).Abs()
	if gap.Sub(distance).Abs().GreaterThan(dust) {
		return audit.Orderf("trailing price %s is not %s away from last print %s: %s",
			trailing.Price, distance, ref.Price, trailing)
	}
	return nil
}

// TrailingStopTrail moves the last price with maker limit / taker market
// pairs and verifies a trailing stop keeps its configured distance from
// every new print, in both directions.
func TrailingStopTrail(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var (
		mid, distance, dust  decimal.Decimal
		trailBuy, trailSell  *domain.Order
		sellStepB, sellStepC *domain.Order
		buyStepB, buyStepC   *domain.Order
	)

	// printLast crosses a resting maker limit with a taker market order so
	// the last price lands exactly on the maker level.
	printLast := func(ctx context.Context, args *suite.Args, limit, market *domain.Order) error {
		if err := maker.Submit(ctx, args, limit); err != nil {
			return err
		}
		if err := taker.Submit(ctx, args, market); err != nil {
			return err
		}
		if err := maker.Update(limit); err != nil {
			return err
		}
		return firstErr(
			audit.AssertFullyFilled(limit),
			audit.AssertFullyFilled(market),
			args.Maker.Reconciler.VerifyWallets(limit, args.MakerFee),
			args.Taker.Reconciler.VerifyWallets(market, args.TakerFee),
		)
	}

	return suite.Suite{
		ID:     "trailing-stop-trail",
		Label:  "trailing stops follow the last price at their distance",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "seed-last",
				Label: "print an initial last price above mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid = args.MidOrInitial(args.Symbol)
					distance = mid.Mul(ratioTrailWide)

					seed := maker.LimitSell(mid.Mul(ratioAskStepA))
					pair, err := seed.Pair()
					if err != nil {
						return err
					}
					dust = args.DustFor(pair.Quote)
					return printLast(ctx, args, seed, taker.MarketBuy())
				},
			},
			{
				ID:    "arm-trailing-buy",
				Label: "trailing stop buy arms without executing",
				Exec: func(ctx context.Context, args *suite.Args) error {
					trailBuy = taker.TrailingStopBuy(distance)
					if err := taker.Submit(ctx, args, trailBuy); err != nil {
						return err
					}
					args.RefreshSnapshots()
					return audit.AssertNotFilled(trailBuy)
				},
			},
			{
				ID:    "bump-ask-twice",
				Label: "each new print drags the trailing buy down with it",
				Exec: func(ctx context.Context, args *suite.Args) error {
					sellStepB = maker.LimitSell(mid.Mul(ratioAskStepB))
					if err := printLast(ctx, args, sellStepB, taker.MarketBuy()); err != nil {
						return err
					}
					if err := taker.Update(trailBuy); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertNotFilled(trailBuy),
						assertTrailGap(trailBuy, sellStepB, distance, dust),
					); err != nil {
						return err
					}
					args.RefreshSnapshots()

					sellStepC = maker.LimitSell(mid.Mul(ratioAskStepC))
					if err := printLast(ctx, args, sellStepC, taker.MarketBuy()); err != nil {
						return err
					}
					if err := taker.Update(trailBuy); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(trailBuy),
						assertTrailGap(trailBuy, sellStepC, distance, dust),
					)
				},
			},
			{
				ID:    "flip-direction",
				Label: "cancel the trailing buy and print a last price below mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := args.Taker.WS.CancelOrder(ctx, trailBuy); err != nil {
						return err
					}
					if err := args.Settle(ctx); err != nil {
						return err
					}
					args.RefreshSnapshots()
					return printLast(ctx, args, maker.LimitBuy(mid.Mul(ratioBidStepA)), taker.MarketSell())
				},
			},
			{
				ID:    "arm-trailing-sell",
				Label: "trailing stop sell arms without executing",
				Exec: func(ctx context.Context, args *suite.Args) error {
					trailSell = taker.TrailingStopSell(distance)
					if err := taker.Submit(ctx, args, trailSell); err != nil {
						return err
					}
					args.RefreshSnapshots()
					return audit.AssertNotFilled(trailSell)
				},
			},
			{
				ID:    "bump-bid-twice",
				Label: "each new print drags the trailing sell up with it",
				Exec: func(ctx context.Context, args *suite.Args) error {
					buyStepB = maker.LimitBuy(mid.Mul(ratioBidStepB))
					if err := printLast(ctx, args, buyStepB, taker.MarketSell()); err != nil {
						return err
					}
					if err := taker.Update(trailSell); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertNotFilled(trailSell),
						assertTrailGap(trailSell, buyStepB, distance, dust),
					); err != nil {
						return err
					}
					args.RefreshSnapshots()

					buyStepC = maker.LimitBuy(mid.Mul(ratioBidStepC))
					if err := printLast(ctx, args, buyStepC, taker.MarketSell()); err != nil {
						return err
					}
					if err := taker.Update(trailSell); err != nil {
						return err
					}
					return firstErr(
						audit.AssertNotFilled(trailSell),
						assertTrailGap(trailSell, buyStepC, distance, dust),
					)
				},
			},
		},
	}
}

// TrailingStopTrigger rests ladders of maker limits on both sides, arms
// trailing stops and then pulls maker levels one by one. The trailing price
// must hold while the top of book walks away from it and execute against the
// remaining level once the book crosses it.
func TrailingStopTrigger(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)
	taker := suite.NewOrderFactory(args.Taker, args.Symbol, args.Amount)

	var (
		mid, distance                decimal.Decimal
		buyA, buyB, buyC             *domain.Order
		sellA, sellB, sellC          *domain.Order
		trailBuy, trailSell          *domain.Order
		armedTrailBid, armedTrailAsk decimal.Decimal
	)

	cancelAndUpdate := func(ctx context.Context, args *suite.Args, o *domain.Order, trailing *domain.Order) error {
		if err := args.Maker.WS.CancelOrder(ctx, o); err != nil {
			return err
		}
		if err := args.Settle(ctx); err != nil {
			return err
		}
		return firstErr(maker.Update(o), taker.Update(trailing))
	}

	return suite.Suite{
		ID:     "trailing-stop-trigger",
		Label:  "trailing stops execute once the book crosses their price",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "rest-ladders",
				Label: "maker rests limit ladders on both sides of mid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid = args.MidOrInitial(args.Symbol)
					distance = mid.Mul(ratioTrailNarrow)

					buyA = maker.LimitBuy(mid.Mul(ratioNearMid))
					buyB = maker.LimitBuy(mid.Mul(ratioAboveMid))
					buyC = maker.LimitBuy(mid.Mul(ratioBidHigh))
					sellA = maker.LimitSell(mid.Mul(ratioAskTop))
					sellB = maker.LimitSell(mid.Mul(ratioAskMid))
					sellC = maker.LimitSell(mid.Mul(ratioAskLow))

					for _, o := range []*domain.Order{buyA, buyB, buyC, sellA, sellB, sellC} {
						if err := maker.Submit(ctx, args, o); err != nil {
							return err
						}
					}
					for _, o := range []*domain.Order{buyA, buyB, buyC, sellA, sellB, sellC} {
						if err := firstErr(
							audit.AssertNotFilled(o),
							assertInserted(o, args.Maker),
						); err != nil {
							return err
						}
					}
					args.RefreshSnapshots()
					return nil
				},
			},
			{
				ID:    "arm-trailing-buy",
				Label: "trailing buy arms above the top ask",
				Exec: func(ctx context.Context, args *suite.Args) error {
					trailBuy = taker.TrailingStopBuy(distance)
					if err := taker.Submit(ctx, args, trailBuy); err != nil {
						return err
					}
					if err := audit.AssertNotFilled(trailBuy); err != nil {
						return err
					}
					armedTrailBid = trailBuy.Price
					return nil
				},
			},
			{
				ID:    "pull-ask-holds",
				Label: "pulling the top ask away does not move the armed price",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := cancelAndUpdate(ctx, args, sellC, trailBuy); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertCanceled(sellC),
						audit.AssertNotFilled(trailBuy),
					); err != nil {
						return err
					}
					if !trailBuy.Price.Equal(armedTrailBid) {
						return audit.Orderf("trailing buy price moved from %s to %s while the ask retreated",
							armedTrailBid, trailBuy.Price)
					}
					args.RefreshSnapshots()
					return nil
				},
			},
			{
				ID:    "pull-ask-triggers",
				Label: "pulling the next ask crosses the armed price and executes",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := cancelAndUpdate(ctx, args, sellB, trailBuy); err != nil {
						return err
					}
					if err := maker.Update(sellA); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertCanceled(sellB),
						audit.AssertFullyFilled(trailBuy),
						audit.AssertFullyFilled(sellA),
						args.Taker.Reconciler.VerifyWallets(trailBuy, args.TakerFee),
						args.Maker.Reconciler.VerifyWallets(sellA, args.MakerFee),
					); err != nil {
						return err
					}
					if !trailBuy.PriceAvg.Equal(sellA.Price) {
						return audit.Orderf("trailing buy filled at %s, remaining ask was %s: %s",
							trailBuy.PriceAvg, sellA.Price, trailBuy)
					}
					args.RefreshSnapshots()
					return nil
				},
			},
			{
				ID:    "arm-trailing-sell",
				Label: "trailing sell arms below the top bid",
				Exec: func(ctx context.Context, args *suite.Args) error {
					trailSell = taker.TrailingStopSell(distance)
					if err := taker.Submit(ctx, args, trailSell); err != nil {
						return err
					}
					if err := firstErr(
						maker.Update(buyA),
						maker.Update(buyB),
						maker.Update(buyC),
						audit.AssertNotFilled(buyA),
						audit.AssertNotFilled(buyB),
						audit.AssertNotFilled(buyC),
						audit.AssertNotFilled(trailSell),
					); err != nil {
						return err
					}
					armedTrailAsk = trailSell.Price
					return nil
				},
			},
			{
				ID:    "pull-bid-holds",
				Label: "pulling the top bid away does not move the armed price",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := cancelAndUpdate(ctx, args, buyC, trailSell); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertCanceled(buyC),
						audit.AssertNotFilled(trailSell),
					); err != nil {
						return err
					}
					if !trailSell.Price.Equal(armedTrailAsk) {
						return audit.Orderf("trailing sell price moved from %s to %s while the bid retreated",
							armedTrailAsk, trailSell.Price)
					}
					args.RefreshSnapshots()
					return nil
				},
			},
			{
				ID:    "pull-bid-triggers",
				Label: "pulling the next bid crosses the armed price and executes",
				Exec: func(ctx context.Context, args *suite.Args) error {
					if err := cancelAndUpdate(ctx, args, buyB, trailSell); err != nil {
						return err
					}
					if err := maker.Update(buyA); err != nil {
						return err
					}
					if err := firstErr(
						audit.AssertCanceled(buyB),
						audit.AssertFullyFilled(trailSell),
						audit.AssertFullyFilled(buyA),
						args.Taker.Reconciler.VerifyWallets(trailSell, args.TakerFee),
						args.Maker.Reconciler.VerifyWallets(buyA, args.MakerFee),
					); err != nil {
						return err
					}
					if !trailSell.PriceAvg.Equal(buyA.Price) {
						return audit.Orderf("trailing sell filled at %s, remaining bid was %s: %s",
							trailSell.PriceAvg, buyA.Price, trailSell)
					}
					return nil
				},
			},
		},
	}
}
