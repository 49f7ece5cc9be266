package scenarios

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
	"github.com/vadiminshakov/apiaudit/internal/suite"
)

// VirtualLimitReplication rests a limit order on the primary pair and checks
// the virtual pair's book mirrors it at the FX-converted price. Virtual
// books are derived server-side, so level matching uses the relative price
// tolerance instead of exact equality.
func VirtualLimitReplication(args *suite.Args) suite.Suite {
	maker := suite.NewOrderFactory(args.Maker, args.Symbol, args.Amount)

	var (
		order   *domain.Order
		mirror  *domain.Order
		fxRate  decimal.Decimal
		primary domain.Pair
		virtual domain.Pair
	)

	return suite.Suite{
		ID:     "virtual-limit-replication",
		Label:  "limit orders replicate into the virtual pair's book",
		Before: setup(),
		Steps: []suite.Step{
			{
				ID:    "fetch-rate",
				Label: "fetch the FX rate between the quote currencies",
				Exec: func(ctx context.Context, args *suite.Args) error {
					var err error
					primary, err = domain.PairFromSymbol(args.PrimaryPair)
					if err != nil {
						return audit.Setupf("primary pair: %s", err)
					}
					virtual, err = domain.PairFromSymbol(args.VirtualPair)
					if err != nil {
						return audit.Setupf("virtual pair: %s", err)
					}
					fxRate, err = args.Rest.ExchangeRate(ctx, primary.Quote, virtual.Quote)
					if err != nil {
						return audit.Setupf("fx rate %s->%s: %s", primary.Quote, virtual.Quote, err)
					}
					if fxRate.IsZero() {
						return audit.Setupf("zero fx rate %s->%s", primary.Quote, virtual.Quote)
					}
					return nil
				},
			},
			{
				ID:    "submit",
				Label: "maker rests a limit sell on the primary pair",
				Exec: func(ctx context.Context, args *suite.Args) error {
					mid := args.MidOrInitial(args.Symbol)
					order = maker.LimitSell(mid.Mul(ratioAboveMid))
					if err := maker.Submit(ctx, args, order); err != nil {
						return err
					}
					mirror = maker.CloneToVirtual(order, fxRate, args.VirtualPair)
					return nil
				},
			},
			{
				ID:    "verify-replicated",
				Label: "order visible in both books",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						assertInserted(order, args.Maker),
						assertVirtualInserted(mirror, args.Maker),
					)
				},
			},
			{
				ID:    "cancel",
				Label: "cancel the primary order",
				Exec: func(ctx context.Context, args *suite.Args) error {
					args.RefreshSnapshots()
					if err := args.Maker.WS.CancelOrder(ctx, order); err != nil {
						return err
					}
					if err := args.Settle(ctx); err != nil {
						return err
					}
					return maker.Update(order)
				},
			},
			{
				ID:    "verify-withdrawn",
				Label: "order gone from both books",
				Exec: func(ctx context.Context, args *suite.Args) error {
					return firstErr(
						audit.AssertCanceled(order),
						assertRemoved(order, args.Maker),
						assertVirtualRemoved(mirror, args.Maker),
					)
				},
			},
		},
	}
}
