package suite

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// StepDelay pauses for the given duration, or the minimum observation window
// when zero.
func StepDelay(d time.Duration) Step {
	return Step{
		ID:    "delay",
		Label: "wait for streamed data to settle",
		Exec: func(ctx context.Context, args *Args) error {
			if d == 0 {
				return args.Settle(ctx)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

// StepRefreshSnapshots re-watermarks both accounts so deltas from earlier
// scenarios cannot leak into the next search window.
func StepRefreshSnapshots() Step {
	return Step{
		ID:    "refresh_data_snapshots",
		Label: "refresh wallet and order book snapshots",
		Exec: func(ctx context.Context, args *Args) error {
			args.RefreshSnapshots()
			return nil
		},
	}
}

// StepCancelAllOrders cancels every open order on both accounts and waits out
// the observation window.
func StepCancelAllOrders() Step {
	return Step{
		ID:    "cancel_all_orders",
		Label: "cancel all open orders",
		Exec: func(ctx context.Context, args *Args) error {
			for _, acct := range []*Account{args.Maker, args.Taker} {
				open := acct.Data.OpenOrders()
				if len(open) == 0 {
					continue
				}
				if err := acct.WS.CancelAll(ctx, open); err != nil {
					return errors.Wrapf(err, "cancel open orders for %s", acct.Data.Label())
				}
			}
			return args.Settle(ctx)
		},
	}
}

// StepAwaitOrderBook blocks until both accounts have received the symbol's
// first book snapshot. The dataset's waiters have no internal timeout, so
// the step imposes one around the wait.
func StepAwaitOrderBook(symbol string, timeout time.Duration) Step {
	return Step{
		ID:    "delay_until_ob",
		Label: "wait for the first order book snapshot",
		Exec: func(ctx context.Context, args *Args) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			for _, acct := range []*Account{args.Maker, args.Taker} {
				select {
				case <-ctx.Done():
					return errors.Wrapf(ctx.Err(), "no order book for %s on %s", symbol, acct.Data.Label())
				case <-acct.Data.AwaitOrderBook(symbol):
				}
			}
			return nil
		},
	}
}
