// Package suite drives ordered audit scenarios against the exchange: each
// scenario is a sequence of steps with optional before/after hooks, executed
// strictly sequentially, never concurrently.
package suite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/dataset"
	"github.com/vadiminshakov/apiaudit/internal/rest"
	"github.com/vadiminshakov/apiaudit/internal/storage/findings"
	"github.com/vadiminshakov/apiaudit/internal/transport"
)

// Account bundles one side of the harness: its dataset, its transport and
// the reconciler bound to its ledger.
type Account struct {
	Data       *dataset.Dataset
	WS         *transport.Client
	Reconciler *audit.BalanceReconciler
}

// Args is the context shared by all steps of a run.
type Args struct {
	Symbol      string
	Amount      decimal.Decimal
	InitialMid  decimal.Decimal
	InitialLast decimal.Decimal

	// DataDelay is the minimum observation window: the pause between a
	// state-mutating command and any assertion. The feed gives no signal
	// that all packets triggered by a command have arrived, so pacing is
	// the caller's responsibility and a known source of flakiness.
	DataDelay time.Duration

	PrimaryPair string
	VirtualPair string

	MakerFee decimal.Decimal
	TakerFee decimal.Decimal

	// Dust holds the per-currency price tolerances for scenario-level
	// comparisons against streamed prices.
	Dust map[string]decimal.Decimal

	Maker *Account
	Taker *Account

	Rest *rest.Client
}

// RefreshSnapshots re-watermarks the named sides, or both when none given.
func (a *Args) RefreshSnapshots(sides ...string) {
	all := len(sides) == 0
	for _, side := range sides {
		if side == "maker" {
			a.Maker.Data.RefreshSnapshots()
		}
		if side == "taker" {
			a.Taker.Data.RefreshSnapshots()
		}
	}
	if all {
		a.Maker.Data.RefreshSnapshots()
		a.Taker.Data.RefreshSnapshots()
	}
}

// Settle waits out the minimum observation window.
func (a *Args) Settle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.DataDelay):
		return nil
	}
}

// MidOrInitial returns the primary symbol's mid price, falling back to the
// configured initial mid while the book is still empty.
func (a *Args) MidOrInitial(symbol string) decimal.Decimal {
	mid := a.Maker.Data.MidPrice(symbol)
	if mid.IsZero() {
		return a.InitialMid
	}
	return mid
}

// LastOrInitial returns the symbol's last traded price, falling back to the
// configured initial last while no trade has printed yet.
func (a *Args) LastOrInitial(symbol string) decimal.Decimal {
	last := a.Maker.Data.LastPrice(symbol)
	if last.IsZero() {
		return a.InitialLast
	}
	return last
}

// defaultScenarioDust mirrors the reconciler fallback for currencies missing
// from the configured dust table.
var defaultScenarioDust = decimal.RequireFromString("0.0000001")

// DustFor returns the tolerance for price comparisons in the currency.
func (a *Args) DustFor(currency string) decimal.Decimal {
	if d, ok := a.Dust[currency]; ok {
		return d
	}
	return defaultScenarioDust
}

// Step one unit of scenario execution.
type Step struct {
	ID     string
	Label  string
	Before []Step
	After  []Step
	Exec   func(ctx context.Context, args *Args) error
}

// Suite an ordered scenario. Before runs ahead of the main steps and its
// failures abort the suite the same way.
type Suite struct {
	ID     string
	Label  string
	Before []Step
	Steps  []Step
}

// Journal receives one finding per suite outcome.
type Journal interface {
	Save(f findings.Finding) error
}

// Runner executes suites sequentially and records findings.
type Runner struct {
	log     *zap.Logger
	journal Journal
	runID   uuid.UUID

	// continueOnFailure keeps the run going after an assertion failure;
	// setup and protocol errors always abort.
	continueOnFailure bool
}

// NewRunner creates a runner. journal may be nil.
func NewRunner(log *zap.Logger, journal Journal, continueOnFailure bool) *Runner {
	return &Runner{
		log:               log.Named("suite"),
		journal:           journal,
		runID:             uuid.New(),
		continueOnFailure: continueOnFailure,
	}
}

// RunSuites executes every suite in order.
func (r *Runner) RunSuites(ctx context.Context, args *Args, suites []Suite) error {
	var failed int
	for _, s := range suites {
		r.log.Info("RUN SUITE", zap.String("id", s.ID), zap.String("label", s.Label))

		err := r.runSteps(ctx, args, s.Before)
		if err == nil {
			err = r.runSteps(ctx, args, s.Steps)
		}
		if err == nil {
			r.record(s.ID, "", findings.StatusPass, "")
			r.log.Info("PASS", zap.String("id", s.ID))
			continue
		}

		if !audit.IsAssertionFailure(err) {
			r.record(s.ID, "", findings.StatusFail, err.Error())
			return errors.Wrapf(err, "suite %s aborted", s.ID)
		}

		failed++
		r.record(s.ID, "", findings.StatusFail, err.Error())
		r.log.Error("FAIL", zap.String("id", s.ID), zap.Error(err))

		if !r.continueOnFailure {
			return err
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d suites failed", failed, len(suites))
	}
	return nil
}

func (r *Runner) runSteps(ctx context.Context, args *Args, steps []Step) error {
	for _, step := range steps {
		if len(step.Before) > 0 {
			r.log.Debug("RUN BEFORE", zap.String("id", step.ID))
			if err := r.runSteps(ctx, args, step.Before); err != nil {
				return err
			}
		}

		r.log.Info("RUN", zap.String("id", step.ID), zap.String("label", step.Label))
		if err := step.Exec(ctx, args); err != nil {
			return errors.Wrapf(err, "step %s", step.ID)
		}

		if len(step.After) > 0 {
			r.log.Debug("RUN AFTER", zap.String("id", step.ID))
			if err := r.runSteps(ctx, args, step.After); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) record(suiteID, stepID string, status findings.Status, detail string) {
	if r.journal == nil {
		return
	}
	f := findings.Finding{
		RunID:  r.runID,
		Suite:  suiteID,
		Step:   stepID,
		Status: status,
		Detail: detail,
	}
	if err := r.journal.Save(f); err != nil {
		r.log.Warn("finding not journaled", zap.Error(err))
	}
}
