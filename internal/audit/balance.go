package audit

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/apiaudit/internal/domain"
)

// defaultDust is the fallback absolute tolerance for currencies missing from
// the configured dust table.
var defaultDust = decimal.RequireFromString("0.0000001")

// WalletView is the slice of the dataset the reconciler reads: the watermark
// snapshot and the updates buffered since it.
type WalletView interface {
	WalletSnapshot(key domain.WalletKey) (domain.Wallet, bool)
	WalletUpdates(key domain.WalletKey) []domain.WalletUpdate
}

// FeeCurrencyPolicy resolves the currency an order's fee is charged in. The
// exchange's documented rule (quote on sells, base on buys) is the default,
// but a different venue or fee schedule may invert it.
type FeeCurrencyPolicy func(o *domain.Order, pair domain.Pair) string

// DefaultFeeCurrency charges sells in quote currency and buys in base.
func DefaultFeeCurrency(o *domain.Order, pair domain.Pair) string {
	if o.AmountOrig.IsNegative() {
		return pair.Quote
	}
	return pair.Base
}

// BalanceReconciler checks that every wallet delta an order should have
// produced is present in the account's post-watermark ledger, within a
// per-currency dust tolerance.
type BalanceReconciler struct {
	view        WalletView
	dust        map[string]decimal.Decimal
	feeCurrency FeeCurrencyPolicy
	log         *zap.Logger
}

// NewBalanceReconciler builds a reconciler over the given wallet view.
func NewBalanceReconciler(view WalletView, dust map[string]decimal.Decimal, log *zap.Logger) *BalanceReconciler {
	return &BalanceReconciler{
		view:        view,
		dust:        dust,
		feeCurrency: DefaultFeeCurrency,
		log:         log,
	}
}

// WithFeeCurrencyPolicy overrides the fee currency rule.
func (r *BalanceReconciler) WithFeeCurrencyPolicy(p FeeCurrencyPolicy) *BalanceReconciler {
	r.feeCurrency = p
	return r
}

// VerifyWallets verifies that the order's executions are reflected in the
// wallet ledger. Orders whose lifetime produced several partial executions
// are verified fill by fill: the matching engine settles each execution
// separately, so their deltas appear as independent ledger entries.
func (r *BalanceReconciler) VerifyWallets(o *domain.Order, feeRate decimal.Decimal) error {
	fills, err := o.ExecutionTrail()
	if err != nil {
		return err
	}

	if len(fills) == 0 {
		return r.verifyFill(o, o.AmountOrig, o.ExecPrice(), feeRate)
	}

	consumed := decimal.Zero
	for _, f := range fills {
		if err := r.verifyFill(o, f.Amount, f.Price, feeRate); err != nil {
			return err
		}
		consumed = consumed.Add(f.Amount)
	}

	// Any remainder beyond the recorded sub-fills settled at the average
	// price in a final execution. A partially filled order still carries
	// its remainder, so there is no ledger entry to demand for it.
	remainder := o.AmountOrig.Sub(consumed)
	if !remainder.IsZero() && o.Amount.IsZero() {
		return r.verifyFill(o, remainder, o.ExecPrice(), feeRate)
	}

	return nil
}

func (r *BalanceReconciler) dustFor(currency string) decimal.Decimal {
	if d, ok := r.dust[currency]; ok {
		return d
	}
	return defaultDust
}

// verifyFill checks one execution of amount at price against the ledger.
func (r *BalanceReconciler) verifyFill(o *domain.Order, amount, price, feeRate decimal.Decimal) error {
	pair, err := o.Pair()
	if err != nil {
		return err
	}

	wType := o.Type.WalletType()
	feeCcy := r.feeCurrency(o, pair)
	notional := price.Mul(amount).Abs()

	// Expected per-currency changes for the execution itself.
	baseChange := amount
	quoteChange := notional
	if amount.IsPositive() {
		quoteChange = notional.Neg()
	}

	// Sells are charged on quote notional, buys on the acquired base.
	feeAmount := notional
	if amount.IsPositive() {
		feeAmount = amount.Abs()
	}
	feeChange := feeAmount.Mul(feeRate).Neg()

	baseFee, quoteFee := decimal.Zero, decimal.Zero
	if feeCcy == pair.Quote {
		quoteFee = feeChange
	} else {
		baseFee = feeChange
	}

	quoteKey := domain.WalletKey{Type: wType, Currency: pair.Quote}
	baseKey := domain.WalletKey{Type: wType, Currency: pair.Base}
	feeKey := domain.WalletKey{Type: wType, Currency: feeCcy}

	for _, key := range []domain.WalletKey{quoteKey, baseKey, feeKey} {
		if _, ok := r.view.WalletSnapshot(key); !ok {
			return Setupf("missing wallet snapshot for %s", key)
		}
	}

	if r.log != nil {
		r.log.Debug("verify wallet deltas",
			zap.String("order", o.String()),
			zap.String("base_change", baseChange.String()),
			zap.String("quote_change", quoteChange.String()),
			zap.String("base_fee", baseFee.String()),
			zap.String("quote_fee", quoteFee.String()))
	}

	var unmatched []string
	unmatched = append(unmatched, r.scanLedger(quoteKey, quoteChange, quoteFee)...)
	unmatched = append(unmatched, r.scanLedger(baseKey, baseChange, baseFee)...)

	if len(unmatched) > 0 {
		return &WalletMismatch{Order: o.String(), Unmatched: unmatched}
	}

	return nil
}

// scanLedger searches the key's post-watermark updates for one entry matching
// the order change and, independently, one matching the fee change. A ledger
// entry satisfies at most one expectation. Zero fee changes need no entry.
func (r *BalanceReconciler) scanLedger(key domain.WalletKey, orderChange, feeChange decimal.Decimal) []string {
	dust := r.dustFor(key.Currency)
	updates := r.view.WalletUpdates(key)

	orderFound := false
	feeFound := feeChange.IsZero()

	for _, wu := range updates {
		if orderFound && feeFound {
			break
		}

		if !orderFound && wu.Delta.Sub(orderChange).Abs().LessThan(dust) {
			orderFound = true
			continue
		}

		if !feeFound && wu.Delta.Sub(feeChange).Abs().LessThan(dust) {
			feeFound = true
		}
	}

	var unmatched []string
	if !orderFound {
		unmatched = append(unmatched, fmt.Sprintf("order delta %s on %s", orderChange, key))
	}
	if !feeFound {
		unmatched = append(unmatched, fmt.Sprintf("fee delta %s on %s", feeChange, key))
	}
	return unmatched
}
