package audit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/apiaudit/internal/domain"
)

// fakeWalletView is an in-memory WalletView for reconciler tests.
type fakeWalletView struct {
	snapshots map[domain.WalletKey]domain.Wallet
	updates   map[domain.WalletKey][]domain.WalletUpdate
}

func newFakeWalletView() *fakeWalletView {
	return &fakeWalletView{
		snapshots: make(map[domain.WalletKey]domain.Wallet),
		updates:   make(map[domain.WalletKey][]domain.WalletUpdate),
	}
}

func (f *fakeWalletView) snapshot(wType domain.WalletType, ccy, balance string) {
	key := domain.WalletKey{Type: wType, Currency: ccy}
	f.snapshots[key] = domain.Wallet{Key: key, Balance: dec(balance)}
}

func (f *fakeWalletView) delta(wType domain.WalletType, ccy, delta string) {
	key := domain.WalletKey{Type: wType, Currency: ccy}
	f.updates[key] = append(f.updates[key], domain.WalletUpdate{Key: key, Delta: dec(delta)})
}

func (f *fakeWalletView) WalletSnapshot(key domain.WalletKey) (domain.Wallet, bool) {
	w, ok := f.snapshots[key]
	return w, ok
}

func (f *fakeWalletView) WalletUpdates(key domain.WalletKey) []domain.WalletUpdate {
	return f.updates[key]
}

func exchangeSell(amount, price string) *domain.Order {
	return &domain.Order{
		Symbol:     "tETHUSD",
		Type:       domain.OrderTypeExchangeLimit,
		Status:     "EXECUTED",
		Price:      dec(price),
		AmountOrig: dec(amount),
	}
}

func exchangeBuy(amount, price string) *domain.Order {
	return &domain.Order{
		Symbol:     "tETHUSD",
		Type:       domain.OrderTypeExchangeLimit,
		Status:     "EXECUTED",
		Price:      dec(price),
		AmountOrig: dec(amount),
	}
}

func TestVerifyWalletsSell(t *testing.T) {
	// sell 5 ETH at 100 USD: +500 USD, -5 ETH, fee 0.2% on quote notional
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	view.snapshot(domain.WalletTypeExchange, "ETH", "50")
	view.delta(domain.WalletTypeExchange, "USD", "500")
	view.delta(domain.WalletTypeExchange, "USD", "-1")
	view.delta(domain.WalletTypeExchange, "ETH", "-5")

	r := NewBalanceReconciler(view, nil, zap.NewNop())
	require.NoError(t, r.VerifyWallets(exchangeSell("-5", "100"), dec("0.002")))
}

func TestVerifyWalletsBuyFeeInBase(t *testing.T) {
	// buy 5 ETH at 100 USD: -500 USD, +5 ETH, fee 0.2% of the acquired base
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	view.snapshot(domain.WalletTypeExchange, "ETH", "50")
	view.delta(domain.WalletTypeExchange, "USD", "-500")
	view.delta(domain.WalletTypeExchange, "ETH", "5")
	view.delta(domain.WalletTypeExchange, "ETH", "-0.01")

	r := NewBalanceReconciler(view, nil, zap.NewNop())
	require.NoError(t, r.VerifyWallets(exchangeBuy("5", "100"), dec("0.002")))
}

func TestVerifyWalletsMissingDelta(t *testing.T) {
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	view.snapshot(domain.WalletTypeExchange, "ETH", "50")
	view.delta(domain.WalletTypeExchange, "USD", "500")
	view.delta(domain.WalletTypeExchange, "ETH", "-5")
	// fee entry missing

	r := NewBalanceReconciler(view, nil, zap.NewNop())
	err := r.VerifyWallets(exchangeSell("-5", "100"), dec("0.002"))
	require.Error(t, err)
	require.True(t, IsAssertionFailure(err))

	var mismatch *WalletMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Len(t, mismatch.Unmatched, 1)
}

func TestVerifyWalletsFeeNeedsOwnEntry(t *testing.T) {
	// the fee expectation needs its own ledger entry, the proceeds entry
	// cannot stand in for it
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	view.snapshot(domain.WalletTypeExchange, "ETH", "50")
	view.delta(domain.WalletTypeExchange, "USD", "1")
	view.delta(domain.WalletTypeExchange, "ETH", "-1")

	// sell 1 ETH at 1 USD with a 100% fee: order delta +1 USD, fee -1 USD
	r := NewBalanceReconciler(view, nil, zap.NewNop())
	err := r.VerifyWallets(exchangeSell("-1", "1"), dec("1"))
	require.Error(t, err)
}

func TestVerifyWalletsMissingSnapshotIsSetupError(t *testing.T) {
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	// no ETH snapshot: reconciliation cannot even start

	r := NewBalanceReconciler(view, nil, zap.NewNop())
	err := r.VerifyWallets(exchangeSell("-5", "100"), dec("0.002"))
	require.Error(t, err)
	require.False(t, IsAssertionFailure(err))

	var setup *SetupError
	require.ErrorAs(t, err, &setup)
}

func TestVerifyWalletsMarginOrderUsesMarginWallet(t *testing.T) {
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeMargin, "USD", "10000")
	view.snapshot(domain.WalletTypeMargin, "ETH", "50")
	view.delta(domain.WalletTypeMargin, "USD", "500")
	view.delta(domain.WalletTypeMargin, "USD", "-1")
	view.delta(domain.WalletTypeMargin, "ETH", "-5")

	o := exchangeSell("-5", "100")
	o.Type = domain.OrderTypeLimit

	r := NewBalanceReconciler(view, nil, zap.NewNop())
	require.NoError(t, r.VerifyWallets(o, dec("0.002")))
}

func TestVerifyWalletsChainedExecutions(t *testing.T) {
	// sell 5 total: sub-fill of 2 at 101.5, remainder of 3 at the avg 102
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	view.snapshot(domain.WalletTypeExchange, "ETH", "50")
	view.delta(domain.WalletTypeExchange, "ETH", "-2")
	view.delta(domain.WalletTypeExchange, "USD", "203")
	view.delta(domain.WalletTypeExchange, "USD", "-0.406")
	view.delta(domain.WalletTypeExchange, "ETH", "-3")
	view.delta(domain.WalletTypeExchange, "USD", "306")
	view.delta(domain.WalletTypeExchange, "USD", "-0.612")

	o := exchangeSell("-5", "100")
	o.Status = "EXECUTED: was PARTIALLY FILLED@101.5(-2.0): was ACTIVE"
	o.PriceAvg = dec("102")

	r := NewBalanceReconciler(view, nil, zap.NewNop())
	require.NoError(t, r.VerifyWallets(o, dec("0.002")))
}

func TestVerifyWalletsCustomDust(t *testing.T) {
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	view.snapshot(domain.WalletTypeExchange, "ETH", "50")
	view.delta(domain.WalletTypeExchange, "USD", "499.5")
	view.delta(domain.WalletTypeExchange, "USD", "-1")
	view.delta(domain.WalletTypeExchange, "ETH", "-5")

	dust := map[string]decimal.Decimal{"USD": dec("1")}
	r := NewBalanceReconciler(view, dust, zap.NewNop())
	require.NoError(t, r.VerifyWallets(exchangeSell("-5", "100"), dec("0.002")),
		"a widened USD tolerance absorbs the 0.5 discrepancy")

	strict := NewBalanceReconciler(view, nil, zap.NewNop())
	require.Error(t, strict.VerifyWallets(exchangeSell("-5", "100"), dec("0.002")))
}

func TestFeeCurrencyPolicyOverride(t *testing.T) {
	// venue charging every fee in quote currency regardless of side
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	view.snapshot(domain.WalletTypeExchange, "ETH", "50")
	view.delta(domain.WalletTypeExchange, "USD", "-500")
	view.delta(domain.WalletTypeExchange, "USD", "-0.01")
	view.delta(domain.WalletTypeExchange, "ETH", "5")

	r := NewBalanceReconciler(view, nil, zap.NewNop()).
		WithFeeCurrencyPolicy(func(o *domain.Order, pair domain.Pair) string { return pair.Quote })

	o := exchangeBuy("5", "100")
	require.NoError(t, r.VerifyWallets(o, dec("0.002")))
}

func TestVerifyWalletsPartialFillSkipsRemainder(t *testing.T) {
	// maker sold 2 of 4: only the executed slice has settled, the open
	// remainder has no ledger entry to demand
	view := newFakeWalletView()
	view.snapshot(domain.WalletTypeExchange, "USD", "10000")
	view.snapshot(domain.WalletTypeExchange, "ETH", "50")
	view.delta(domain.WalletTypeExchange, "ETH", "-2")
	view.delta(domain.WalletTypeExchange, "USD", "200")
	view.delta(domain.WalletTypeExchange, "USD", "-0.4")

	o := exchangeSell("-4", "100")
	o.Status = "PARTIALLY FILLED"
	o.Amount = dec("-2")
	o.History = []domain.Fill{{Amount: dec("-2"), Price: dec("100")}}

	r := NewBalanceReconciler(view, nil, zap.NewNop())
	require.NoError(t, r.VerifyWallets(o, dec("0.002")))
}
