package dataset

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	return New("maker", zap.NewNop())
}

func usdKey() domain.WalletKey {
	return domain.WalletKey{Type: domain.WalletTypeExchange, Currency: "USD"}
}

func TestWalletUpdateBeforeSnapshot(t *testing.T) {
	d := newTestDataset(t)

	err := d.OnWalletUpdate(domain.Wallet{Key: usdKey(), Balance: dec("100")})
	require.Error(t, err)

	var protocol *audit.ProtocolError
	require.ErrorAs(t, err, &protocol, "updates against an unknown baseline fabricate deltas")
}

func TestWalletDeltaChain(t *testing.T) {
	d := newTestDataset(t)
	d.OnWalletSnapshot([]domain.Wallet{{Key: usdKey(), Balance: dec("1000")}})

	require.NoError(t, d.OnWalletUpdate(domain.Wallet{Key: usdKey(), Balance: dec("1500")}))
	require.NoError(t, d.OnWalletUpdate(domain.Wallet{Key: usdKey(), Balance: dec("1499")}))

	updates := d.WalletUpdates(usdKey())
	require.Len(t, updates, 2)

	// first delta against the snapshot, second against the previous update
	require.True(t, updates[0].Delta.Equal(dec("500")))
	require.True(t, updates[1].Delta.Equal(dec("-1")))
	require.Greater(t, updates[1].Seq, updates[0].Seq)
}

func TestRefreshWalletSnapshotCollapsesHistory(t *testing.T) {
	d := newTestDataset(t)
	d.OnWalletSnapshot([]domain.Wallet{{Key: usdKey(), Balance: dec("1000")}})
	require.NoError(t, d.OnWalletUpdate(domain.Wallet{Key: usdKey(), Balance: dec("1500")}))

	d.RefreshWalletSnapshot()

	w, ok := d.WalletSnapshot(usdKey())
	require.True(t, ok)
	require.True(t, w.Balance.Equal(dec("1500")), "watermark moves to the latest observation")
	require.Empty(t, d.WalletUpdates(usdKey()))

	// refreshing again without new data changes nothing
	d.RefreshWalletSnapshot()
	w, ok = d.WalletSnapshot(usdKey())
	require.True(t, ok)
	require.True(t, w.Balance.Equal(dec("1500")))

	// deltas restart from the new watermark
	require.NoError(t, d.OnWalletUpdate(domain.Wallet{Key: usdKey(), Balance: dec("1400")}))
	updates := d.WalletUpdates(usdKey())
	require.Len(t, updates, 1)
	require.True(t, updates[0].Delta.Equal(dec("-100")))
}

func TestWalletSnapshotReplacesLedgers(t *testing.T) {
	d := newTestDataset(t)
	d.OnWalletSnapshot([]domain.Wallet{{Key: usdKey(), Balance: dec("1000")}})
	require.NoError(t, d.OnWalletUpdate(domain.Wallet{Key: usdKey(), Balance: dec("900")}))

	d.OnWalletSnapshot([]domain.Wallet{{Key: usdKey(), Balance: dec("5000")}})

	require.Empty(t, d.WalletUpdates(usdKey()), "a fresh snapshot resets every ledger")
	w, _ := d.WalletSnapshot(usdKey())
	require.True(t, w.Balance.Equal(dec("5000")))
}

func TestOrderBookUpdateBeforeSnapshot(t *testing.T) {
	d := newTestDataset(t)

	err := d.OnOrderBookUpdate("tETHUSD", domain.Level{Price: dec("100"), Count: 1, Amount: dec("1")})
	require.Error(t, err)

	var protocol *audit.ProtocolError
	require.ErrorAs(t, err, &protocol)
}

func TestOrderBookSnapshotIsolation(t *testing.T) {
	d := newTestDataset(t)
	d.OnOrderBookSnapshot("tETHUSD", []domain.Level{
		{Price: dec("99"), Count: 1, Amount: dec("3")},
		{Price: dec("101"), Count: 1, Amount: dec("-2")},
	})
	d.SnapshotOrderBook("tETHUSD")

	require.NoError(t, d.OnOrderBookUpdate("tETHUSD",
		domain.Level{Price: dec("99"), Count: 2, Amount: dec("7")}))

	snap, ok := d.OrderBookSnapshot("tETHUSD")
	require.True(t, ok)
	require.True(t, snap.Bids[0].Amount.Equal(dec("3")), "snapshot must not track live updates")

	live, ok := d.OrderBook("tETHUSD")
	require.True(t, ok)
	require.True(t, live.Bids[0].Amount.Equal(dec("7")))

	// returned books are copies: mutating them must not corrupt the dataset
	live.Bids[0].Amount = dec("0")
	again, _ := d.OrderBook("tETHUSD")
	require.True(t, again.Bids[0].Amount.Equal(dec("7")))
}

func TestMidPriceFallsBackToZero(t *testing.T) {
	d := newTestDataset(t)
	require.True(t, d.MidPrice("tETHUSD").IsZero())

	d.OnOrderBookSnapshot("tETHUSD", []domain.Level{
		{Price: dec("99"), Count: 1, Amount: dec("3")},
		{Price: dec("101"), Count: 1, Amount: dec("-2")},
	})
	require.True(t, d.MidPrice("tETHUSD").Equal(dec("100")))
}

func TestNextClientIDMonotonic(t *testing.T) {
	d := newTestDataset(t)
	a := d.NextClientID()
	b := d.NextClientID()
	require.Greater(t, b, a)

	// independent datasets allocate from independent counters
	other := New("taker", zap.NewNop())
	require.NotPanics(t, func() { other.NextClientID() })
}

func TestReconcileOrderByClientID(t *testing.T) {
	d := newTestDataset(t)

	local := &domain.Order{CID: 42, Symbol: "tETHUSD", Amount: dec("-5"), AmountOrig: dec("-5")}
	require.False(t, d.ReconcileOrder(local), "nothing cached yet")

	d.OnOrderPacket(&domain.Order{
		ID: 7, CID: 42, Symbol: "tETHUSD", Status: "ACTIVE",
		Amount: dec("-5"), AmountOrig: dec("-5"), Price: dec("100"),
	})

	require.True(t, d.ReconcileOrder(local))
	require.Equal(t, int64(7), local.ID, "server id folded onto the local order")
	require.Equal(t, "ACTIVE", local.Status)
}

func TestOrderPacketAccumulatesHistory(t *testing.T) {
	d := newTestDataset(t)

	d.OnOrderPacket(&domain.Order{
		ID: 7, CID: 42, Symbol: "tETHUSD", Status: "ACTIVE",
		Amount: dec("-5"), AmountOrig: dec("-5"),
	})
	d.OnOrderPacket(&domain.Order{
		ID: 7, CID: 42, Symbol: "tETHUSD", Status: "PARTIALLY FILLED",
		Amount: dec("-3"), AmountOrig: dec("-5"), PriceAvg: dec("101.5"),
	})
	d.OnOrderPacket(&domain.Order{
		ID: 7, CID: 42, Symbol: "tETHUSD", Status: "EXECUTED",
		Amount: dec("0"), AmountOrig: dec("-5"), PriceAvg: dec("102"),
	})

	o := &domain.Order{CID: 42}
	require.True(t, d.ReconcileOrder(o))
	require.Len(t, o.History, 2)

	require.True(t, o.History[0].Amount.Equal(dec("-2")), "first fill consumed 2")
	require.True(t, o.History[0].Price.Equal(dec("101.5")))
	require.True(t, o.History[1].Amount.Equal(dec("-3")), "second fill consumed the rest")
}

func TestOpenOrders(t *testing.T) {
	d := newTestDataset(t)

	d.OnOrderPacket(&domain.Order{ID: 1, Status: "ACTIVE", Amount: dec("1"), AmountOrig: dec("1")})
	d.OnOrderPacket(&domain.Order{ID: 2, Status: "CANCELED", Amount: dec("1"), AmountOrig: dec("1")})
	d.OnOrderPacket(&domain.Order{ID: 3, Status: "EXECUTED", Amount: dec("0"), AmountOrig: dec("1")})

	open := d.OpenOrders()
	require.Len(t, open, 1)
	require.Equal(t, int64(1), open[0].ID)
}

func TestAwaitOrderBook(t *testing.T) {
	d := newTestDataset(t)

	ch := d.AwaitOrderBook("tETHUSD")
	select {
	case <-ch:
		t.Fatal("waiter resolved before any snapshot")
	default:
	}

	d.OnOrderBookSnapshot("tETHUSD", []domain.Level{{Price: dec("99"), Count: 1, Amount: dec("3")}})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter not resolved by the snapshot")
	}

	// a book already present resolves immediately
	select {
	case <-d.AwaitOrderBook("tETHUSD"):
	default:
		t.Fatal("existing book should resolve the waiter at once")
	}
}

func TestAwaitTicker(t *testing.T) {
	d := newTestDataset(t)

	ch := d.AwaitTicker("tETHUSD")
	d.OnTicker("tETHUSD", domain.Ticker{LastPrice: dec("100")})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter not resolved by the ticker")
	}

	require.True(t, d.LastPrice("tETHUSD").Equal(dec("100")))
}

func TestOpenOrdersHistoryIsolated(t *testing.T) {
	d := newTestDataset(t)

	d.OnOrderPacket(&domain.Order{
		ID: 1, CID: 9, Status: "ACTIVE",
		Amount: dec("-5"), AmountOrig: dec("-5"),
	})
	d.OnOrderPacket(&domain.Order{
		ID: 1, CID: 9, Status: "PARTIALLY FILLED",
		Amount: dec("-3"), AmountOrig: dec("-5"), PriceAvg: dec("101.5"),
	})

	open := d.OpenOrders()
	require.Len(t, open, 1)
	require.Len(t, open[0].History, 1)

	open[0].History[0].Amount = dec("999")

	again := d.OpenOrders()
	require.True(t, again[0].History[0].Amount.Equal(dec("-2")),
		"caller mutation must not reach the registry")
}
