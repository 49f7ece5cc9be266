// Package dataset maintains an up-to-date view of one account's exchange
// state, synchronised from the push feed. It is the single ingestion point
// for the account's packets: wallets, order books, orders and tickers.
package dataset

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/domain"
)

// Dataset aggregates one account's streamed state. All mutation happens in
// the On* ingestion handlers, driven by a single transport reader; the
// verification layer only ever sees copies or immutable snapshots.
type Dataset struct {
	label string
	log   *zap.Logger

	mu sync.RWMutex

	// walletSnapshot is the reconciliation watermark; walletUpdates holds
	// everything received since it, per key.
	walletSnapshot map[domain.WalletKey]domain.Wallet
	walletUpdates  map[domain.WalletKey][]domain.WalletUpdate
	seq            uint64

	orders      map[int64]*domain.Order
	ordersByCID map[int64]*domain.Order

	books         map[string]*domain.OrderBook
	bookSnapshots map[string]*domain.OrderBook
	tickers       map[string]domain.Ticker

	tickerWaiters map[string][]chan struct{}
	bookWaiters   map[string][]chan struct{}

	// cid allocates client order ids local to this dataset so parallel
	// runs cannot collide through process-wide state.
	cid int64
}

// New creates an empty dataset for the labeled account (maker or taker).
func New(label string, log *zap.Logger) *Dataset {
	d := &Dataset{
		label: label,
		log:   log.Named("dataset." + label),
		cid:   time.Now().UnixMilli(),
	}
	d.reset()
	return d
}

func (d *Dataset) reset() {
	d.walletSnapshot = make(map[domain.WalletKey]domain.Wallet)
	d.walletUpdates = make(map[domain.WalletKey][]domain.WalletUpdate)
	d.orders = make(map[int64]*domain.Order)
	d.ordersByCID = make(map[int64]*domain.Order)
	d.books = make(map[string]*domain.OrderBook)
	d.bookSnapshots = make(map[string]*domain.OrderBook)
	d.tickers = make(map[string]domain.Ticker)
	d.tickerWaiters = make(map[string][]chan struct{})
	d.bookWaiters = make(map[string][]chan struct{})
}

// Reset drops all account state. Called when the subscription is torn down;
// a fresh snapshot packet always precedes further updates.
func (d *Dataset) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	d.log.Debug("dataset reset")
}

// Label returns the account label.
func (d *Dataset) Label() string {
	return d.label
}

// NextClientID allocates a correlation id for a locally constructed order.
func (d *Dataset) NextClientID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cid++
	return d.cid
}

// OnWalletSnapshot replaces all ledgers with the snapshot entries. This is
// the only way a ledger acquires its first value.
func (d *Dataset) OnWalletSnapshot(entries []domain.Wallet) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.walletSnapshot = make(map[domain.WalletKey]domain.Wallet, len(entries))
	d.walletUpdates = make(map[domain.WalletKey][]domain.WalletUpdate, len(entries))

	for _, w := range entries {
		d.walletSnapshot[w.Key] = w
		d.log.Debug("recv wallet snapshot entry",
			zap.String("key", w.Key.String()),
			zap.String("balance", w.Balance.String()))
	}
}

// OnWalletUpdate appends a balance observation to the key's ledger. The key
// must have been seen in a snapshot first: accepting updates against an
// unknown baseline would fabricate deltas.
func (d *Dataset) OnWalletUpdate(w domain.Wallet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.lastBalance(w.Key)
	if !ok {
		return audit.Protocolf("wallet update for unknown key %s", w.Key)
	}

	d.seq++
	u := domain.WalletUpdate{
		Key:     w.Key,
		Balance: w.Balance,
		Delta:   w.Balance.Sub(prev),
		Seq:     d.seq,
	}
	d.walletUpdates[w.Key] = append(d.walletUpdates[w.Key], u)

	d.log.Debug("recv wallet update", zap.String("update", u.String()))
	return nil
}

// lastBalance returns the most recent balance for the key. Callers hold mu.
func (d *Dataset) lastBalance(key domain.WalletKey) (decimal.Decimal, bool) {
	if updates := d.walletUpdates[key]; len(updates) > 0 {
		return updates[len(updates)-1].Balance, true
	}
	if w, ok := d.walletSnapshot[key]; ok {
		return w.Balance, true
	}
	return decimal.Decimal{}, false
}

// RefreshWalletSnapshot defines a new reconciliation watermark: each key's
// history collapses to its most recent entry and the update buffer empties,
// so one scenario's deltas cannot leak into the next scenario's search
// window. Calling it twice in a row is a no-op the second time.
func (d *Dataset) RefreshWalletSnapshot() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, updates := range d.walletUpdates {
		if len(updates) == 0 {
			continue
		}
		last := updates[len(updates)-1]
		d.walletSnapshot[key] = domain.Wallet{Key: key, Balance: last.Balance}
	}
	d.walletUpdates = make(map[domain.WalletKey][]domain.WalletUpdate, len(d.walletSnapshot))

	d.log.Debug("refreshed wallet snapshot")
}

// WalletSnapshot returns the watermark entry for the key.
func (d *Dataset) WalletSnapshot(key domain.WalletKey) (domain.Wallet, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.walletSnapshot[key]
	return w, ok
}

// WalletUpdates returns a copy of the post-watermark updates for the key.
func (d *Dataset) WalletUpdates(key domain.WalletKey) []domain.WalletUpdate {
	d.mu.RLock()
	defer d.mu.RUnlock()

	updates := d.walletUpdates[key]
	if len(updates) == 0 {
		return nil
	}
	out := make([]domain.WalletUpdate, len(updates))
	copy(out, updates)
	return out
}

// OnOrderBookSnapshot replaces the live book for the symbol outright and
// wakes anyone waiting for the symbol's first book.
func (d *Dataset) OnOrderBookSnapshot(symbol string, levels []domain.Level) {
	d.mu.Lock()
	d.books[symbol] = domain.NewOrderBook(levels)
	waiters := d.bookWaiters[symbol]
	delete(d.bookWaiters, symbol)
	d.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}

	d.log.Debug("recv order book snapshot",
		zap.String("symbol", symbol), zap.Int("levels", len(levels)))
}

// OnOrderBookUpdate mutates one price level of the symbol's live book. The
// book must exist via a prior snapshot.
func (d *Dataset) OnOrderBookUpdate(symbol string, level domain.Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	book, ok := d.books[symbol]
	if !ok {
		return audit.Protocolf("order book update for %s before snapshot", symbol)
	}
	book.Update(level)
	return nil
}

// SnapshotOrderBook clones the symbol's live book into the before-slot used
// by book delta verification. Cloning, not aliasing: later updates to the
// live book cannot rewrite a taken snapshot.
func (d *Dataset) SnapshotOrderBook(symbol string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if book, ok := d.books[symbol]; ok {
		d.bookSnapshots[symbol] = book.Clone()
	}
}

// SnapshotOrderBooks snapshots every live book.
func (d *Dataset) SnapshotOrderBooks() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for symbol, book := range d.books {
		d.bookSnapshots[symbol] = book.Clone()
	}
}

// RefreshSnapshots re-watermarks wallets and books between scenarios.
func (d *Dataset) RefreshSnapshots() {
	d.RefreshWalletSnapshot()
	d.SnapshotOrderBooks()
}

// OrderBook returns a copy of the symbol's live book.
func (d *Dataset) OrderBook(symbol string) (*domain.OrderBook, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	book, ok := d.books[symbol]
	if !ok {
		return nil, false
	}
	return book.Clone(), true
}

// OrderBookSnapshot returns a copy of the symbol's snapshotted book.
func (d *Dataset) OrderBookSnapshot(symbol string) (*domain.OrderBook, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	book, ok := d.bookSnapshots[symbol]
	if !ok {
		return nil, false
	}
	return book.Clone(), true
}

// MidPrice returns the symbol's mid price, or zero when the book is missing
// or one-sided. Callers substitute their configured fallback price.
func (d *Dataset) MidPrice(symbol string) decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()

	book, ok := d.books[symbol]
	if !ok {
		return decimal.Zero
	}
	return book.MidPrice()
}

// LastPrice returns the symbol's last traded price, or zero before the first
// ticker.
func (d *Dataset) LastPrice(symbol string) decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tickers[symbol].LastPrice
}

// OnTicker replaces the cached ticker and wakes anyone waiting for the
// symbol's first ticker.
func (d *Dataset) OnTicker(symbol string, t domain.Ticker) {
	d.mu.Lock()
	t.Symbol = symbol
	d.tickers[symbol] = t
	waiters := d.tickerWaiters[symbol]
	delete(d.tickerWaiters, symbol)
	d.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}

	d.log.Debug("recv ticker",
		zap.String("symbol", symbol), zap.String("last", t.LastPrice.String()))
}

// OnOrderSnapshot resets the order registry to the snapshot contents.
func (d *Dataset) OnOrderSnapshot(orders []*domain.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.orders = make(map[int64]*domain.Order, len(orders))
	d.ordersByCID = make(map[int64]*domain.Order, len(orders))
	for _, o := range orders {
		d.storeOrder(o)
	}
}

// OnOrderPacket upserts the most recent view of an order. The registry is a
// cache, not a ledger: no history is retained beyond the execution trail
// accumulated on the cached order.
func (d *Dataset) OnOrderPacket(o *domain.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.orders[o.ID]; ok {
		o.History = append([]domain.Fill(nil), prev.History...)
		// Record the amount consumed since the previous view as one
		// more execution.
		consumed := prev.Amount.Sub(o.Amount)
		if !consumed.IsZero() {
			o.History = append(o.History, domain.Fill{
				Status: o.Status,
				Price:  o.PriceAvg,
				Amount: consumed,
			})
		}
	}
	d.storeOrder(o)

	d.log.Debug("recv order packet", zap.String("order", o.String()))
}

// storeOrder indexes the order by id and client id. Callers hold mu.
func (d *Dataset) storeOrder(o *domain.Order) {
	d.orders[o.ID] = o
	if o.CID != 0 {
		d.ordersByCID[o.CID] = o
	}
}

// ReconcileOrder looks up the registry by the order's client id (the
// exchange id is unknown until the first round-trip) and copies the
// server-observed state onto the caller's order. Reports whether a cached
// view was found.
func (d *Dataset) ReconcileOrder(o *domain.Order) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cached, ok := d.ordersByCID[o.CID]
	if !ok {
		return false
	}

	history := append([]domain.Fill(nil), cached.History...)
	*o = *cached
	o.History = history
	return true
}

// OpenOrders returns the orders not yet executed or canceled.
func (d *Dataset) OpenOrders() []*domain.Order {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var open []*domain.Order
	for _, o := range d.orders {
		if o.Open() {
			clone := *o
			clone.History = append([]domain.Fill(nil), o.History...)
			open = append(open, &clone)
		}
	}
	return open
}

// AwaitTicker returns a channel closed once the symbol has a ticker. The
// channel is closed immediately when one is already cached. Waiters are not
// cancellable; callers impose their own timeout around the wait.
func (d *Dataset) AwaitTicker(symbol string) <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan struct{})
	if _, ok := d.tickers[symbol]; ok {
		close(ch)
		return ch
	}
	d.tickerWaiters[symbol] = append(d.tickerWaiters[symbol], ch)
	return ch
}

// AwaitOrderBook returns a channel closed once the symbol has a book.
func (d *Dataset) AwaitOrderBook(symbol string) <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan struct{})
	if _, ok := d.books[symbol]; ok {
		close(ch)
		return ch
	}
	d.bookWaiters[symbol] = append(d.bookWaiters[symbol], ch)
	return ch
}
