// Package transport connects one account to the exchange's push feed,
// decodes its packets and forwards them to the account's dataset. The
// verification core never touches the wire; this adapter is its only feed.
package transport

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/dataset"
	"github.com/vadiminshakov/apiaudit/internal/domain"
)

// Config transport connection parameters for one account.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
}

type subscription struct {
	channel string
	symbol  string
}

// Client is the ws feed/command adapter for one account.
type Client struct {
	cfg  Config
	data *dataset.Dataset
	log  *zap.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu   sync.RWMutex
	subs map[int64]subscription

	authOnce  sync.Once
	authReady chan struct{}
}

// New creates a client feeding the given dataset.
func New(cfg Config, data *dataset.Dataset, log *zap.Logger) *Client {
	return &Client{
		cfg:       cfg,
		data:      data,
		log:       log.Named("ws." + data.Label()),
		subs:      make(map[int64]subscription),
		authReady: make(chan struct{}),
	}
}

// Connect dials the feed.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", c.cfg.URL)
	}
	c.conn = conn
	return nil
}

// Auth submits the authentication request and waits for the feed to confirm.
// The account channel (wallets, orders) only streams after confirmation.
func (c *Client) Auth(ctx context.Context) error {
	nonce := fmt.Sprintf("%d", time.Now().UnixNano()/1000)
	payload := "AUTH" + nonce

	mac := hmac.New(sha512.New384, []byte(c.cfg.APISecret))
	mac.Write([]byte(payload))

	req := map[string]any{
		"event":       "auth",
		"apiKey":      c.cfg.APIKey,
		"authNonce":   nonce,
		"authPayload": payload,
		"authSig":     hex.EncodeToString(mac.Sum(nil)),
	}
	if err := c.send(req); err != nil {
		return errors.Wrap(err, "send auth")
	}

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "await auth confirmation")
	case <-c.authReady:
		return nil
	}
}

// SubscribeTicker subscribes the public ticker channel for the symbol.
func (c *Client) SubscribeTicker(symbol string) error {
	return c.send(map[string]any{"event": "subscribe", "channel": "ticker", "symbol": symbol})
}

// SubscribeOrderBook subscribes the public book channel for the symbol.
func (c *Client) SubscribeOrderBook(symbol string) error {
	return c.send(map[string]any{"event": "subscribe", "channel": "book", "symbol": symbol})
}

// SubmitOrder sends a new-order command. The exchange echoes the accepted
// order back on the account channel, keyed by the client id.
func (c *Client) SubmitOrder(_ context.Context, o *domain.Order) error {
	payload := map[string]any{
		"cid":    o.CID,
		"type":   string(o.Type),
		"symbol": o.Symbol,
		"amount": o.AmountOrig.String(),
	}
	if !o.Price.IsZero() {
		payload["price"] = o.Price.String()
	}
	if !o.PriceAuxLimit.IsZero() {
		payload["price_aux_limit"] = o.PriceAuxLimit.String()
	}
	if !o.PriceTrailing.IsZero() {
		payload["price_trailing"] = o.PriceTrailing.String()
	}

	var flags int64
	if o.OCO {
		flags |= flagOCO
		payload["price_oco_stop"] = o.PriceAuxLimit.String()
	}
	if o.Hidden {
		flags |= flagHidden
	}
	if o.PostOnly {
		flags |= flagPostOnly
	}
	if flags != 0 {
		payload["flags"] = flags
	}

	c.log.Debug("submit order", zap.String("order", o.String()))
	return c.send([]any{0, "on", nil, payload})
}

// CancelOrder sends a cancel command for one order.
func (c *Client) CancelOrder(_ context.Context, o *domain.Order) error {
	c.log.Debug("cancel order", zap.Int64("id", o.ID), zap.Int64("cid", o.CID))
	return c.send([]any{0, "oc", nil, map[string]any{"id": o.ID}})
}

// CancelAll sends a multi-cancel for the given orders.
func (c *Client) CancelAll(_ context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	c.log.Debug("cancel all orders", zap.Int("count", len(ids)))
	return c.send([]any{0, "oc_multi", nil, map[string]any{"id": ids}})
}

// Close tears the connection down.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) send(v any) error {
	if c.conn == nil {
		return errors.New("transport is not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Run reads the feed until the context ends, dispatching every decoded
// packet into the dataset. There is exactly one reader per account, so all
// dataset mutation is single-writer.
func (c *Client) Run(ctx context.Context) error {
	if c.conn == nil {
		return errors.New("transport is not connected")
	}

	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "read frame")
		}
		if err := c.handleFrame(raw); err != nil {
			if isProtocolViolation(err) {
				return errors.Wrap(err, "feed out of sync")
			}
			c.log.Warn("frame dropped", zap.Error(err))
		}
	}
}

// isProtocolViolation separates feed/aggregator desync, which poisons every
// assertion downstream and must stop the run, from a merely malformed frame
// that can be dropped.
func isProtocolViolation(err error) bool {
	var perr *audit.ProtocolError
	return errors.As(err, &perr)
}

func (c *Client) handleFrame(raw []byte) error {
	arr, event, err := decodeFrame(raw)
	if err != nil {
		return err
	}
	if event != nil {
		c.handleEvent(event)
		return nil
	}
	if len(arr) < 2 {
		return errors.Errorf("array frame too short: %d elements", len(arr))
	}

	chanID := toInt64(arr[0])
	if chanID == 0 {
		return c.handleAccountMessage(arr)
	}
	return c.handleChannelMessage(chanID, arr)
}

func (c *Client) handleEvent(event map[string]any) {
	switch toString(event["event"]) {
	case "auth":
		if toString(event["status"]) == "OK" {
			c.authOnce.Do(func() { close(c.authReady) })
			return
		}
		c.log.Error("auth rejected", zap.Any("event", event))
	case "subscribed":
		chanID := toInt64(event["chanId"])
		sub := subscription{
			channel: toString(event["channel"]),
			symbol:  toString(event["symbol"]),
		}
		c.mu.Lock()
		c.subs[chanID] = sub
		c.mu.Unlock()
		c.log.Debug("subscribed",
			zap.Int64("chan", chanID),
			zap.String("channel", sub.channel),
			zap.String("symbol", sub.symbol))
	case "unsubscribed":
		chanID := toInt64(event["chanId"])
		c.mu.Lock()
		delete(c.subs, chanID)
		c.mu.Unlock()
	case "error":
		c.log.Error("feed error", zap.Any("event", event))
	}
}

func (c *Client) handleAccountMessage(arr []any) error {
	msgType := toString(arr[1])
	if msgType == "hb" || len(arr) < 3 {
		return nil
	}
	body, _ := arr[2].([]any)

	switch msgType {
	case "ws":
		entries := make([]domain.Wallet, 0, len(body))
		for _, item := range body {
			rawWallet, ok := item.([]any)
			if !ok {
				continue
			}
			w, err := parseWallet(rawWallet)
			if err != nil {
				return err
			}
			entries = append(entries, w)
		}
		c.data.OnWalletSnapshot(entries)
	case "wu":
		w, err := parseWallet(body)
		if err != nil {
			return err
		}
		return c.data.OnWalletUpdate(w)
	case "os":
		orders := make([]*domain.Order, 0, len(body))
		for _, item := range body {
			rawOrder, ok := item.([]any)
			if !ok {
				continue
			}
			o, err := parseOrder(rawOrder)
			if err != nil {
				return err
			}
			orders = append(orders, o)
		}
		c.data.OnOrderSnapshot(orders)
	case "on", "ou", "oc":
		o, err := parseOrder(body)
		if err != nil {
			return err
		}
		c.data.OnOrderPacket(o)
	}

	return nil
}

func (c *Client) handleChannelMessage(chanID int64, arr []any) error {
	c.mu.RLock()
	sub, ok := c.subs[chanID]
	c.mu.RUnlock()
	if !ok {
		return errors.Errorf("message on unknown channel %d", chanID)
	}
	if toString(arr[1]) == "hb" {
		return nil
	}

	body, ok := arr[1].([]any)
	if !ok {
		return errors.Errorf("unexpected payload on channel %d", chanID)
	}

	switch sub.channel {
	case "ticker":
		t, err := parseTicker(body)
		if err != nil {
			return err
		}
		c.data.OnTicker(sub.symbol, t)
	case "book":
		if len(body) > 0 {
			if _, nested := body[0].([]any); nested {
				levels := make([]domain.Level, 0, len(body))
				for _, item := range body {
					rawLevel, ok := item.([]any)
					if !ok {
						continue
					}
					l, err := parseLevel(rawLevel)
					if err != nil {
						return err
					}
					levels = append(levels, l)
				}
				c.data.OnOrderBookSnapshot(sub.symbol, levels)
				return nil
			}
		}
		l, err := parseLevel(body)
		if err != nil {
			return err
		}
		return c.data.OnOrderBookUpdate(sub.symbol, l)
	}

	return nil
}
