package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderType order type as reported by the exchange. EXCHANGE-prefixed types
// settle against the exchange wallet, the rest against the margin wallet.
type OrderType string

const (
	OrderTypeLimit                OrderType = "LIMIT"
	OrderTypeMarket               OrderType = "MARKET"
	OrderTypeStop                 OrderType = "STOP"
	OrderTypeStopLimit            OrderType = "STOP LIMIT"
	OrderTypeFOK                  OrderType = "FOK"
	OrderTypeTrailingStop         OrderType = "TRAILING STOP"
	OrderTypeExchangeLimit        OrderType = "EXCHANGE LIMIT"
	OrderTypeExchangeMarket       OrderType = "EXCHANGE MARKET"
	OrderTypeExchangeStop         OrderType = "EXCHANGE STOP"
	OrderTypeExchangeStopLimit    OrderType = "EXCHANGE STOP LIMIT"
	OrderTypeExchangeFOK          OrderType = "EXCHANGE FOK"
	OrderTypeExchangeTrailingStop OrderType = "EXCHANGE TRAILING STOP"
)

// WalletType resolves the wallet class this order type settles against.
func (t OrderType) WalletType() WalletType {
	if strings.Contains(string(t), "EXCHANGE") {
		return WalletTypeExchange
	}
	return WalletTypeMargin
}

// Fill one (possibly partial) execution of an order.
type Fill struct {
	Status string
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Order is the harness view of an exchange order. Amount fields are signed:
// positive is a buy, negative a sell. Amount is the remaining amount, its
// magnitude is non-increasing over the order's life and reaches zero exactly
// once, at terminal fill.
type Order struct {
	ID            int64
	GID           int64
	CID           int64
	Symbol        string
	Type          OrderType
	Status        string
	Amount        decimal.Decimal
	AmountOrig    decimal.Decimal
	Price         decimal.Decimal
	PriceAvg      decimal.Decimal
	PriceAuxLimit decimal.Decimal
	PriceTrailing decimal.Decimal
	PlacedID      int64
	OCO           bool
	Hidden        bool
	PostOnly      bool

	// History holds the executions observed for this order, populated
	// incrementally from order packets. When empty, ExecutionTrail falls
	// back to parsing the status string.
	History []Fill
}

// String serializes the order state for assertion failure messages.
func (o *Order) String() string {
	return fmt.Sprintf("order{id=%d cid=%d %s %s amount=%s/%s price=%s avg=%s status=%q}",
		o.ID, o.CID, o.Symbol, o.Type, o.Amount, o.AmountOrig, o.Price, o.PriceAvg, o.Status)
}

// IsBuy reports whether the order buys base currency.
func (o *Order) IsBuy() bool {
	return o.AmountOrig.IsPositive()
}

// IsSell reports whether the order sells base currency.
func (o *Order) IsSell() bool {
	return o.AmountOrig.IsNegative()
}

// Pair decomposes the order's symbol.
func (o *Order) Pair() (Pair, error) {
	return PairFromSymbol(o.Symbol)
}

// Canceled reports whether the status carries the cancellation marker.
func (o *Order) Canceled() bool {
	return strings.Contains(o.Status, "CANCELED")
}

// Executed reports whether the status carries the execution marker.
func (o *Order) Executed() bool {
	return strings.Contains(o.Status, "EXECUTED")
}

// Open reports whether the order still rests on the book.
func (o *Order) Open() bool {
	return !o.Canceled() && !o.Executed()
}

// ExecPrice returns the price executions should be valued at: the average
// fill price when known, the aux limit price for OCO orders, else the
// nominal order price.
func (o *Order) ExecPrice() decimal.Decimal {
	if !o.PriceAvg.IsZero() {
		return o.PriceAvg
	}
	if o.OCO {
		return o.PriceAuxLimit
	}
	return o.Price
}

// statusFillRe matches one chained-execution segment, e.g.
// "PARTIALLY FILLED @ 101.5(2.0)". The exchange encodes historical
// sub-fills by appending ": was <STATE>@price(amount)" to the status.
var statusFillRe = regexp.MustCompile(`@\s*(-?[0-9]+(?:\.[0-9]+)?)\((-?[0-9]+(?:\.[0-9]+)?)\)`)

// ExecutionTrail returns the order's executions. It prefers the explicit
// History populated from packets and falls back to decoding the chained
// status string for feeds that still emit only the text form.
func (o *Order) ExecutionTrail() ([]Fill, error) {
	if len(o.History) > 0 {
		trail := make([]Fill, len(o.History))
		copy(trail, o.History)
		return trail, nil
	}
	return ParseStatusTrail(o.Status)
}

// ParseStatusTrail decodes sub-fills chained into a status string of the form
// "<STATE>: was <STATE>@price(amount): was <STATE>". Segments without a
// price(amount) component carry no execution and are skipped.
func ParseStatusTrail(status string) ([]Fill, error) {
	if status == "" {
		return nil, nil
	}

	var fills []Fill
	for _, segment := range strings.Split(status, ": was ") {
		m := statusFillRe.FindStringSubmatch(segment)
		if m == nil {
			continue
		}

		price, err := decimal.NewFromString(m[1])
		if err != nil {
			return nil, errors.Wrapf(err, "bad price in status segment %q", segment)
		}
		amount, err := decimal.NewFromString(m[2])
		if err != nil {
			return nil, errors.Wrapf(err, "bad amount in status segment %q", segment)
		}

		state := strings.TrimSpace(segment[:strings.Index(segment, "@")])
		fills = append(fills, Fill{Status: state, Price: price, Amount: amount})
	}

	return fills, nil
}
