package transport

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/internal/domain"
)

// Order flag bits used by the wire protocol.
const (
	flagOCO      = 16384
	flagHidden   = 64
	flagPostOnly = 4096
)

// Indexes into the order wire array.
const (
	oIdxID        = 0
	oIdxGID       = 1
	oIdxCID       = 2
	oIdxSymbol    = 3
	oIdxAmount    = 6
	oIdxOrig      = 7
	oIdxType      = 8
	oIdxFlags     = 12
	oIdxStatus    = 13
	oIdxPrice     = 16
	oIdxAvg       = 17
	oIdxTrailing  = 18
	oIdxAuxLimit  = 19
	oIdxPlacedID  = 25
	orderArrayLen = 26
)

func decodeFrame(raw []byte) ([]any, map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil, errors.New("empty frame")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '{' {
		var event map[string]any
		if err := dec.Decode(&event); err != nil {
			return nil, nil, errors.Wrap(err, "decode event frame")
		}
		return nil, event, nil
	}

	var arr []any
	if err := dec.Decode(&arr); err != nil {
		return nil, nil, errors.Wrap(err, "decode array frame")
	}
	return arr, nil, nil
}

func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(val)
	}
	return decimal.Zero
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
	case float64:
		return int64(val)
	}
	return 0
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func parseWallet(raw []any) (domain.Wallet, error) {
	if len(raw) < 3 {
		return domain.Wallet{}, errors.Errorf("wallet array too short: %d elements", len(raw))
	}
	return domain.Wallet{
		Key: domain.WalletKey{
			Type:     domain.WalletType(toString(raw[0])),
			Currency: toString(raw[1]),
		},
		Balance: toDecimal(raw[2]),
	}, nil
}

func parseOrder(raw []any) (*domain.Order, error) {
	if len(raw) < orderArrayLen {
		return nil, errors.Errorf("order array too short: %d elements", len(raw))
	}

	flags := toInt64(raw[oIdxFlags])
	return &domain.Order{
		ID:            toInt64(raw[oIdxID]),
		GID:           toInt64(raw[oIdxGID]),
		CID:           toInt64(raw[oIdxCID]),
		Symbol:        toString(raw[oIdxSymbol]),
		Type:          domain.OrderType(toString(raw[oIdxType])),
		Status:        toString(raw[oIdxStatus]),
		Amount:        toDecimal(raw[oIdxAmount]),
		AmountOrig:    toDecimal(raw[oIdxOrig]),
		Price:         toDecimal(raw[oIdxPrice]),
		PriceAvg:      toDecimal(raw[oIdxAvg]),
		PriceTrailing: toDecimal(raw[oIdxTrailing]),
		PriceAuxLimit: toDecimal(raw[oIdxAuxLimit]),
		PlacedID:      toInt64(raw[oIdxPlacedID]),
		OCO:           flags&flagOCO != 0,
		Hidden:        flags&flagHidden != 0,
		PostOnly:      flags&flagPostOnly != 0,
	}, nil
}

func parseLevel(raw []any) (domain.Level, error) {
	if len(raw) < 3 {
		return domain.Level{}, errors.Errorf("book level too short: %d elements", len(raw))
	}

	count := int(toInt64(raw[1]))
	amount := toDecimal(raw[2])
	// A zeroed count is the wire's removal marker; the level carries a
	// side indicator in the amount which must not survive as a size.
	if count == 0 {
		amount = decimal.Zero
	}

	return domain.Level{
		Price:  toDecimal(raw[0]),
		Count:  count,
		Amount: amount,
	}, nil
}

func parseTicker(raw []any) (domain.Ticker, error) {
	if len(raw) < 7 {
		return domain.Ticker{}, errors.Errorf("ticker array too short: %d elements", len(raw))
	}
	return domain.Ticker{LastPrice: toDecimal(raw[6])}, nil
}
