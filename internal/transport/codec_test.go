package transport

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/apiaudit/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecodeFrameRoutesByShape(t *testing.T) {
	arr, event, err := decodeFrame([]byte(`{"event":"info","version":2}`))
	require.NoError(t, err)
	require.Nil(t, arr)
	require.Equal(t, "info", event["event"])

	arr, event, err = decodeFrame([]byte(`[0,"hb"]`))
	require.NoError(t, err)
	require.Nil(t, event)
	require.Len(t, arr, 2)

	_, _, err = decodeFrame([]byte("  "))
	require.Error(t, err)
}

func TestParseWallet(t *testing.T) {
	arr, _, err := decodeFrame([]byte(`["exchange","USD",10000.5,0,null]`))
	require.NoError(t, err)

	w, err := parseWallet(arr)
	require.NoError(t, err)
	require.Equal(t, domain.WalletTypeExchange, w.Key.Type)
	require.Equal(t, "USD", w.Key.Currency)
	require.True(t, w.Balance.Equal(dec("10000.5")))

	_, err = parseWallet([]any{"exchange"})
	require.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	raw := []byte(`[12345,0,42,"tETHUSD",0,0,-3,-5,"EXCHANGE LIMIT",0,null,null,16384,` +
		`"PARTIALLY FILLED",null,null,100,101.5,0,99,null,null,null,null,null,777]`)
	arr, _, err := decodeFrame(raw)
	require.NoError(t, err)

	o, err := parseOrder(arr)
	require.NoError(t, err)
	require.Equal(t, int64(12345), o.ID)
	require.Equal(t, int64(42), o.CID)
	require.Equal(t, "tETHUSD", o.Symbol)
	require.Equal(t, domain.OrderTypeExchangeLimit, o.Type)
	require.Equal(t, "PARTIALLY FILLED", o.Status)
	require.True(t, o.Amount.Equal(dec("-3")))
	require.True(t, o.AmountOrig.Equal(dec("-5")))
	require.True(t, o.Price.Equal(dec("100")))
	require.True(t, o.PriceAvg.Equal(dec("101.5")))
	require.True(t, o.PriceAuxLimit.Equal(dec("99")))
	require.Equal(t, int64(777), o.PlacedID)
	require.True(t, o.OCO, "flag bit 16384 marks OCO orders")
	require.False(t, o.Hidden)

	_, err = parseOrder(arr[:10])
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	arr, _, err := decodeFrame([]byte(`[100.5,2,-7]`))
	require.NoError(t, err)

	l, err := parseLevel(arr)
	require.NoError(t, err)
	require.True(t, l.Price.Equal(dec("100.5")))
	require.Equal(t, 2, l.Count)
	require.True(t, l.Amount.Equal(dec("-7")))
}

func TestParseLevelRemovalMarker(t *testing.T) {
	// count 0 removes the level; the amount only signals the side and must
	// not survive as a size
	arr, _, err := decodeFrame([]byte(`[100.5,0,1]`))
	require.NoError(t, err)

	l, err := parseLevel(arr)
	require.NoError(t, err)
	require.Equal(t, 0, l.Count)
	require.True(t, l.Amount.IsZero())
}

func TestParseTicker(t *testing.T) {
	arr, _, err := decodeFrame([]byte(`[236.62,9.0029,236.88,7.1138,-1.02,0,236.52,5191.3,250.01,220.05]`))
	require.NoError(t, err)

	tick, err := parseTicker(arr)
	require.NoError(t, err)
	require.True(t, tick.LastPrice.Equal(dec("236.52")))

	_, err = parseTicker(arr[:3])
	require.Error(t, err)
}
