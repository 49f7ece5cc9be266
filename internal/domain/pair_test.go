package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairFromSymbol(t *testing.T) {
	pair, err := PairFromSymbol("tETHUSD")
	require.NoError(t, err)
	require.Equal(t, "ETH", pair.Base)
	require.Equal(t, "USD", pair.Quote)

	pair, err = PairFromSymbol("tBTCUST")
	require.NoError(t, err)
	require.Equal(t, "BTC", pair.Base)
	require.Equal(t, "UST", pair.Quote)
}

func TestPairFromSymbolLongBase(t *testing.T) {
	// the rightmost 3 characters are always the quote currency
	pair, err := PairFromSymbol("tTESTBTCUSD")
	require.NoError(t, err)
	require.Equal(t, "TESTBTC", pair.Base)
	require.Equal(t, "USD", pair.Quote)
}

func TestPairFromSymbolTooShort(t *testing.T) {
	_, err := PairFromSymbol("tUSD")
	require.Error(t, err)
}

func TestPairSymbolRoundTrip(t *testing.T) {
	pair := Pair{Base: "ETH", Quote: "USD"}
	require.Equal(t, "tETHUSD", pair.Symbol())
	require.Equal(t, "ETH/USD", pair.String())

	back, err := PairFromSymbol(pair.Symbol())
	require.NoError(t, err)
	require.Equal(t, pair, back)
}
