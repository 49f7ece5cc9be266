package suite

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/apiaudit/internal/dataset"
	"github.com/vadiminshakov/apiaudit/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAccount() *Account {
	return &Account{Data: dataset.New("taker", zap.NewNop())}
}

func TestOrderFactoryStopLimit(t *testing.T) {
	f := NewOrderFactory(testAccount(), "tETHUSD", dec("2"))

	sell := f.StopLimitSell(dec("105"), dec("120"))
	require.Equal(t, domain.OrderTypeExchangeStopLimit, sell.Type)
	require.True(t, sell.Amount.Equal(dec("-2")))
	require.True(t, sell.Price.Equal(dec("105")))
	require.True(t, sell.PriceAuxLimit.Equal(dec("120")))

	buy := f.StopLimitBuy(dec("103"), dec("80"))
	require.True(t, buy.Amount.Equal(dec("2")))
	require.True(t, buy.PriceAuxLimit.Equal(dec("80")))
	require.NotEqual(t, sell.CID, buy.CID)
}

func TestOrderFactoryTrailingStop(t *testing.T) {
	f := NewOrderFactory(testAccount(), "tETHUSD", dec("2"))

	buy := f.TrailingStopBuy(dec("10"))
	require.Equal(t, domain.OrderTypeExchangeTrailingStop, buy.Type)
	require.True(t, buy.PriceTrailing.Equal(dec("10")))
	require.True(t, buy.Price.IsZero(), "the exchange computes the initial stop price")

	sell := f.TrailingStopSell(dec("10"))
	require.True(t, sell.Amount.Equal(dec("-2")))
	require.True(t, sell.PriceTrailing.Equal(dec("10")))
}

func TestOrderFactoryFlagVariants(t *testing.T) {
	f := NewOrderFactory(testAccount(), "tETHUSD", dec("2"))

	hidden := f.HiddenLimitSell(dec("101"))
	require.Equal(t, domain.OrderTypeExchangeLimit, hidden.Type)
	require.True(t, hidden.Hidden)

	post := f.PostOnlyLimitBuy(dec("99"))
	require.True(t, post.PostOnly)
	require.False(t, post.Hidden)

	oco := f.OCOSell(dec("102"), dec("100.1"))
	require.True(t, oco.OCO)
	require.True(t, oco.PriceAuxLimit.Equal(dec("100.1")))
}

func TestLastOrInitial(t *testing.T) {
	acct := testAccount()
	args := &Args{InitialLast: dec("1000"), Maker: acct}

	require.True(t, args.LastOrInitial("tETHUSD").Equal(dec("1000")),
		"no print yet: fall back to the configured last")

	acct.Data.OnTicker("tETHUSD", domain.Ticker{LastPrice: dec("101.5")})
	require.True(t, args.LastOrInitial("tETHUSD").Equal(dec("101.5")))
}

func TestDustFor(t *testing.T) {
	args := &Args{Dust: map[string]decimal.Decimal{"USD": dec("0.01")}}

	require.True(t, args.DustFor("USD").Equal(dec("0.01")))
	require.True(t, args.DustFor("ETH").Equal(defaultScenarioDust))
}
