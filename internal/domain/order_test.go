package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOrderTypeWalletType(t *testing.T) {
	require.Equal(t, WalletTypeExchange, OrderTypeExchangeLimit.WalletType())
	require.Equal(t, WalletTypeExchange, OrderTypeExchangeTrailingStop.WalletType())
	require.Equal(t, WalletTypeMargin, OrderTypeLimit.WalletType())
	require.Equal(t, WalletTypeMargin, OrderTypeStop.WalletType())
}

func TestOrderSides(t *testing.T) {
	buy := &Order{AmountOrig: dec("0.5")}
	require.True(t, buy.IsBuy())
	require.False(t, buy.IsSell())

	sell := &Order{AmountOrig: dec("-0.5")}
	require.True(t, sell.IsSell())
	require.False(t, sell.IsBuy())
}

func TestOrderLifecycleMarkers(t *testing.T) {
	require.True(t, (&Order{Status: "CANCELED"}).Canceled())
	require.True(t, (&Order{Status: "FILLORKILL CANCELED"}).Canceled())
	require.True(t, (&Order{Status: "EXECUTED @ 101.2(3.0)"}).Executed())
	require.True(t, (&Order{Status: "ACTIVE"}).Open())
	require.False(t, (&Order{Status: "EXECUTED @ 101.2(3.0)"}).Open())
}

func TestExecPrice(t *testing.T) {
	o := &Order{Price: dec("100"), PriceAvg: dec("101.5")}
	require.True(t, o.ExecPrice().Equal(dec("101.5")), "avg price wins when set")

	o = &Order{Price: dec("100")}
	require.True(t, o.ExecPrice().Equal(dec("100")))

	oco := &Order{Price: dec("100"), PriceAuxLimit: dec("99"), OCO: true}
	require.True(t, oco.ExecPrice().Equal(dec("99")), "OCO orders execute at the aux limit price")
}

func TestParseStatusTrailSinglePartial(t *testing.T) {
	fills, err := ParseStatusTrail("EXECUTED: was PARTIALLY FILLED@101.5(2.0): was ACTIVE")
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.Equal(t, "PARTIALLY FILLED", fills[0].Status)
	require.True(t, fills[0].Price.Equal(dec("101.5")))
	require.True(t, fills[0].Amount.Equal(dec("2.0")))
}

func TestParseStatusTrailChained(t *testing.T) {
	status := "EXECUTED @ 105.0(1.0): was PARTIALLY FILLED @ 101.5(-2.0): was ACTIVE"
	fills, err := ParseStatusTrail(status)
	require.NoError(t, err)
	require.Len(t, fills, 2)

	require.Equal(t, "EXECUTED", fills[0].Status)
	require.True(t, fills[0].Price.Equal(dec("105.0")))
	require.True(t, fills[0].Amount.Equal(dec("1.0")))

	require.Equal(t, "PARTIALLY FILLED", fills[1].Status)
	require.True(t, fills[1].Price.Equal(dec("101.5")))
	require.True(t, fills[1].Amount.Equal(dec("-2.0")))
}

func TestParseStatusTrailNoFills(t *testing.T) {
	fills, err := ParseStatusTrail("ACTIVE")
	require.NoError(t, err)
	require.Empty(t, fills)

	fills, err = ParseStatusTrail("")
	require.NoError(t, err)
	require.Empty(t, fills)
}

func TestExecutionTrailPrefersHistory(t *testing.T) {
	o := &Order{
		Status:  "EXECUTED: was PARTIALLY FILLED@101.5(2.0)",
		History: []Fill{{Status: "PARTIALLY FILLED", Price: dec("102"), Amount: dec("3")}},
	}

	fills, err := o.ExecutionTrail()
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.True(t, fills[0].Price.Equal(dec("102")), "explicit history beats the status string")

	// the trail is a copy, mutating it must not touch the order
	fills[0].Amount = dec("99")
	require.True(t, o.History[0].Amount.Equal(dec("3")))
}

func TestExecutionTrailStatusFallback(t *testing.T) {
	o := &Order{Status: "EXECUTED: was PARTIALLY FILLED@101.5(2.0)"}
	fills, err := o.ExecutionTrail()
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.True(t, fills[0].Amount.Equal(dec("2.0")))
}
