package scenarios

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/apiaudit/internal/suite"
)

func TestAllRegistersEveryFamily(t *testing.T) {
	args := &suite.Args{Symbol: "tETHUSD", Amount: decimal.RequireFromString("0.1")}

	ids := make(map[string]bool)
	for _, s := range All(args) {
		require.False(t, ids[s.ID], "duplicate suite id %s", s.ID)
		require.NotEmpty(t, s.Steps, "suite %s has no steps", s.ID)
		ids[s.ID] = true
	}

	for _, id := range []string{
		"limit-entry",
		"limit-exec",
		"limit-hidden",
		"limit-postonly",
		"limit-oco-exec",
		"market-exec",
		"fok-cancel",
		"fok-immediate-exec",
		"stop-market-trigger",
		"stop-limit-market-trigger",
		"stop-limit-no-immediate-trigger",
		"trailing-stop-trail",
		"trailing-stop-trigger",
	} {
		require.True(t, ids[id], "missing suite %s", id)
	}
	require.False(t, ids["virtual-limit-replication"], "no virtual pair configured")

	args.VirtualPair = "tETHGBP"
	withVirtual := make(map[string]bool)
	for _, s := range All(args) {
		withVirtual[s.ID] = true
	}
	require.True(t, withVirtual["virtual-limit-replication"])
}
