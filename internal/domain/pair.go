// Package domain defines the core data structures shared by the audit harness.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// Base base currency symbol.
	Base string
	// Quote quote currency symbol.
	Quote string
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Base, p.Quote)
}

// Symbol returns the exchange symbol form, e.g. tETHUSD.
func (p Pair) Symbol() string {
	return fmt.Sprintf("t%s%s", p.Base, p.Quote)
}

// PairFromSymbol decomposes an exchange symbol into base and quote currencies.
// The exchange's symbol format guarantees that the rightmost 3 characters are
// the quote currency; the remainder (minus the market prefix) is the base.
func PairFromSymbol(symbol string) (Pair, error) {
	s := strings.TrimPrefix(symbol, "t")
	if len(s) < 6 {
		return Pair{}, errors.Errorf("symbol %q is too short to decompose", symbol)
	}

	return Pair{
		Base:  s[:len(s)-3],
		Quote: s[len(s)-3:],
	}, nil
}
