package domain

import "github.com/shopspring/decimal"

// Ticker last-trade view for a symbol.
type Ticker struct {
	Symbol    string
	LastPrice decimal.Decimal
}
