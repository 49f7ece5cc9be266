package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// WalletType class of wallet an order settles against.
type WalletType string

const (
	// WalletTypeExchange plain exchange wallet.
	WalletTypeExchange WalletType = "exchange"
	// WalletTypeMargin margin wallet.
	WalletTypeMargin WalletType = "margin"
)

// WalletKey identifies a single per-account ledger.
type WalletKey struct {
	Type     WalletType
	Currency string
}

// String returns the canonical key form used in logs and error messages.
func (k WalletKey) String() string {
	return fmt.Sprintf("%s-%s", k.Type, k.Currency)
}

// Wallet is a single balance observation, used both for snapshot watermarks
// and as the payload of incoming wallet packets.
type Wallet struct {
	Key     WalletKey
	Balance decimal.Decimal
}

// WalletUpdate is one post-watermark ledger entry. Delta is always the
// difference to the previous entry's balance on the same key, and Seq is
// assigned locally on receipt, strictly increasing per dataset.
type WalletUpdate struct {
	Key     WalletKey
	Balance decimal.Decimal
	Delta   decimal.Decimal
	Seq     uint64
}

// String returns a human-readable form for mismatch reports.
func (u WalletUpdate) String() string {
	return fmt.Sprintf("%s balance=%s delta=%s seq=%d", u.Key, u.Balance, u.Delta, u.Seq)
}
