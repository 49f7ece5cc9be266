// Package audit verifies externally observed exchange state against the
// deltas an order is documented to produce.
package audit

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SetupError reports a harness misconfiguration (e.g. a wallet that was never
// seen in a snapshot). It aborts the scenario: the finding is about the
// harness, not the matching engine.
type SetupError struct {
	Msg string
}

func (e *SetupError) Error() string {
	return "setup: " + e.Msg
}

// Setupf builds a SetupError.
func Setupf(format string, args ...any) *SetupError {
	return &SetupError{Msg: fmt.Sprintf(format, args...)}
}

// ProtocolError reports that the transport and the aggregator are out of
// sync, e.g. an update arrived for a key that was never snapshotted.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Msg
}

// Protocolf builds a ProtocolError.
func Protocolf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// WalletMismatch is the audit finding for balance reconciliation: one or more
// expected wallet deltas were not observed in the post-watermark ledger.
type WalletMismatch struct {
	Order     string
	Unmatched []string
}

func (e *WalletMismatch) Error() string {
	return fmt.Sprintf("wallet mismatch for %s: no update matching %s", e.Order, strings.Join(e.Unmatched, "; "))
}

// BookMismatch is the audit finding for order-book delta verification.
type BookMismatch struct {
	Msg string
}

func (e *BookMismatch) Error() string {
	return "book mismatch: " + e.Msg
}

// Bookf builds a BookMismatch.
func Bookf(format string, args ...any) *BookMismatch {
	return &BookMismatch{Msg: fmt.Sprintf(format, args...)}
}

// OrderMismatch is the audit finding for order lifecycle assertions.
type OrderMismatch struct {
	Msg string
}

func (e *OrderMismatch) Error() string {
	return "order mismatch: " + e.Msg
}

// Orderf builds an OrderMismatch.
func Orderf(format string, args ...any) *OrderMismatch {
	return &OrderMismatch{Msg: fmt.Sprintf(format, args...)}
}

// IsAssertionFailure reports whether err is an audit finding (the signal this
// system exists to produce) rather than a setup or protocol fault.
func IsAssertionFailure(err error) bool {
	var wm *WalletMismatch
	var bm *BookMismatch
	var om *OrderMismatch
	return errors.As(err, &wm) || errors.As(err, &bm) || errors.As(err, &om)
}
