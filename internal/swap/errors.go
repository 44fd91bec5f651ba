// =============================
// File: internal/swap/errors.go
// =============================
package swap

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
)

// Kind classifies why a trade did not settle.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindInvalidStrategy
	KindArithmeticOverflow
	KindInsufficientPayment
	KindInsufficientAssetBalance
	KindSettlementAborted
)

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrInvalidStrategy          = errors.New("invalid strategy")
	ErrArithmeticOverflow       = errors.New("arithmetic overflow")
	ErrInsufficientPayment      = errors.New("insufficient payment")
	ErrInsufficientAssetBalance = errors.New("insufficient asset balance")
	ErrSettlementAborted        = errors.New("settlement aborted")
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindInvalidStrategy:
		return "InvalidStrategy"
	case KindArithmeticOverflow:
		return "ArithmeticOverflow"
	case KindInsufficientPayment:
		return "InsufficientPayment"
	case KindInsufficientAssetBalance:
		return "InsufficientAssetBalance"
	case KindSettlementAborted:
		return "SettlementAborted"
	default:
		return "Unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindInvalidStrategy:
		return ErrInvalidStrategy
	case KindArithmeticOverflow:
		return ErrArithmeticOverflow
	case KindInsufficientPayment:
		return ErrInsufficientPayment
	case KindInsufficientAssetBalance:
		return ErrInsufficientAssetBalance
	case KindSettlementAborted:
		return ErrSettlementAborted
	default:
		return nil
	}
}

// Error is returned by every failed Buy, Sell and Quote. Phase is the last
// phase the trade reached before it was aborted.
type Error struct {
	Op    string
	Kind  Kind
	Phase Phase
	Err   error
}

func newError(op string, kind Kind, phase Phase, err error) *Error {
	return &Error{Op: op, Kind: kind, Phase: phase, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s aborted after %s (%s): %v", e.Op, e.Phase, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's Kind, so callers can test
// errors.Is(err, swap.ErrInsufficientPayment).
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the Kind of a swap error, or KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func curveKind(err error) Kind {
	switch {
	case errors.Is(err, curve.ErrInvalidStrategy):
		return KindInvalidStrategy
	case errors.Is(err, curve.ErrArithmeticOverflow):
		return KindArithmeticOverflow
	default:
		return KindInvalidRequest
	}
}

// fundingKind maps a failed ledger debit. A short balance becomes short, every
// other ledger refusal aborts the settlement.
func fundingKind(err error, short Kind) Kind {
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return short
	}
	return KindSettlementAborted
}
