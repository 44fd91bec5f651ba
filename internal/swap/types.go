// =============================
// File: internal/swap/types.go
// =============================
package swap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/pool"
)

// Direction is the side of a trade from the trader's point of view.
type Direction uint8

const (
	Buy Direction = iota + 1
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, s)
	}
}

// Phase is a step of the settlement state machine:
// Validated -> Collected -> Released -> Committed, or Aborted from any of
// the first three.
type Phase uint8

const (
	PhaseValidated Phase = iota + 1
	PhaseCollected
	PhaseReleased
	PhaseCommitted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseValidated:
		return "validated"
	case PhaseCollected:
		return "collected"
	case PhaseReleased:
		return "released"
	case PhaseCommitted:
		return "committed"
	case PhaseAborted:
		return "aborted"
	default:
		return "pending"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Request describes one trade.
type Request struct {
	Pool     *pool.LiquidityPool
	Leg      pool.Leg
	Amount   uint64
	Strategy curve.Strategy
	Trader   solana.PublicKey
}

func (r Request) validate(needTrader bool) error {
	if r.Pool == nil {
		return errors.New("pool is required")
	}
	if !r.Leg.Valid() {
		return fmt.Errorf("%w: %s", pool.ErrInvalidLeg, r.Leg)
	}
	if needTrader && r.Trader.IsZero() {
		return errors.New("trader is required")
	}
	return nil
}

// Receipt records a settled trade.
type Receipt struct {
	ID           string           `json:"id"`
	Pool         solana.PublicKey `json:"pool"`
	Trader       solana.PublicKey `json:"trader"`
	Direction    Direction        `json:"direction"`
	Leg          pool.Leg         `json:"leg"`
	Mint         solana.PublicKey `json:"mint"`
	Strategy     curve.Strategy   `json:"strategy"`
	Amount       uint64           `json:"amount"`
	TotalPrice   uint64           `json:"total_price"`
	UnitPrice    float64          `json:"unit_price"`
	SupplyBefore uint64           `json:"supply_before"`
	Phases       []Phase          `json:"phases"`
	SettledAt    time.Time        `json:"settled_at"`
}

func (r *Receipt) advance(p Phase) {
	r.Phases = append(r.Phases, p)
}

// Phase returns the last phase reached.
func (r *Receipt) Phase() Phase {
	if len(r.Phases) == 0 {
		return 0
	}
	return r.Phases[len(r.Phases)-1]
}

// Quote is the price a trade would settle at against the current supply.
type Quote struct {
	Pool       solana.PublicKey `json:"pool"`
	Leg        pool.Leg         `json:"leg"`
	Mint       solana.PublicKey `json:"mint"`
	Strategy   curve.Strategy   `json:"strategy"`
	Amount     uint64           `json:"amount"`
	Supply     uint64           `json:"supply"`
	UnitPrice  float64          `json:"unit_price"`
	TotalPrice uint64           `json:"total_price"`
}
