// =============================
// File: internal/curve/curve.go
// =============================
package curve

import (
	"fmt"
	"math"
	"strings"
)

// Strategy selects the bonding curve used to price a trade.
type Strategy uint8

const (
	InvalidStrategy Strategy = iota
	Linear
	Exponential
)

func (s Strategy) String() string {
	switch s {
	case Linear:
		return "linear"
	case Exponential:
		return "exponential"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStrategy maps a configuration name onto a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "lin":
		return Linear, nil
	case "exponential", "exp":
		return Exponential, nil
	default:
		return InvalidStrategy, fmt.Errorf("%w: %q", ErrInvalidStrategy, name)
	}
}

// Params holds the curve shape attached to a pool at creation time.
//
// Linear:      unit = supply/Divisor + BasePrice
// Exponential: unit = Scale * e^(Rate*supply)
type Params struct {
	Divisor   uint64  `mapstructure:"divisor" json:"divisor"`
	BasePrice uint64  `mapstructure:"base_price" json:"base_price"`
	Scale     float64 `mapstructure:"scale" json:"scale"`
	Rate      float64 `mapstructure:"rate" json:"rate"`
}

// DefaultParams returns the historical curve constants (1000, 10, 10.0, 1.0).
func DefaultParams() Params {
	return Params{
		Divisor:   1000,
		BasePrice: 10,
		Scale:     10.0,
		Rate:      1.0,
	}
}

// WithDefaults fills each curve shape left entirely unset from
// DefaultParams: Divisor and BasePrice for linear, Scale and Rate for
// exponential. A partly set shape is kept as is for Validate to judge.
func (p Params) WithDefaults() Params {
	def := DefaultParams()
	if p.Divisor == 0 && p.BasePrice == 0 {
		p.Divisor, p.BasePrice = def.Divisor, def.BasePrice
	}
	if p.Scale == 0 && p.Rate == 0 {
		p.Scale, p.Rate = def.Scale, def.Rate
	}
	return p
}

// Validate rejects parameter sets that cannot be evaluated.
func (p Params) Validate() error {
	if p.Divisor == 0 {
		return fmt.Errorf("%w: divisor must be positive", ErrInvalidParams)
	}
	if math.IsNaN(p.Scale) || math.IsInf(p.Scale, 0) || p.Scale <= 0 {
		return fmt.Errorf("%w: scale must be a positive finite number, got %v", ErrInvalidParams, p.Scale)
	}
	if math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) {
		return fmt.Errorf("%w: rate must be finite, got %v", ErrInvalidParams, p.Rate)
	}
	return nil
}

// Model prices trades for one strategy. Implementations are pure.
type Model interface {
	// Price returns the total settlement price for amount units at supply.
	Price(supply, amount uint64) (uint64, error)
	// UnitPrice returns the price of a single unit at supply, for display and quoting.
	UnitPrice(supply uint64) (float64, error)
	Strategy() Strategy
}

// NewModel builds a Model from validated params.
type NewModel func(Params) Model

// Models holds the constructors for every recognised strategy.
var Models = map[Strategy]NewModel{
	Linear:      NewLinear,
	Exponential: NewExponential,
}

// New returns the model for strategy configured with params.
func New(strategy Strategy, params Params) (Model, error) {
	ctor, ok := Models[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStrategy, strategy)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return ctor(params), nil
}

// Price is a shortcut for New(strategy, params) followed by Model.Price.
func Price(strategy Strategy, params Params, supply, amount uint64) (uint64, error) {
	m, err := New(strategy, params)
	if err != nil {
		return 0, err
	}
	return m.Price(supply, amount)
}
