package curve

import (
	"fmt"
	"math"
)

var _ Model = (*ExponentialModel)(nil)

// maxSettlement is 2^64, the first value that does not fit a uint64 amount.
const maxSettlement = float64(1 << 64)

// ExponentialModel prices every unit at scale * e^(rate*supply), evaluated in
// float64. The total is truncated toward zero after a bound check; anything
// that is not a finite value in [0, 2^64) is rejected.
type ExponentialModel struct {
	scale float64
	rate  float64
}

func NewExponential(p Params) Model {
	return &ExponentialModel{
		scale: p.Scale,
		rate:  p.Rate,
	}
}

func (*ExponentialModel) Strategy() Strategy {
	return Exponential
}

func (e *ExponentialModel) UnitPrice(supply uint64) (float64, error) {
	unit := e.scale * math.Exp(e.rate*float64(supply))
	if math.IsNaN(unit) || math.IsInf(unit, 0) {
		return 0, fmt.Errorf("%w: unit price is not finite at supply %d", ErrArithmeticOverflow, supply)
	}
	return unit, nil
}

func (e *ExponentialModel) Price(supply, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, nil
	}
	unit, err := e.UnitPrice(supply)
	if err != nil {
		return 0, err
	}
	total := float64(amount) * unit
	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 || total >= maxSettlement {
		return 0, fmt.Errorf("%w: %d units at %g exceeds settlement range", ErrArithmeticOverflow, amount, unit)
	}
	return uint64(math.Floor(total)), nil
}
