package curve

import (
	"fmt"

	smath "github.com/ava-labs/avalanchego/utils/math"
)

var _ Model = (*LinearModel)(nil)

// LinearModel prices every unit of a trade at floor(supply/divisor) + basePrice.
type LinearModel struct {
	divisor   uint64
	basePrice uint64
}

func NewLinear(p Params) Model {
	return &LinearModel{
		divisor:   p.Divisor,
		basePrice: p.BasePrice,
	}
}

func (*LinearModel) Strategy() Strategy {
	return Linear
}

func (l *LinearModel) unit(supply uint64) (uint64, error) {
	unit, err := smath.Add(supply/l.divisor, l.basePrice)
	if err != nil {
		return 0, fmt.Errorf("%w: unit price at supply %d: %v", ErrArithmeticOverflow, supply, err)
	}
	return unit, nil
}

func (l *LinearModel) UnitPrice(supply uint64) (float64, error) {
	unit, err := l.unit(supply)
	if err != nil {
		return 0, err
	}
	return float64(unit), nil
}

func (l *LinearModel) Price(supply, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, nil
	}
	unit, err := l.unit(supply)
	if err != nil {
		return 0, err
	}
	total, err := smath.Mul(amount, unit)
	if err != nil {
		return 0, fmt.Errorf("%w: %d units at %d: %v", ErrArithmeticOverflow, amount, unit, err)
	}
	return total, nil
}
