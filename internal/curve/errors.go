package curve

import "errors"

var (
	ErrInvalidStrategy    = errors.New("invalid pricing strategy")
	ErrInvalidParams      = errors.New("invalid curve params")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)
