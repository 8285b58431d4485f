package lll

import (
	"context"
	"math/big"
)

// Oracle adapts Reducer to the reduction oracle interface of the attack. It only
// performs LLL: any requested BKZ block size runs plain LLL, which leaves an
// already reduced basis unchanged.
type Oracle struct {
	Reducer *Reducer
}

// NewOracle returns an Oracle with default LLL parameters.
func NewOracle() *Oracle {
	return &Oracle{Reducer: NewReducer()}
}

// Name implements the reduction oracle interface.
func (o *Oracle) Name() string {
	return "lll"
}

// Reduce implements the reduction oracle interface.
func (o *Oracle) Reduce(ctx context.Context, basis [][]*big.Int, blockSize int) ([][]*big.Int, error) {
	return o.reducer().Reduce(ctx, basis)
}

// ClosestVector implements the reduction oracle interface.
func (o *Oracle) ClosestVector(ctx context.Context, basis [][]*big.Int, target []*big.Int) ([]*big.Int, error) {
	return o.reducer().Closest(ctx, basis, target)
}

func (o *Oracle) reducer() *Reducer {
	if o.Reducer == nil {
		return NewReducer()
	}
	return o.Reducer
}
