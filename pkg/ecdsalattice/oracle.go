package ecdsalattice

import (
	"context"
	"math/big"
)

// ReductionOracle solves the lattice problems the attack reduces to. The attack
// only feeds it integer matrices and reads its output; how the reduction is
// done is up to the implementation.
type ReductionOracle interface {
	// Reduce returns a reduced basis of the lattice spanned by the rows of
	// basis. blockSize 0 asks for LLL, a positive value for BKZ with that
	// block size; implementations without BKZ may run LLL instead.
	Reduce(ctx context.Context, basis [][]*big.Int, blockSize int) ([][]*big.Int, error)

	// ClosestVector returns a lattice point close to target.
	ClosestVector(ctx context.Context, basis [][]*big.Int, target []*big.Int) ([]*big.Int, error)

	// Name returns a human-readable name for this back-end.
	Name() string
}

// LLLSchedule runs a single LLL pass.
func LLLSchedule() []int {
	return []int{0}
}

// BKZSchedule runs LLL, then BKZ with growing block sizes on the same basis.
func BKZSchedule() []int {
	return []int{0, 15, 25, 40, 50, 60}
}
