package ecdsalattice

import "errors"

var (
	// ErrInfeasible means the attack cannot work with the given leak or data:
	// too few known bits per nonce, or fewer signatures than required.
	ErrInfeasible = errors.New("attack infeasible")

	// ErrExhausted means every attempt in the budget failed to produce a
	// verified key.
	ErrExhausted = errors.New("attempt budget exhausted without a verified key")

	// ErrDegenerateSubset means the selected signatures contain a duplicate or
	// an out-of-range (r, s). The orchestrator recovers by reselecting.
	ErrDegenerateSubset = errors.New("degenerate signature subset")

	// ErrReductionInconclusive means no vector of the reduced lattice yields a
	// key matching the public key. The orchestrator recovers by reselecting.
	ErrReductionInconclusive = errors.New("reduction inconclusive")

	// ErrInvalidDataset reports malformed input data.
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrUnknownCurve reports a curve name missing from the curve table.
	ErrUnknownCurve = errors.New("unknown curve")
)
