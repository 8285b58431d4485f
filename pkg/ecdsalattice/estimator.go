package ecdsalattice

import "fmt"

// MinimumKnownBits is the smallest leak per nonce the attack accepts.
const MinimumKnownBits = 4

// SampleEstimator sizes the lattice. The number of signatures is
//
//	ceil(OverheadNum*orderBits / (OverheadDen*knownBits)) + Margin
//
// The overhead ratio scales the raw bit budget (every signature leaks
// knownBits but adds one dimension to the lattice) and Margin adds a few
// signatures on top to keep the success rate high.
type SampleEstimator struct {
	OverheadNum int
	OverheadDen int
	Margin      int
}

// DefaultSampleEstimator returns the estimator with a 4/3 overhead and a margin
// of two signatures.
func DefaultSampleEstimator() SampleEstimator {
	return SampleEstimator{OverheadNum: 4, OverheadDen: 3, Margin: 2}
}

// Estimate returns the minimum number of signatures needed to attack a curve
// whose order has orderBits bits, with knownBits leaked per nonce.
func (e SampleEstimator) Estimate(orderBits, knownBits int) (int, error) {
	if knownBits < MinimumKnownBits {
		return 0, fmt.Errorf("%w: %d known bits per nonce, at least %d required", ErrInfeasible, knownBits, MinimumKnownBits)
	}
	if knownBits >= orderBits {
		return 0, fmt.Errorf("%w: %d known bits leave nothing hidden in a %d-bit nonce", ErrInfeasible, knownBits, orderBits)
	}

	num, den := e.OverheadNum, e.OverheadDen
	if num <= 0 || den <= 0 {
		num, den = 4, 3
	}
	margin := e.Margin
	if margin < 0 {
		margin = 0
	}

	total := num * orderBits
	per := den * knownBits
	m := (total+per-1)/per + margin
	if m < 2 {
		m = 2
	}
	return m, nil
}
