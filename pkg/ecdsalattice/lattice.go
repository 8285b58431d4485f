package ecdsalattice

import (
	"fmt"
	"math/big"
)

// Mode selects the lattice variant.
type Mode int

const (
	// ShortestVector embeds the HNP constants as an extra basis row and looks
	// for the key in the short vectors of the reduced basis.
	ShortestVector Mode = iota
	// ClosestVector keeps the constants in a separate target vector and asks
	// the oracle for the closest lattice point.
	ClosestVector
)

func (m Mode) String() string {
	switch m {
	case ShortestVector:
		return "svp"
	case ClosestVector:
		return "cvp"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "svp" or "cvp".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "svp", "SVP":
		return ShortestVector, nil
	case "cvp", "CVP":
		return ClosestVector, nil
	default:
		return 0, fmt.Errorf("unknown lattice mode %q (want svp or cvp)", s)
	}
}

// Lattice is the HNP instance for one signature subset.
//
// With m signatures, columns 0..m-1 hold the scaled congruences, column m holds
// the private key (KeyColumn) and, in ShortestVector mode, column m+1 holds the
// embedding constant.
type Lattice struct {
	Mode   Mode
	Basis  [][]*big.Int
	Target []*big.Int // ClosestVector only
	Order  *big.Int
	// Scale is the weight 2^(l+1) applied to the congruence columns.
	Scale *big.Int
	// KeyColumn is the column carrying the private key.
	KeyColumn int
	// KeyWeight is the weight applied to the key column.
	KeyWeight *big.Int
}

// LatticeBuilder turns signatures with partially known nonces into a lattice.
//
// Every signature gives s*k = h + r*d (mod n). Writing the unknown nonce part
// as x (0 <= x < 2^(b-l), b = bitlen(n), l = known bits):
//
//	LSB: k = kp + 2^l*x        -> x = t*d - a with t = 2^-l*r/s,  a = 2^-l*(kp - h/s)
//	MSB: k = kp*2^(b-l) + x    -> x = t*d - a with t = r/s,       a = kp*2^(b-l) - h/s
//
// all mod n.
type LatticeBuilder struct {
	curve Curve
	known KnownBits
	mode  Mode
}

// NewLatticeBuilder returns a builder for the curve, leak and variant.
func NewLatticeBuilder(curve Curve, known KnownBits, mode Mode) *LatticeBuilder {
	return &LatticeBuilder{curve: curve, known: known, mode: mode}
}

// Build constructs the lattice for sigs, in the given order. Every signature
// must carry its hash. A duplicate (r, s), or r or s outside [1, n-1], yields
// ErrDegenerateSubset.
func (b *LatticeBuilder) Build(sigs []*Signature) (*Lattice, error) {
	n := b.curve.Order()
	l := b.known.Bits
	if l <= 0 || l >= n.BitLen() {
		return nil, fmt.Errorf("%w: cannot build a lattice with %d known bits", ErrInfeasible, l)
	}
	if err := checkSubset(sigs, n); err != nil {
		return nil, err
	}

	m := len(sigs)
	scale := new(big.Int).Lsh(big.NewInt(1), uint(l+1))
	scaledN := new(big.Int).Mul(scale, n)

	dim := m + 2
	if b.mode == ClosestVector {
		dim = m + 1
	}
	basis := make([][]*big.Int, dim)
	for i := range basis {
		basis[i] = make([]*big.Int, dim)
		for j := range basis[i] {
			basis[i][j] = new(big.Int)
		}
	}
	target := make([]*big.Int, dim)
	for j := range target {
		target[j] = new(big.Int)
	}

	var shiftInv, msbShift *big.Int
	if b.known.Type == LSB {
		shiftInv = ModInverse(new(big.Int).Lsh(big.NewInt(1), uint(l)), n)
	} else {
		msbShift = new(big.Int).Lsh(big.NewInt(1), uint(n.BitLen()-l))
	}

	for i, sig := range sigs {
		sInv := ModInverse(sig.S, n)
		t := new(big.Int).Mul(sig.R, sInv)
		t.Mod(t, n)
		hs := new(big.Int).Mul(sig.Hash, sInv)
		hs.Mod(hs, n)

		a := new(big.Int)
		if b.known.Type == LSB {
			t.Mul(t, shiftInv).Mod(t, n)
			a.Sub(sig.KP, hs).Mul(a, shiftInv).Mod(a, n)
		} else {
			a.Mul(sig.KP, msbShift).Sub(a, hs).Mod(a, n)
		}

		// centre the scaled constant: C*x - n lies in [-n, n)
		a.Mul(a, scale).Add(a, n)

		basis[i][i].Set(scaledN)
		basis[m][i].Mul(t, scale)
		if b.mode == ClosestVector {
			target[i].Set(a)
		} else {
			basis[m+1][i].Set(a)
		}
	}
	basis[m][m].SetInt64(1)

	lat := &Lattice{
		Mode:      b.mode,
		Basis:     basis,
		Order:     new(big.Int).Set(n),
		Scale:     scale,
		KeyColumn: m,
		KeyWeight: big.NewInt(1),
	}
	if b.mode == ClosestVector {
		target[m].Rsh(n, 1)
		lat.Target = target
	} else {
		basis[m+1][m+1].Set(n)
	}
	return lat, nil
}

func checkSubset(sigs []*Signature, n *big.Int) error {
	if len(sigs) == 0 {
		return fmt.Errorf("%w: empty subset", ErrDegenerateSubset)
	}
	seen := make(map[string]int, len(sigs))
	for i, sig := range sigs {
		if sig.Hash == nil {
			return fmt.Errorf("%w: signature %d has no hash", ErrInvalidDataset, i)
		}
		if !inScalarRange(sig.R, n) || !inScalarRange(sig.S, n) {
			return fmt.Errorf("%w: signature %d has r or s outside [1, n-1]", ErrDegenerateSubset, i)
		}
		key := sig.R.Text(16) + ":" + sig.S.Text(16)
		if j, ok := seen[key]; ok {
			return fmt.Errorf("%w: signatures %d and %d share (r, s)", ErrDegenerateSubset, j, i)
		}
		seen[key] = i
	}
	return nil
}

func inScalarRange(x, n *big.Int) bool {
	return x != nil && x.Sign() > 0 && x.Cmp(n) < 0
}
