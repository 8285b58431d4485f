// Package lll implements Lenstra-Lenstra-Lovász basis reduction and Babai's
// nearest plane algorithm over exact integer bases.
//
// The basis is kept as exact big.Int rows; only the Gram-Schmidt data lives in
// big.Float, with a precision derived from the input size. Size reduction
// recomputes the Gram-Schmidt row from exact dot products after every pass
// (Schnorr-Euchner), so rounding errors do not accumulate across swaps.
package lll

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrDependentRows is returned when the input rows are not linearly independent.
	ErrDependentRows = errors.New("lll: basis rows are linearly dependent")
	// ErrShape is returned for empty or ragged matrices.
	ErrShape = errors.New("lll: malformed matrix")
)

const (
	// DefaultDelta is the Lovász constant.
	DefaultDelta = 0.99
	// DefaultEta bounds |mu| after size reduction. Slightly above 1/2 so that
	// floating point noise cannot make size reduction cycle.
	DefaultEta = 0.51

	maxSizeReductionPasses = 64
	ctxPollInterval        = 64
)

// Reducer holds LLL parameters.
type Reducer struct {
	Delta float64
	Eta   float64
	// ExtraPrecision is added to the working precision computed from the input.
	ExtraPrecision uint
}

// NewReducer returns a Reducer with default parameters.
func NewReducer() *Reducer {
	return &Reducer{Delta: DefaultDelta, Eta: DefaultEta}
}

// Reduce returns an LLL-reduced copy of basis. The input is not modified.
func (r *Reducer) Reduce(ctx context.Context, basis [][]*big.Int) ([][]*big.Int, error) {
	g, err := newGSO(basis, r.ExtraPrecision)
	if err != nil {
		return nil, err
	}
	if err := g.lll(ctx, r.delta(), r.eta()); err != nil {
		return nil, err
	}
	return g.b, nil
}

// Closest returns a lattice point close to target: the basis is LLL reduced and
// the target is then size reduced against it (Babai's nearest plane).
func (r *Reducer) Closest(ctx context.Context, basis [][]*big.Int, target []*big.Int) ([]*big.Int, error) {
	reduced, err := r.Reduce(ctx, basis)
	if err != nil {
		return nil, err
	}
	if len(target) != len(reduced[0]) {
		return nil, fmt.Errorf("%w: target has %d coordinates, basis rows have %d", ErrShape, len(target), len(reduced[0]))
	}

	rows := make([][]*big.Int, 0, len(reduced)+1)
	rows = append(rows, reduced...)
	rows = append(rows, target)
	g, err := newGSO(rows, r.ExtraPrecision)
	if err != nil {
		return nil, err
	}
	last := len(rows) - 1
	g.target = last
	for i := 0; i < last; i++ {
		if err := g.updateRow(i); err != nil {
			return nil, err
		}
	}
	if err := g.sizeReduce(last, r.eta()); err != nil {
		return nil, err
	}

	point := make([]*big.Int, len(target))
	for c := range point {
		point[c] = new(big.Int).Sub(target[c], g.b[last][c])
	}
	return point, nil
}

func (r *Reducer) delta() *big.Float {
	d := r.Delta
	if d <= 0.25 || d >= 1 {
		d = DefaultDelta
	}
	return big.NewFloat(d)
}

func (r *Reducer) eta() *big.Float {
	e := r.Eta
	if e < 0.5 || e >= 1 {
		e = DefaultEta
	}
	return big.NewFloat(e)
}

// gso is an integer basis together with its floating point Gram-Schmidt data.
type gso struct {
	b    [][]*big.Int
	prec uint
	// mu[i][j] = <b_i, b*_j> / |b*_j|^2 for j < i
	mu [][]*big.Float
	// r[i][j] = <b_i, b*_j> for j <= i; r[i][i] = |b*_i|^2
	r [][]*big.Float
	// target is the index of a row that may lie in the span of the others, or -1.
	target int
}

func newGSO(basis [][]*big.Int, extra uint) (*gso, error) {
	if len(basis) == 0 || len(basis[0]) == 0 {
		return nil, ErrShape
	}
	cols := len(basis[0])
	maxBits := 0
	b := make([][]*big.Int, len(basis))
	for i, row := range basis {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), cols)
		}
		b[i] = make([]*big.Int, cols)
		for c, v := range row {
			b[i][c] = new(big.Int).Set(v)
			if bl := v.BitLen(); bl > maxBits {
				maxBits = bl
			}
		}
	}

	n := len(b)
	g := &gso{
		b:      b,
		prec:   uint(2*maxBits+4*n+64) + extra,
		mu:     make([][]*big.Float, n),
		r:      make([][]*big.Float, n),
		target: -1,
	}
	for i := range b {
		g.mu[i] = make([]*big.Float, i)
		g.r[i] = make([]*big.Float, i+1)
	}
	return g, nil
}

func (g *gso) float() *big.Float {
	return new(big.Float).SetPrec(g.prec)
}

func (g *gso) dot(i, j int) *big.Float {
	sum := new(big.Int)
	t := new(big.Int)
	for c := range g.b[i] {
		t.Mul(g.b[i][c], g.b[j][c])
		sum.Add(sum, t)
	}
	return g.float().SetInt(sum)
}

// updateRow recomputes mu[i][*] and r[i][*] from the exact row i, assuming
// rows 0..i-1 are up to date.
func (g *gso) updateRow(i int) error {
	t := g.float()
	for j := 0; j <= i; j++ {
		rij := g.dot(i, j)
		for l := 0; l < j; l++ {
			t.Mul(g.mu[j][l], g.r[i][l])
			rij.Sub(rij, t)
		}
		g.r[i][j] = rij
		if j < i {
			g.mu[i][j] = g.float().Quo(rij, g.r[j][j])
		}
	}
	if i != g.target && g.r[i][i].Sign() <= 0 {
		return ErrDependentRows
	}
	return nil
}

// sizeReduce makes |mu[k][j]| <= eta for every j < k.
func (g *gso) sizeReduce(k int, eta *big.Float) error {
	abs := g.float()
	qf := g.float()
	t := g.float()
	tmp := new(big.Int)
	for pass := 0; pass < maxSizeReductionPasses; pass++ {
		if err := g.updateRow(k); err != nil {
			return err
		}
		changed := false
		for j := k - 1; j >= 0; j-- {
			if abs.Abs(g.mu[k][j]).Cmp(eta) <= 0 {
				continue
			}
			q := round(g.mu[k][j])
			for c := range g.b[k] {
				tmp.Mul(q, g.b[j][c])
				g.b[k][c].Sub(g.b[k][c], tmp)
			}
			qf.SetInt(q)
			for l := 0; l < j; l++ {
				t.Mul(qf, g.mu[j][l])
				g.mu[k][l].Sub(g.mu[k][l], t)
			}
			g.mu[k][j].Sub(g.mu[k][j], qf)
			changed = true
		}
		if !changed {
			return nil
		}
	}
	return fmt.Errorf("lll: size reduction of row %d did not converge", k)
}

func (g *gso) lll(ctx context.Context, delta, eta *big.Float) error {
	n := len(g.b)
	if err := g.updateRow(0); err != nil {
		return err
	}
	lhs := g.float()
	rhs := g.float()
	sq := g.float()
	for k, iter := 1, 0; k < n; iter++ {
		if iter%ctxPollInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := g.sizeReduce(k, eta); err != nil {
			return err
		}

		// Lovász condition: |b*_k|^2 >= (delta - mu^2) |b*_{k-1}|^2
		sq.Mul(g.mu[k][k-1], g.mu[k][k-1])
		rhs.Sub(delta, sq)
		rhs.Mul(rhs, g.r[k-1][k-1])
		lhs.Set(g.r[k][k])
		if lhs.Cmp(rhs) >= 0 {
			k++
			continue
		}

		g.b[k], g.b[k-1] = g.b[k-1], g.b[k]
		if k == 1 {
			if err := g.updateRow(0); err != nil {
				return err
			}
			continue
		}
		k--
	}
	return nil
}

// round returns the nearest integer to x, halves away from zero.
func round(x *big.Float) *big.Int {
	half := big.NewFloat(0.5)
	y := new(big.Float).SetPrec(x.Prec())
	if x.Sign() >= 0 {
		y.Add(x, half)
	} else {
		y.Sub(x, half)
	}
	q, _ := y.Int(nil)
	return q
}
