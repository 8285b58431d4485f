package ecdsalattice

import (
	"math/big"
	"sort"
)

// Candidates is a lazy, finite sequence of private key candidates. It cannot be
// restarted; build a new one to scan again.
type Candidates struct {
	rows    [][]*big.Int
	col     int
	weight  *big.Int
	n       *big.Int
	next    int
	pending *big.Int
}

// ExtractCandidates scans the reduced basis of lat, shortest rows first. Every
// row whose key column is a non-zero multiple of the key weight mod n gives two
// candidates, c and n-c, since a short vector and its negation are equally
// short.
func ExtractCandidates(lat *Lattice, reduced [][]*big.Int) *Candidates {
	type entry struct {
		row  []*big.Int
		norm *big.Int
	}
	entries := make([]entry, 0, len(reduced))
	for _, row := range reduced {
		if len(row) <= lat.KeyColumn {
			continue
		}
		entries = append(entries, entry{row: row, norm: squaredNorm(row)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].norm.Cmp(entries[j].norm) < 0
	})

	rows := make([][]*big.Int, len(entries))
	for i, e := range entries {
		rows[i] = e.row
	}
	return &Candidates{rows: rows, col: lat.KeyColumn, weight: lat.KeyWeight, n: lat.Order}
}

// ExtractClosest reads the key column of a closest lattice point.
func ExtractClosest(lat *Lattice, point []*big.Int) *Candidates {
	c := &Candidates{col: lat.KeyColumn, weight: lat.KeyWeight, n: lat.Order}
	if len(point) > lat.KeyColumn {
		c.rows = [][]*big.Int{point}
	}
	return c
}

// Next returns the next candidate, or false when the sequence is exhausted.
func (c *Candidates) Next() (*big.Int, bool) {
	if c.pending != nil {
		d := c.pending
		c.pending = nil
		return d, true
	}
	for c.next < len(c.rows) {
		row := c.rows[c.next]
		c.next++

		v := new(big.Int).Set(row[c.col])
		if c.weight != nil && c.weight.Cmp(big.NewInt(1)) != 0 {
			var rem big.Int
			v.QuoRem(v, c.weight, &rem)
			if rem.Sign() != 0 {
				continue
			}
		}
		v.Mod(v, c.n)
		if v.Sign() == 0 {
			continue
		}
		c.pending = new(big.Int).Sub(c.n, v)
		return v, true
	}
	return nil, false
}

func squaredNorm(row []*big.Int) *big.Int {
	sum := new(big.Int)
	t := new(big.Int)
	for _, v := range row {
		sum.Add(sum, t.Mul(v, v))
	}
	return sum
}
