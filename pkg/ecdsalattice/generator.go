package ecdsalattice

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// GenerateOptions configures GenerateDataset.
type GenerateOptions struct {
	Curve Curve
	Count int
	Known KnownBits
	// Message, when set, is signed by every signature. Otherwise each
	// signature gets a random hash and carries it in the dataset.
	Message []byte
	// PrivateKey is the signing key. A random key is drawn when nil.
	PrivateKey *big.Int
	// Rand is the randomness source, crypto/rand when nil.
	Rand io.Reader
}

// GenerateDataset signs Count messages with leaky nonces and returns the
// resulting dataset together with the private key that produced it. Only use it
// for demos and tests: the nonces it leaks break the key.
func GenerateDataset(opts GenerateOptions) (*Dataset, *big.Int, error) {
	if opts.Curve == nil {
		return nil, nil, fmt.Errorf("%w: no curve", ErrInvalidDataset)
	}
	if opts.Count < 0 {
		return nil, nil, fmt.Errorf("%w: negative signature count %d", ErrInvalidDataset, opts.Count)
	}
	n := opts.Curve.Order()
	nBits := n.BitLen()
	if opts.Known.Bits <= 0 || opts.Known.Bits >= nBits {
		return nil, nil, fmt.Errorf("%w: cannot leak %d bits of a %d-bit nonce", ErrInvalidDataset, opts.Known.Bits, nBits)
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Reader
	}

	d := opts.PrivateKey
	if d == nil {
		var err error
		if d, err = randomScalar(rnd, n); err != nil {
			return nil, nil, err
		}
	} else if !inScalarRange(d, n) {
		return nil, nil, fmt.Errorf("%w: private key out of range", ErrInvalidDataset)
	}

	ds := &Dataset{
		Curve:     opts.Curve,
		PublicKey: PublicKeyOf(opts.Curve, d),
		Known:     opts.Known,
	}
	var shared *big.Int
	if opts.Message != nil {
		ds.Message = append([]byte(nil), opts.Message...)
		shared = HashMessage(opts.Curve, ds.Message)
	}

	mask := new(big.Int).Lsh(big.NewInt(1), uint(opts.Known.Bits))
	mask.Sub(mask, big.NewInt(1))
	ds.Signatures = make([]*Signature, 0, opts.Count)
	for len(ds.Signatures) < opts.Count {
		h := shared
		if h == nil {
			var err error
			if h, err = randomScalar(rnd, n); err != nil {
				return nil, nil, err
			}
		}
		k, err := randomScalar(rnd, n)
		if err != nil {
			return nil, nil, err
		}
		r, s, ok := signWithNonce(opts.Curve, d, k, h)
		if !ok {
			continue
		}

		sig := &Signature{R: r, S: s}
		if opts.Known.Type == LSB {
			sig.KP = new(big.Int).And(k, mask)
		} else {
			sig.KP = new(big.Int).Rsh(k, uint(nBits-opts.Known.Bits))
		}
		if shared == nil {
			sig.Hash = h
		}
		ds.Signatures = append(ds.Signatures, sig)
	}
	return ds, d, nil
}

// signWithNonce computes the ECDSA signature of hash h with key d and nonce k.
// It reports false when r or s is zero and the nonce must be redrawn.
func signWithNonce(c Curve, d, k, h *big.Int) (r, s *big.Int, ok bool) {
	n := c.Order()
	x, _ := c.ScalarBaseMult(k)
	r = new(big.Int).Mod(x, n)
	if r.Sign() == 0 {
		return nil, nil, false
	}
	s = new(big.Int).Mul(r, d)
	s.Add(s, h)
	s.Mul(s, ModInverse(k, n))
	s.Mod(s, n)
	if s.Sign() == 0 {
		return nil, nil, false
	}
	return r, s, true
}

// randomScalar draws a uniform integer in [1, n-1].
func randomScalar(rnd io.Reader, n *big.Int) (*big.Int, error) {
	limit := new(big.Int).Sub(n, big.NewInt(1))
	v, err := rand.Int(rnd, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to draw random scalar: %w", err)
	}
	return v.Add(v, big.NewInt(1)), nil
}
