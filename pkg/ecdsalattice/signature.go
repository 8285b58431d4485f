package ecdsalattice

import (
	"fmt"
	"math/big"
	"strings"
)

// KnownType tells which end of the nonce leaked.
type KnownType int

const (
	// LSB means the least significant bits of each nonce are known.
	LSB KnownType = iota
	// MSB means the most significant bits of each nonce are known.
	MSB
)

func (t KnownType) String() string {
	switch t {
	case LSB:
		return "LSB"
	case MSB:
		return "MSB"
	default:
		return fmt.Sprintf("KnownType(%d)", int(t))
	}
}

// ParseKnownType parses "LSB" or "MSB" (case insensitive).
func ParseKnownType(s string) (KnownType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LSB":
		return LSB, nil
	case "MSB":
		return MSB, nil
	default:
		return 0, fmt.Errorf("%w: known_type must be LSB or MSB, got %q", ErrInvalidDataset, s)
	}
}

// KnownBits describes the leak: how many bits of every nonce are known and where.
type KnownBits struct {
	Type KnownType
	Bits int
}

// Signature is an ECDSA signature together with the leaked part of its nonce.
type Signature struct {
	R  *big.Int // r component of the signature
	S  *big.Int // s component of the signature
	KP *big.Int // known nonce bits, right aligned: k mod 2^l (LSB) or k >> (b-l) (MSB)
	// Hash is the message hash as an integer. Nil when the dataset carries a
	// shared message for all signatures.
	Hash *big.Int
}

// PublicKey is an affine curve point.
type PublicKey struct {
	X *big.Int
	Y *big.Int
}

// Equal reports whether both points have the same coordinates.
func (p PublicKey) Equal(q PublicKey) bool {
	if p.X == nil || p.Y == nil || q.X == nil || q.Y == nil {
		return false
	}
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// Dataset is everything the attack consumes: the curve, the target public key,
// the leak configuration and the signatures.
type Dataset struct {
	Curve     Curve
	PublicKey PublicKey
	// Message, when set, is the message signed by every signature. It is
	// hashed with SHA-256.
	Message    []byte
	Known      KnownBits
	Signatures []*Signature
}

// HashOf returns the hash integer used by sig.
func (d *Dataset) HashOf(sig *Signature) *big.Int {
	if sig.Hash != nil {
		return sig.Hash
	}
	if d.Message != nil {
		return HashMessage(d.Curve, d.Message)
	}
	return nil
}

// Validate checks the dataset for structural problems. It does not judge
// whether the attack is feasible; that is the estimator's job.
func (d *Dataset) Validate() error {
	if d.Curve == nil {
		return fmt.Errorf("%w: no curve", ErrInvalidDataset)
	}
	if d.PublicKey.X == nil || d.PublicKey.Y == nil {
		return fmt.Errorf("%w: missing public key", ErrInvalidDataset)
	}
	if !d.Curve.IsOnCurve(d.PublicKey.X, d.PublicKey.Y) {
		return fmt.Errorf("%w: public key is not on curve %s", ErrInvalidDataset, d.Curve.Name())
	}
	if d.Known.Type != LSB && d.Known.Type != MSB {
		return fmt.Errorf("%w: unknown known_type %v", ErrInvalidDataset, d.Known.Type)
	}
	if d.Known.Bits <= 0 {
		return fmt.Errorf("%w: known_bits must be positive, got %d", ErrInvalidDataset, d.Known.Bits)
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(d.Known.Bits))
	for i, sig := range d.Signatures {
		if sig == nil || sig.R == nil || sig.S == nil || sig.KP == nil {
			return fmt.Errorf("%w: signature %d is incomplete", ErrInvalidDataset, i)
		}
		if sig.KP.Sign() < 0 || sig.KP.Cmp(limit) >= 0 {
			return fmt.Errorf("%w: signature %d: kp %s does not fit in %d bits", ErrInvalidDataset, i, sig.KP, d.Known.Bits)
		}
		if d.HashOf(sig) == nil {
			return fmt.Errorf("%w: signature %d has no hash and the dataset has no message", ErrInvalidDataset, i)
		}
	}
	return nil
}

// RecoveryResult contains the result of a successful attack.
type RecoveryResult struct {
	PrivateKey *big.Int // Recovered private key, always verified against the public key
	Attempts   int      // Attempt number that produced the key (1-based)
	Subset     []int    // Indices of the signatures used, in lattice row order
	Mode       Mode     // Lattice variant used
	BlockSize  int      // Reduction pass that exposed the key (0 = LLL)
}
