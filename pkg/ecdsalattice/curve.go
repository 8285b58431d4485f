package ecdsalattice

import (
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Curve is the elliptic curve arithmetic the attack needs.
type Curve interface {
	// Name returns the canonical curve name, e.g. "SECP256K1".
	Name() string
	// Order returns the prime order n of the base point.
	Order() *big.Int
	// ScalarBaseMult returns k*G in affine coordinates. k must be in [1, n-1].
	ScalarBaseMult(k *big.Int) (x, y *big.Int)
	// IsOnCurve reports whether (x, y) is a point of the curve.
	IsOnCurve(x, y *big.Int) bool
}

// secp256k1Curve uses the decred implementation.
type secp256k1Curve struct{}

func (secp256k1Curve) Name() string { return "SECP256K1" }

func (secp256k1Curve) Order() *big.Int { return secp256k1.S256().N }

func (secp256k1Curve) ScalarBaseMult(k *big.Int) (*big.Int, *big.Int) {
	var buf [32]byte
	new(big.Int).Mod(k, secp256k1.S256().N).FillBytes(buf[:])
	pub := secp256k1.PrivKeyFromBytes(buf[:]).PubKey()
	return pub.X(), pub.Y()
}

func (secp256k1Curve) IsOnCurve(x, y *big.Int) bool {
	return secp256k1.S256().IsOnCurve(x, y)
}

// nistCurve wraps the standard library NIST curves.
type nistCurve struct {
	name  string
	curve elliptic.Curve
}

func (c nistCurve) Name() string { return c.name }

func (c nistCurve) Order() *big.Int { return c.curve.Params().N }

func (c nistCurve) ScalarBaseMult(k *big.Int) (*big.Int, *big.Int) {
	n := c.curve.Params().N
	buf := make([]byte, (n.BitLen()+7)/8)
	new(big.Int).Mod(k, n).FillBytes(buf)
	return c.curve.ScalarBaseMult(buf)
}

func (c nistCurve) IsOnCurve(x, y *big.Int) bool {
	return c.curve.IsOnCurve(x, y)
}

var curves = map[string]Curve{
	"SECP224R1": nistCurve{name: "SECP224R1", curve: elliptic.P224()},
	"SECP256K1": secp256k1Curve{},
	"SECP256R1": nistCurve{name: "SECP256R1", curve: elliptic.P256()},
	"SECP384R1": nistCurve{name: "SECP384R1", curve: elliptic.P384()},
	"SECP521R1": nistCurve{name: "SECP521R1", curve: elliptic.P521()},
}

var curveAliases = map[string]string{
	"P224":       "SECP224R1",
	"P256":       "SECP256R1",
	"PRIME256V1": "SECP256R1",
	"P384":       "SECP384R1",
	"P521":       "SECP521R1",
}

// LookupCurve returns the curve with the given name. Names are case insensitive;
// "P-256" style aliases are accepted for the NIST curves.
func LookupCurve(name string) (Curve, error) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	if alias, ok := curveAliases[key]; ok {
		key = alias
	}
	c, ok := curves[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownCurve, name, strings.Join(CurveNames(), ", "))
	}
	return c, nil
}

// CurveNames lists the canonical names of the supported curves.
func CurveNames() []string {
	names := make([]string, 0, len(curves))
	for name := range curves {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModInverse returns a^-1 mod n for a prime n. a must not be a multiple of n.
func ModInverse(a, n *big.Int) *big.Int {
	m := saferith.ModulusFromBytes(n.Bytes())
	x := new(saferith.Nat).SetBig(new(big.Int).Mod(a, n), n.BitLen())
	return new(saferith.Nat).ModInverse(x, m).Big()
}

// HashToInt converts a digest to an integer the way ECDSA does: the digest is
// truncated to the bit length of the curve order.
func HashToInt(digest []byte, n *big.Int) *big.Int {
	orderBits := n.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(digest) > orderBytes {
		digest = digest[:orderBytes]
	}
	h := new(big.Int).SetBytes(digest)
	if excess := len(digest)*8 - orderBits; excess > 0 {
		h.Rsh(h, uint(excess))
	}
	return h
}

// HashMessage hashes a message with SHA-256 and converts it for curve c.
func HashMessage(c Curve, message []byte) *big.Int {
	digest := sha256.Sum256(message)
	return HashToInt(digest[:], c.Order())
}
