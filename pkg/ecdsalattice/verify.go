package ecdsalattice

import "math/big"

// VerifyKey reports whether d*G equals pub on curve c.
func VerifyKey(c Curve, d *big.Int, pub PublicKey) bool {
	if !inScalarRange(d, c.Order()) {
		return false
	}
	x, y := c.ScalarBaseMult(d)
	return pub.Equal(PublicKey{X: x, Y: y})
}

// PublicKeyOf returns d*G on curve c.
func PublicKeyOf(c Curve, d *big.Int) PublicKey {
	x, y := c.ScalarBaseMult(d)
	return PublicKey{X: x, Y: y}
}
