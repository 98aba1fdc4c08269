// Package ecc defines the elliptic curve group operations needed by the
// ElGamal encryption and the range proofs that seal confidential amounts.
package ecc

import "math/big"

// Point is an affine point of a prime order elliptic curve group. Methods
// that take operands store the result in the receiver, so a receiver may be
// reused as one of its own operands.
type Point interface {
	// New returns a new point of the same curve, set to the identity.
	New() Point

	// Order returns the order of the group.
	Order() *big.Int

	// Add sets the receiver to a + b.
	Add(a, b Point)

	// Neg sets the receiver to -a.
	Neg(a Point)

	// ScalarMult sets the receiver to scalar * a.
	ScalarMult(a Point, scalar *big.Int)

	// ScalarBaseMult sets the receiver to scalar * G, where G is the
	// generator of the group.
	ScalarBaseMult(scalar *big.Int)

	// Marshal returns the fixed size uncompressed encoding of the point.
	Marshal() []byte

	// Unmarshal sets the receiver to the point encoded in buf. It fails if
	// buf does not encode a valid point of the group.
	Unmarshal(buf []byte) error

	// Equal reports whether the receiver and a are the same point.
	Equal(a Point) bool

	// IsZero reports whether the receiver is the identity (point at
	// infinity).
	IsZero() bool

	// SetZero sets the receiver to the identity.
	SetZero()

	// Set sets the receiver to a.
	Set(a Point)

	// SetGenerator sets the receiver to the generator of the group.
	SetGenerator()

	// Point returns the affine coordinates of the point.
	Point() (*big.Int, *big.Int)

	// String returns the hex encoding of Marshal.
	String() string
}
