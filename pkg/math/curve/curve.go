// Package curve wraps the scalar and point arithmetic of the supported
// signing groups behind a common interface.
package curve

import (
	"encoding"

	"github.com/cronokirby/saferith"
)

// Curve represents the starting point for working with a particular group.
type Curve interface {
	NewPoint() Point
	NewBasePoint() Point
	NewScalar() Scalar
	Name() string
	// ScalarBytes is the length of a marshalled scalar.
	ScalarBytes() int
	// PointBytes is the length of a marshalled point.
	PointBytes() int
	Order() *saferith.Modulus
}

// Scalar is a number modulo the group order. Operations mutate the receiver
// and return it for chaining.
type Scalar interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Negate() Scalar
	Mul(Scalar) Scalar
	Invert() Scalar
	Equal(Scalar) bool
	IsZero() bool
	Set(Scalar) Scalar
	SetNat(*saferith.Nat) Scalar
	SetUInt32(uint32) Scalar
	Act(Point) Point
	ActOnBase() Point
}

// Point is an element of the group.
type Point interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Point) Point
	Sub(Point) Point
	Negate() Point
	Equal(Point) bool
	IsIdentity() bool
	// XScalar returns the x-coordinate reduced modulo the group order,
	// or nil if the curve does not support this (non short-Weierstrass).
	XScalar() Scalar
	// HasEvenY reports whether the affine y-coordinate is even.
	// Only meaningful for short-Weierstrass curves.
	HasEvenY() bool
}

// FromHash converts a hash value to a Scalar.
//
// The hash is truncated to the bit length of the curve order, with excess
// bits shifted out, mirroring what crypto/ecdsa and OpenSSL do.
func FromHash(group Curve, h []byte) Scalar {
	order := group.Order()
	orderBits := order.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(h) > orderBytes {
		h = h[:orderBytes]
	}
	s := new(saferith.Nat).SetBytes(h)
	excess := len(h)*8 - orderBits
	if excess > 0 {
		s.Rsh(s, uint(excess), -1)
	}
	return group.NewScalar().SetNat(s)
}
