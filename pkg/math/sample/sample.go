// Package sample implements uniform sampling of scalars.
package sample

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
)

// overshoot is the number of extra random bytes drawn before modular
// reduction, keeping the sampling bias negligible.
const overshoot = 16

// Scalar returns a new uniformly sampled scalar of the given group.
func Scalar(rand io.Reader, group curve.Curve) curve.Scalar {
	buf := make([]byte, group.ScalarBytes()+overshoot)
	mustReadBits(rand, buf)
	n := new(saferith.Nat).SetBytes(buf)
	return group.NewScalar().SetNat(n)
}

// ScalarUnit returns a new uniformly sampled non-zero scalar of the given group.
func ScalarUnit(rand io.Reader, group curve.Curve) curve.Scalar {
	for {
		s := Scalar(rand, group)
		if !s.IsZero() {
			return s
		}
	}
}

const maxIterations = 255

// mustReadBits panics when the reader fails repeatedly, since no sensible
// recovery exists for a broken entropy source.
func mustReadBits(rand io.Reader, buf []byte) {
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err == nil {
			return
		}
	}
	panic(fmt.Sprintf("sample: failed to read %d bytes from rand", len(buf)))
}
