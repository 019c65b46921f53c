// Package party defines the x-coordinate identifiers used to index shares
// on the sharing polynomial.
package party

import (
	"encoding/binary"
	"sort"
	"strconv"

	"github.com/cronokirby/saferith"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
)

// ByteSize is the number of bytes required to store an ID.
const ByteSize = 2

// ID is the x-coordinate of a share on the sharing polynomial.
// The zero ID is invalid: evaluating the polynomial at 0 is the secret.
type ID uint16

// Scalar returns the corresponding curve.Scalar.
func (p ID) Scalar(group curve.Curve) curve.Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetUint64(uint64(p)))
}

// Bytes returns a []byte slice of length party.ByteSize.
func (p ID) Bytes() []byte {
	bytes := make([]byte, ByteSize)
	binary.BigEndian.PutUint16(bytes, uint16(p))
	return bytes
}

// String returns a base 10 representation of ID.
func (p ID) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// FromBytes reads the first party.ByteSize bytes from b and creates an ID from it.
func FromBytes(b []byte) ID {
	return ID(binary.BigEndian.Uint16(b))
}

// IDSlice is a sorted set of IDs.
type IDSlice []ID

// NewIDSlice returns a sorted copy of ids.
func NewIDSlice(ids []ID) IDSlice {
	out := make(IDSlice, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether id is present.
func (ids IDSlice) Contains(id ID) bool {
	for _, other := range ids {
		if other == id {
			return true
		}
	}
	return false
}

// Copy returns a new slice with the same contents.
func (ids IDSlice) Copy() IDSlice {
	out := make(IDSlice, len(ids))
	copy(out, ids)
	return out
}

// Max returns the largest ID, or 0 for an empty slice.
func (ids IDSlice) Max() ID {
	var max ID
	for _, id := range ids {
		if id > max {
			max = id
		}
	}
	return max
}

// Remove returns a copy of ids without id.
func (ids IDSlice) Remove(id ID) IDSlice {
	out := make(IDSlice, 0, len(ids))
	for _, other := range ids {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}
