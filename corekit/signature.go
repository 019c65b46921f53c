package corekit

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
)

// secp256k1HalfOrder is n/2, the low-s boundary.
var secp256k1HalfOrder = mustHex("7fffffffffffffffffffffffffffffff5d576e7357a4501ddfe92f46681b20a0")

func mustHex(s string) []byte {
	data, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return data
}

// ECDSASignature is a recoverable secp256k1 signature in (r, s, v) form
// with s normalized to the low half of the order.
type ECDSASignature struct {
	R []byte
	S []byte
	V byte
}

// Bytes returns the 65-byte r ‖ s ‖ v encoding.
func (sig *ECDSASignature) Bytes() []byte {
	out := make([]byte, 0, 65)
	out = append(out, sig.R...)
	out = append(out, sig.S...)
	return append(out, sig.V)
}

// Verify checks the signature over a 32-byte digest against the public
// key.
func (sig *ECDSASignature) Verify(pub curve.Point, digest []byte) bool {
	group := curve.Secp256k1{}
	r := group.NewScalar()
	s := group.NewScalar()
	if r.UnmarshalBinary(sig.R) != nil || s.UnmarshalBinary(sig.S) != nil {
		return false
	}
	if r.IsZero() || s.IsZero() {
		return false
	}
	m := curve.FromHash(group, digest)
	sInv := group.NewScalar().Set(s).Invert()
	u1 := group.NewScalar().Set(m).Mul(sInv)
	u2 := group.NewScalar().Set(r).Mul(sInv)
	point := u1.ActOnBase().Add(u2.Act(pub))
	if point.IsIdentity() {
		return false
	}
	return point.XScalar().Equal(r)
}

// isLowS reports whether the 32-byte big-endian scalar lies in the lower
// half of the secp256k1 order.
func isLowS(s []byte) bool {
	return bytes.Compare(s, secp256k1HalfOrder) <= 0
}

// EdDSASignature is a compact 64-byte ed25519 signature, verifiable with
// crypto/ed25519.
type EdDSASignature struct {
	R []byte
	S []byte
}

// Bytes returns the 64-byte R ‖ s encoding.
func (sig *EdDSASignature) Bytes() []byte {
	out := make([]byte, 0, 64)
	out = append(out, sig.R...)
	return append(out, sig.S...)
}

// Verify checks the signature over message against the 32-byte public key.
func (sig *EdDSASignature) Verify(pubKey, message []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), message, sig.Bytes())
}
