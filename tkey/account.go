package tkey

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
)

const accountNonceInfo = "mpc-core-kit/account-nonce/v1"

// AccountNonce derives the deterministic offset scalar for an account
// index. Index 0 is the base account and maps to the zero scalar, so the
// derived key equals the base key.
func AccountNonce(group curve.Curve, basePub curve.Point, index uint32) (curve.Scalar, error) {
	if index == 0 {
		return group.NewScalar(), nil
	}
	pubBytes, err := basePub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var indexBytes [4]byte
	binary.BigEndian.PutUint32(indexBytes[:], index)
	h := blake3.New()
	_, _ = h.Write([]byte(accountNonceInfo))
	_, _ = h.Write(pubBytes)
	_, _ = h.Write(indexBytes[:])
	return curve.FromHash(group, h.Sum(nil)), nil
}

// DeriveShare offsets a share by the account nonce. Adding the same
// constant to every share shifts the whole polynomial by that constant, so
// the derived shares still interpolate to secret + nonce.
func DeriveShare(group curve.Curve, share, nonce curve.Scalar) curve.Scalar {
	return group.NewScalar().Set(share).Add(nonce)
}

// DerivePub returns the public key of the derived account,
// basePub + nonce·G.
func DerivePub(basePub curve.Point, nonce curve.Scalar) curve.Point {
	return basePub.Add(nonce.ActOnBase())
}
