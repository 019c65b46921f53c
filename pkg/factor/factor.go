// Package factor implements the user-held secrets ("factors") that gate
// access to shares of the threshold key. A factor key is a secp256k1
// scalar regardless of the signing key type; its public point indexes the
// factor registry and is the encryption target for share backups.
package factor

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/argon2"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/sample"
)

// Group is the auxiliary curve all factor keys live on.
var Group = curve.Secp256k1{}

// Key is a user-held factor secret. It is never persisted remotely in
// cleartext.
type Key struct {
	scalar curve.Scalar
}

// Pub is the compressed public point of a factor key, used as the registry
// index for the factor.
type Pub [33]byte

// Generate samples a fresh factor key.
func Generate(rand io.Reader) *Key {
	return &Key{scalar: sample.ScalarUnit(rand, Group)}
}

// FromBytes builds a factor key from a 32-byte scalar encoding.
func FromBytes(data []byte) (*Key, error) {
	s := Group.NewScalar()
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("factor: %w", err)
	}
	if s.IsZero() {
		return nil, errors.New("factor: zero factor key")
	}
	return &Key{scalar: s}, nil
}

// FromHex builds a factor key from its hex encoding.
func FromHex(h string) (*Key, error) {
	data, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("factor: invalid hex: %w", err)
	}
	return FromBytes(data)
}

// FromMnemonic recovers a factor key from a 24-word recovery phrase.
func FromMnemonic(mnemonic string) (*Key, error) {
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("factor: invalid recovery phrase: %w", err)
	}
	return FromBytes(entropy)
}

// answerParams are the argon2id parameters for security-answer factors.
const (
	answerTime    = 1
	answerMemory  = 64 * 1024
	answerThreads = 4
)

// FromAnswer derives a factor key from a security answer. The salt binds
// the derivation to one application so identical answers on different
// deployments produce unrelated keys.
func FromAnswer(answer, salt string) *Key {
	digest := argon2.IDKey([]byte(answer), []byte(salt), answerTime, answerMemory, answerThreads, 32)
	return &Key{scalar: curve.FromHash(Group, digest)}
}

// Scalar returns a copy of the underlying scalar.
func (k *Key) Scalar() curve.Scalar {
	return Group.NewScalar().Set(k.scalar)
}

// Bytes returns the 32-byte scalar encoding.
func (k *Key) Bytes() []byte {
	data, err := k.scalar.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return data
}

// Hex returns the hex encoding of the factor key.
func (k *Key) Hex() string {
	return hex.EncodeToString(k.Bytes())
}

// Mnemonic encodes the factor key as a 24-word recovery phrase.
func (k *Key) Mnemonic() (string, error) {
	m, err := bip39.NewMnemonic(k.Bytes())
	if err != nil {
		return "", fmt.Errorf("factor: %w", err)
	}
	return m, nil
}

// Pub returns the compressed public point of the factor key.
func (k *Key) Pub() Pub {
	data, err := k.scalar.ActOnBase().MarshalBinary()
	if err != nil {
		panic(err)
	}
	var out Pub
	copy(out[:], data)
	return out
}

// Point decodes the Pub back into a curve point.
func (p Pub) Point() (curve.Point, error) {
	point := Group.NewPoint()
	if err := point.UnmarshalBinary(p[:]); err != nil {
		return nil, fmt.Errorf("factor: invalid factor pub: %w", err)
	}
	return point, nil
}

// Hex returns the hex encoding of the compressed point.
func (p Pub) Hex() string {
	return hex.EncodeToString(p[:])
}

// PubFromHex parses a compressed factor public key from hex.
func PubFromHex(h string) (Pub, error) {
	var out Pub
	data, err := hex.DecodeString(h)
	if err != nil || len(data) != len(out) {
		return out, errors.New("factor: invalid factor pub encoding")
	}
	copy(out[:], data)
	if _, err := out.Point(); err != nil {
		return out, err
	}
	return out, nil
}
