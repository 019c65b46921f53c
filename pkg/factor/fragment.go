package factor

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/sample"
)

const fragmentInfo = "mpc-core-kit/fragment/v1"

// Fragment is an encrypted blob sealed to a factor public key. Only the
// holder of the matching factor key can open it.
type Fragment struct {
	Ephemeral  []byte `cbor:"eph"`
	Nonce      []byte `cbor:"nonce"`
	Ciphertext []byte `cbor:"ct"`
}

// Seal encrypts plaintext to the factor public key using an ephemeral
// ECDH exchange and ChaCha20-Poly1305.
func Seal(rand io.Reader, to Pub, plaintext []byte) (*Fragment, error) {
	point, err := to.Point()
	if err != nil {
		return nil, err
	}
	eph := sample.ScalarUnit(rand, Group)
	ephPub, err := eph.ActOnBase().MarshalBinary()
	if err != nil {
		return nil, err
	}
	shared, err := eph.Act(point).MarshalBinary()
	if err != nil {
		return nil, err
	}
	aead, err := fragmentAEAD(shared, ephPub)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, fmt.Errorf("factor: sampling nonce: %w", err)
	}
	return &Fragment{
		Ephemeral:  ephPub,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, ephPub),
	}, nil
}

// Open decrypts the fragment with the matching factor key.
func (f *Fragment) Open(with *Key) ([]byte, error) {
	ephPoint := Group.NewPoint()
	if err := ephPoint.UnmarshalBinary(f.Ephemeral); err != nil {
		return nil, errors.New("factor: malformed fragment ephemeral key")
	}
	shared, err := with.Scalar().Act(ephPoint).MarshalBinary()
	if err != nil {
		return nil, err
	}
	aead, err := fragmentAEAD(shared, f.Ephemeral)
	if err != nil {
		return nil, err
	}
	// The nonce comes from the remote record; the AEAD panics on a wrong
	// length instead of returning an error.
	if len(f.Nonce) != aead.NonceSize() {
		return nil, errors.New("factor: fragment does not match factor key")
	}
	plaintext, err := aead.Open(nil, f.Nonce, f.Ciphertext, f.Ephemeral)
	if err != nil {
		return nil, errors.New("factor: fragment does not match factor key")
	}
	return plaintext, nil
}

func fragmentAEAD(shared, salt []byte) (cipher.AEAD, error) {
	kdf := hkdf.New(func() hash.Hash { return blake3.New() }, shared, salt, []byte(fragmentInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}
