// Package tkey maintains the versioned metadata record of a threshold key:
// the factor registry, the encrypted share backups, and the resharing epoch.
// All mutations go through the atomic controller so a failed multi-step
// operation never leaves a partially updated record behind.
package tkey

import (
	"fmt"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/polynomial"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

// KeyType selects the signing group of the threshold key.
type KeyType string

const (
	KeyTypeSecp256k1 KeyType = "secp256k1"
	KeyTypeEd25519   KeyType = "ed25519"
)

// Group returns the curve implementation for the key type.
func (kt KeyType) Group() (curve.Curve, error) {
	switch kt {
	case KeyTypeSecp256k1:
		return curve.Secp256k1{}, nil
	case KeyTypeEd25519:
		return curve.Ed25519{}, nil
	default:
		return nil, coreerr.Newf(coreerr.CodeInvalidKeyType, "unknown key type %q", string(kt))
	}
}

// Valid reports whether the key type is one of the supported groups.
func (kt KeyType) Valid() bool {
	_, err := kt.Group()
	return err == nil
}

// Share indices a client factor may hold. TSSIndexDevice marks a factor
// bound to one device, TSSIndexRecovery a portable recovery factor.
const (
	TSSIndexDevice   party.ID = 2
	TSSIndexRecovery party.ID = 3
)

// MaxFactors bounds the factor registry.
const MaxFactors = 10

// ValidTSSIndex reports whether idx is an assignable share type.
func ValidTSSIndex(idx party.ID) bool {
	return idx == TSSIndexDevice || idx == TSSIndexRecovery
}

// FactorEnc is the registry entry for one factor: its assigned share index
// and the share fragment sealed to the factor public key.
type FactorEnc struct {
	TSSIndex party.ID         `cbor:"tssIndex"`
	Fragment *factor.Fragment `cbor:"fragment"`
}

// Metadata is the remote record describing one threshold key. It is the
// unit of atomicity: the whole record is replaced on every flush.
type Metadata struct {
	KeyType KeyType `cbor:"keyType"`
	TssTag  string  `cbor:"tssTag"`
	// PubKey is the compressed base public key, f(0)·G.
	PubKey []byte `cbor:"pubKey"`
	// Nonce is the resharing epoch. Every reshare increments it.
	Nonce uint64 `cbor:"nonce"`
	// ServerCount is the size of the signing quorum the key was generated
	// with. It fixes the polynomial layout for the ed25519 scheme.
	ServerCount int `cbor:"serverCount"`
	// Commitments is the exponent polynomial of the current epoch.
	Commitments [][]byte `cbor:"commitments"`
	// FactorPubs lists registered factors in creation order.
	FactorPubs []factor.Pub `cbor:"factorPubs"`
	// FactorEncs maps hex factor pub to its registry entry.
	FactorEncs map[string]*FactorEnc `cbor:"factorEncs"`
	// Descriptions maps hex factor pub to caller-supplied label blobs.
	Descriptions map[string][]string `cbor:"shareDescriptions"`
}

// Group returns the curve of the record's key type.
func (m *Metadata) Group() (curve.Curve, error) {
	return m.KeyType.Group()
}

// HasFactor reports whether pub is registered.
func (m *Metadata) HasFactor(pub factor.Pub) bool {
	_, ok := m.FactorEncs[pub.Hex()]
	return ok
}

// Enc returns the registry entry for pub.
func (m *Metadata) Enc(pub factor.Pub) (*FactorEnc, bool) {
	enc, ok := m.FactorEncs[pub.Hex()]
	return enc, ok
}

// IndicesInUse returns the sorted set of share indices currently assigned
// to at least one factor.
func (m *Metadata) IndicesInUse() party.IDSlice {
	seen := make(map[party.ID]struct{}, len(m.FactorEncs))
	ids := make([]party.ID, 0, len(m.FactorEncs))
	for _, enc := range m.FactorEncs {
		if _, ok := seen[enc.TSSIndex]; ok {
			continue
		}
		seen[enc.TSSIndex] = struct{}{}
		ids = append(ids, enc.TSSIndex)
	}
	return party.NewIDSlice(ids)
}

// PolyIndex maps a factor's share index to its x-coordinate on the sharing
// polynomial. The secp256k1 hierarchy uses the share index directly; the
// flat ed25519 scheme places clients above the server block at x = 1..n.
func (m *Metadata) PolyIndex(tssIndex party.ID) party.ID {
	if m.KeyType == KeyTypeEd25519 {
		return party.ID(m.ServerCount) + tssIndex - 1
	}
	return tssIndex
}

// ShareDomain is the full interpolation domain a client at the given share
// index reconstructs with: the server block plus the client's own point.
func (m *Metadata) ShareDomain(tssIndex party.ID) party.IDSlice {
	clientX := m.PolyIndex(tssIndex)
	if m.KeyType == KeyTypeEd25519 {
		xs := make([]party.ID, 0, m.ServerCount+1)
		for i := 1; i <= m.ServerCount; i++ {
			xs = append(xs, party.ID(i))
		}
		return party.NewIDSlice(append(xs, clientX))
	}
	return party.NewIDSlice([]party.ID{polynomial.ServerRootIndex, clientX})
}

// PublicPoint decodes the stored base public key.
func (m *Metadata) PublicPoint() (curve.Point, error) {
	group, err := m.Group()
	if err != nil {
		return nil, err
	}
	point := group.NewPoint()
	if err := point.UnmarshalBinary(m.PubKey); err != nil {
		return nil, fmt.Errorf("tkey: invalid stored public key: %w", err)
	}
	return point, nil
}

// CommitmentPoints decodes the stored exponent polynomial.
func (m *Metadata) CommitmentPoints() ([]curve.Point, error) {
	group, err := m.Group()
	if err != nil {
		return nil, err
	}
	out := make([]curve.Point, len(m.Commitments))
	for i, data := range m.Commitments {
		point := group.NewPoint()
		if err := point.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("tkey: invalid commitment %d: %w", i, err)
		}
		out[i] = point
	}
	return out, nil
}

// verifyShare checks a share against the stored commitments at the given
// polynomial x-coordinate.
func (m *Metadata) verifyShare(polyX party.ID, share curve.Scalar) error {
	group, err := m.Group()
	if err != nil {
		return err
	}
	commitments, err := m.CommitmentPoints()
	if err != nil {
		return err
	}
	expected := polynomial.EvalCommitments(group, commitments, polyX.Scalar(group))
	if !share.ActOnBase().Equal(expected) {
		return coreerr.Newf(coreerr.CodeReconstructionFailed,
			"share at index %s does not match epoch %d commitments", polyX, m.Nonce)
	}
	return nil
}
