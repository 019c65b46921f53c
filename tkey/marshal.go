package tkey

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

// encMode is the canonical CBOR encoder. Canonical map ordering keeps the
// marshalled record deterministic, which the conflict check and the
// atomicity guarantees rely on.
var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// metadataWire is the method-less alias the codec sees. Encoding the
// Metadata type directly would dispatch back into MarshalBinary.
type metadataWire Metadata

// MarshalBinary encodes the record as canonical CBOR.
func (m *Metadata) MarshalBinary() ([]byte, error) {
	return encMode.Marshal((*metadataWire)(m))
}

// UnmarshalBinary decodes a record previously produced by MarshalBinary.
func (m *Metadata) UnmarshalBinary(data []byte) error {
	if err := cbor.Unmarshal(data, (*metadataWire)(m)); err != nil {
		return fmt.Errorf("tkey: decoding metadata: %w", err)
	}
	if m.FactorEncs == nil {
		m.FactorEncs = make(map[string]*FactorEnc)
	}
	if m.Descriptions == nil {
		m.Descriptions = make(map[string][]string)
	}
	return nil
}

// Clone deep-copies the record through its wire form.
func (m *Metadata) Clone() *Metadata {
	data, err := m.MarshalBinary()
	if err != nil {
		panic(err)
	}
	out := new(Metadata)
	if err := out.UnmarshalBinary(data); err != nil {
		panic(err)
	}
	return out
}

// sharePayload is the plaintext sealed inside a share fragment.
type sharePayload struct {
	Share    []byte   `cbor:"share"`
	TSSIndex party.ID `cbor:"tssIndex"`
	Epoch    uint64   `cbor:"epoch"`
}

func (p *sharePayload) marshal() ([]byte, error) {
	return encMode.Marshal(p)
}

func (p *sharePayload) unmarshal(data []byte) error {
	if err := cbor.Unmarshal(data, p); err != nil {
		return fmt.Errorf("tkey: decoding share payload: %w", err)
	}
	return nil
}
