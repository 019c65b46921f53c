package tkey_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

func TestMetadataMarshalRoundTrip(t *testing.T) {
	meta := &tkey.Metadata{
		KeyType:     tkey.KeyTypeSecp256k1,
		TssTag:      "default",
		PubKey:      []byte{0x02, 0x01, 0x02, 0x03},
		Nonce:       3,
		ServerCount: 3,
		Commitments: [][]byte{{0x02, 0xaa}, {0x03, 0xbb}},
		FactorPubs:  []factor.Pub{{0x02, 0x01}},
		FactorEncs: map[string]*tkey.FactorEnc{
			"ab": {
				TSSIndex: tkey.TSSIndexDevice,
				Fragment: &factor.Fragment{
					Ephemeral:  []byte{0x02, 0x04},
					Nonce:      []byte{0x05},
					Ciphertext: []byte{0x06},
				},
			},
		},
		Descriptions: map[string][]string{"ab": {`{"module":"deviceShare"}`}},
	}

	data, err := meta.MarshalBinary()
	require.NoError(t, err)

	again, err := meta.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, again, "canonical encoding must be deterministic")

	out := new(tkey.Metadata)
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, meta, out)
}

// A minimal record must still encode and decode; the marshaller may not
// recurse into itself.
func TestMetadataMarshalMinimalRecord(t *testing.T) {
	data, err := (&tkey.Metadata{KeyType: tkey.KeyTypeSecp256k1}).MarshalBinary()
	require.NoError(t, err)

	out := new(tkey.Metadata)
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, tkey.KeyTypeSecp256k1, out.KeyType)
	assert.NotNil(t, out.FactorEncs)
	assert.NotNil(t, out.Descriptions)
}

func TestMetadataCloneIsIndependent(t *testing.T) {
	meta := &tkey.Metadata{
		KeyType:      tkey.KeyTypeSecp256k1,
		Nonce:        1,
		FactorEncs:   map[string]*tkey.FactorEnc{"ab": {TSSIndex: tkey.TSSIndexDevice}},
		Descriptions: map[string][]string{"ab": {"device"}},
	}

	clone := meta.Clone()
	clone.Nonce = 9
	clone.FactorEncs["cd"] = &tkey.FactorEnc{TSSIndex: tkey.TSSIndexRecovery}
	clone.Descriptions["ab"] = append(clone.Descriptions["ab"], "extra")

	assert.Equal(t, uint64(1), meta.Nonce)
	assert.Len(t, meta.FactorEncs, 1)
	assert.Equal(t, []string{"device"}, meta.Descriptions["ab"])
	assert.Equal(t, party.ID(2), meta.FactorEncs["ab"].TSSIndex)
}
