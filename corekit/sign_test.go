package corekit_test

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

func TestSignECDSAVerifies(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	digest := sha256.Sum256([]byte("transfer 1 wei to bob"))
	sig, err := core.SignECDSA(ctx, digest[:])
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Len(t, sig.Bytes(), 65)

	pub, err := core.AccountPub()
	require.NoError(t, err)
	assert.True(t, sig.Verify(pub, digest[:]))

	other := sha256.Sum256([]byte("transfer everything to mallory"))
	assert.False(t, sig.Verify(pub, other[:]))
}

func TestSignECDSAWithAccountIndex(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	basePub, err := core.AccountPub()
	require.NoError(t, err)

	require.NoError(t, core.SetAccountIndex(1))
	accountPub, err := core.AccountPub()
	require.NoError(t, err)
	assert.False(t, accountPub.Equal(basePub), "account 1 must derive a distinct key")

	digest := sha256.Sum256([]byte("account 1 spend"))
	sig, err := core.SignECDSA(ctx, digest[:])
	require.NoError(t, err)
	assert.True(t, sig.Verify(accountPub, digest[:]))
	assert.False(t, sig.Verify(basePub, digest[:]))

	// The derived secret matches the derived public key.
	secretHex, err := core.UNSAFE_ExportTssKey(ctx)
	require.NoError(t, err)
	secretBytes, err := hex.DecodeString(secretHex)
	require.NoError(t, err)
	group, err := tkey.KeyTypeSecp256k1.Group()
	require.NoError(t, err)
	secret := group.NewScalar()
	require.NoError(t, secret.UnmarshalBinary(secretBytes))
	assert.True(t, secret.ActOnBase().Equal(accountPub))

	// Back to the base account.
	require.NoError(t, core.SetAccountIndex(0))
	backPub, err := core.AccountPub()
	require.NoError(t, err)
	assert.True(t, backPub.Equal(basePub))
}

func TestSignECDSARetriesStaleSessionOnce(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	// Warm a session, then invalidate it behind the client's back.
	require.NoError(t, core.Precompute(ctx))
	e.quorum.ExpireSessions()

	digest := sha256.Sum256([]byte("retried payload"))
	sig, err := core.SignECDSA(ctx, digest[:])
	require.NoError(t, err, "one stale session must be absorbed by the retry")
	pub, err := core.AccountPub()
	require.NoError(t, err)
	assert.True(t, sig.Verify(pub, digest[:]))
}

func TestSignEdDSAVerifies(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeEd25519, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	message := []byte("arbitrary length message, no prehash")
	sig, err := core.SignEdDSA(ctx, message)
	require.NoError(t, err)
	assert.Len(t, sig.Bytes(), 64)

	// Verify independently with the standard library.
	pubBytes, err := hex.DecodeString(core.GetKeyDetails().PubKeyHex)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pubBytes), message, sig.Bytes()))
	assert.False(t, ed25519.Verify(ed25519.PublicKey(pubBytes), []byte("different message"), sig.Bytes()))
}

func TestSignEdDSARetriesStaleSessionOnce(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeEd25519, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	require.NoError(t, core.Precompute(ctx))
	e.quorum.ExpireSessions()

	message := []byte("retried payload")
	sig, err := core.SignEdDSA(ctx, message)
	require.NoError(t, err)
	pubBytes, err := hex.DecodeString(core.GetKeyDetails().PubKeyHex)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pubBytes), message, sig.Bytes()))
}

func TestSignSchemeGuards(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	_, err = core.SignEdDSA(ctx, []byte("message"))
	assert.True(t, coreerr.HasCode(err, coreerr.CodeInvalidKeyType))

	_, err = core.SignECDSA(ctx, []byte("short"))
	assert.True(t, coreerr.HasCode(err, coreerr.CodeInvalidOptions))
}

func TestAccountIndexRejectedForEd25519(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeEd25519, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	err = core.SetAccountIndex(1)
	assert.True(t, coreerr.HasCode(err, coreerr.CodeAccountIndexUnsupported))
	require.NoError(t, core.SetAccountIndex(0))
}

func TestFactorMutationInvalidatesSessions(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	require.NoError(t, core.Precompute(ctx))
	_, err = core.EnableMFA(ctx)
	require.NoError(t, err)

	// The reshare moved the key to a new epoch; signing must still work.
	digest := sha256.Sum256([]byte("post-reshare payload"))
	sig, err := core.SignECDSA(ctx, digest[:])
	require.NoError(t, err)
	pub, err := core.AccountPub()
	require.NoError(t, err)
	assert.True(t, sig.Verify(pub, digest[:]))
}
