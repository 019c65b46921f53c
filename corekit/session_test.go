package corekit_test

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web3Auth/mpc-core-kit-sub001/corekit"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

func TestSessionRehydration(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)

	first, err := e.newCore(tkey.KeyTypeSecp256k1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, first.Init(ctx, e.auth))
	require.Equal(t, corekit.StatusLoggedIn, first.Status())

	// A new engine on the same device resumes without re-authenticating.
	resumedCore, err := e.newCore(tkey.KeyTypeSecp256k1, time.Hour)
	require.NoError(t, err)
	resumed, err := resumedCore.RehydrateSession(ctx)
	require.NoError(t, err)
	require.True(t, resumed)
	assert.Equal(t, corekit.StatusLoggedIn, resumedCore.Status())

	// Rehydration is idempotent.
	resumed, err = resumedCore.RehydrateSession(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)

	// The resumed engine is fully operational.
	digest := sha256.Sum256([]byte("signed after resume"))
	sig, err := resumedCore.SignECDSA(ctx, digest[:])
	require.NoError(t, err)
	pub, err := resumedCore.AccountPub()
	require.NoError(t, err)
	assert.True(t, sig.Verify(pub, digest[:]))
}

func TestSessionDisabledIsNoOp(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)

	first, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, first.Init(ctx, e.auth))

	second, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	resumed, err := second.RehydrateSession(ctx)
	require.NoError(t, err)
	assert.False(t, resumed)
}

func TestLogoutDestroysSession(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)

	first, err := e.newCore(tkey.KeyTypeSecp256k1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, first.Init(ctx, e.auth))
	require.NoError(t, first.Logout(ctx))

	second, err := e.newCore(tkey.KeyTypeSecp256k1, time.Hour)
	require.NoError(t, err)
	resumed, err := second.RehydrateSession(ctx)
	require.NoError(t, err)
	assert.False(t, resumed, "a destroyed session must not resume")
}

func TestRehydrationSurvivesGarbageToken(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)

	require.NoError(t, e.storage.SetItem("sessionToken/test-client", []byte("not-a-real-token")))

	core, err := e.newCore(tkey.KeyTypeSecp256k1, time.Hour)
	require.NoError(t, err)
	resumed, err := core.RehydrateSession(ctx)
	require.NoError(t, err, "rehydration is fail-soft")
	assert.False(t, resumed)
	assert.Equal(t, corekit.StatusNotInitialized, core.Status())
}
