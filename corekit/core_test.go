package corekit_test

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web3Auth/mpc-core-kit-sub001/corekit"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

func TestOptionsValidation(t *testing.T) {
	e, err := newEnv()
	require.NoError(t, err)

	_, err = corekit.New(corekit.Options{})
	assert.True(t, coreerr.HasCode(err, coreerr.CodeInvalidClientID))

	_, err = corekit.New(corekit.Options{
		ClientID:      "test-client",
		MetadataStore: e.meta,
	})
	assert.True(t, coreerr.HasCode(err, coreerr.CodeServerDetailsMissing))

	_, err = corekit.New(corekit.Options{
		ClientID:       "test-client",
		KeyType:        "dsa",
		MetadataStore:  e.meta,
		ReshareBackend: e.quorum,
		SigningBackend: e.quorum,
	})
	assert.True(t, coreerr.HasCode(err, coreerr.CodeInvalidKeyType))
}

func TestOperationsRequireLogin(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)

	_, err = core.SignECDSA(ctx, make([]byte, 32))
	assert.True(t, coreerr.HasCode(err, coreerr.CodeNotInitialized))
	_, err = core.CreateFactor(ctx, corekit.CreateFactorArgs{})
	assert.True(t, coreerr.HasCode(err, coreerr.CodeNotInitialized))
	err = core.InputFactorKey(ctx, factor.Generate(rand.Reader))
	assert.True(t, coreerr.HasCode(err, coreerr.CodeNotInitialized))
	_, err = core.UNSAFE_ExportTssKey(ctx)
	assert.True(t, coreerr.HasCode(err, coreerr.CodeNotInitialized))
}

func TestExportRecoverRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	// Two extra factors at distinct share indices.
	deviceCopy, err := core.CreateFactor(ctx, corekit.CreateFactorArgs{
		ShareType: tkey.TSSIndexDevice,
		Module:    "backupDevice",
	})
	require.NoError(t, err)
	recovery, err := core.CreateFactor(ctx, corekit.CreateFactorArgs{
		ShareType: tkey.TSSIndexRecovery,
		Module:    "recovery",
	})
	require.NoError(t, err)

	exported, err := core.UNSAFE_ExportTssKey(ctx)
	require.NoError(t, err)
	recovered, err := core.UNSAFE_RecoverTssKey([]string{deviceCopy.Hex(), recovery.Hex()})
	require.NoError(t, err)
	assert.Equal(t, exported, recovered)
}

func TestExportWorksRecoverRejectedForEd25519(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeEd25519, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	deviceCopy, err := core.CreateFactor(ctx, corekit.CreateFactorArgs{
		ShareType: tkey.TSSIndexDevice,
	})
	require.NoError(t, err)
	recovery, err := core.CreateFactor(ctx, corekit.CreateFactorArgs{
		ShareType: tkey.TSSIndexRecovery,
	})
	require.NoError(t, err)

	_, err = core.UNSAFE_ExportTssKey(ctx)
	require.NoError(t, err)

	_, err = core.UNSAFE_RecoverTssKey([]string{deviceCopy.Hex(), recovery.Hex()})
	assert.True(t, coreerr.HasCode(err, coreerr.CodeRecoveryUnsupported))
}

func TestEnableMFAAndDeleteFactor(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	phrase, err := core.EnableMFA(ctx)
	require.NoError(t, err)
	recoveryKey, err := factor.FromMnemonic(phrase)
	require.NoError(t, err)
	assert.Equal(t, 2, core.GetKeyDetails().TotalFactors)

	require.NoError(t, core.DeleteFactor(ctx, recoveryKey.Pub(), recoveryKey))
	assert.Equal(t, 1, core.GetKeyDetails().TotalFactors)

	// The active factor cannot be removed.
	details := core.GetKeyDetails()
	require.Len(t, details.FactorPubs, 1)
	pub, err := factor.PubFromHex(details.FactorPubs[0])
	require.NoError(t, err)
	err = core.DeleteFactor(ctx, pub, nil)
	assert.True(t, coreerr.HasCode(err, coreerr.CodeFactorInUseCannotBeDeleted))
}

func TestGetKeyDetailsNeverFails(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)

	details := core.GetKeyDetails()
	assert.Equal(t, corekit.StatusNotInitialized, details.Status)
	assert.Equal(t, 1, details.RequiredFactors)
	assert.Empty(t, details.PubKeyHex)

	require.NoError(t, core.Init(ctx, e.auth))
	details = core.GetKeyDetails()
	assert.Equal(t, corekit.StatusLoggedIn, details.Status)
	assert.Zero(t, details.RequiredFactors)
	assert.NotEmpty(t, details.AccountPubHex)
	assert.Equal(t, uint64(1), details.Epoch)
}

func TestInitWithImportedKey(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)

	secret := factor.Generate(rand.Reader)
	require.NoError(t, core.InitWithImportedKey(ctx, e.auth, secret.Hex()))
	assert.Equal(t, corekit.StatusLoggedIn, core.Status())

	exported, err := core.UNSAFE_ExportTssKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, secret.Hex(), exported)

	// A user who already has a key cannot import over it.
	require.NoError(t, core.Logout(ctx))
	err = core.InitWithImportedKey(ctx, e.auth, factor.Generate(rand.Reader).Hex())
	assert.True(t, coreerr.HasCode(err, coreerr.CodeKeyImportNotAllowed))

	// The refused import leaves normal login intact.
	require.NoError(t, core.Init(ctx, e.auth))
	assert.Equal(t, corekit.StatusLoggedIn, core.Status())

	err = core.InitWithImportedKey(ctx, e.auth, "not hex")
	assert.True(t, coreerr.HasCode(err, coreerr.CodeInvalidOptions))
}

func TestSecurityAnswerFactor(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	_, err = core.CreateFactor(ctx, corekit.CreateFactorArgs{
		ShareType: tkey.TSSIndexRecovery,
		Answer:    "first pet: fluffy",
	})
	require.NoError(t, err)

	other, err := e.newCoreWithStorage(tkey.KeyTypeSecp256k1, 0, corekit.NewMemoryStorage())
	require.NoError(t, err)
	require.NoError(t, other.Init(ctx, e.auth))
	assert.Equal(t, corekit.StatusRequiredShare, other.Status())

	err = other.InputSecurityAnswer(ctx, "first pet: rex")
	assert.True(t, coreerr.HasCode(err, coreerr.CodeInvalidRecoveryAnswer))
	assert.Equal(t, corekit.StatusRequiredShare, other.Status())

	err = other.InputSecurityAnswer(ctx, "")
	assert.True(t, coreerr.HasCode(err, coreerr.CodeInvalidRecoveryAnswer))

	require.NoError(t, other.InputSecurityAnswer(ctx, "first pet: fluffy"))
	assert.Equal(t, corekit.StatusLoggedIn, other.Status())
}

func TestEnableMFARequiresCommitInManualSync(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := corekit.New(corekit.Options{
		ClientID:       "test-client",
		MetadataStore:  e.meta,
		ReshareBackend: e.quorum,
		SigningBackend: e.quorum,
		Storage:        e.storage,
		Logger:         zerolog.Nop(),
		ManualSync:     true,
	})
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	// Key generation is still staged; MFA must wait for the commit.
	_, err = core.EnableMFA(ctx)
	assert.True(t, coreerr.HasCode(err, coreerr.CodeCommitRequired))

	require.NoError(t, core.CommitChanges(ctx))
	phrase, err := core.EnableMFA(ctx)
	require.NoError(t, err)
	_, err = factor.FromMnemonic(phrase)
	require.NoError(t, err)
}

func TestManualSyncCommitChanges(t *testing.T) {
	ctx := context.Background()
	e, err := newEnv()
	require.NoError(t, err)
	core, err := corekit.New(corekit.Options{
		ClientID:       "test-client",
		MetadataStore:  e.meta,
		ReshareBackend: e.quorum,
		SigningBackend: e.quorum,
		Storage:        e.storage,
		Logger:         zerolog.Nop(),
		ManualSync:     true,
	})
	require.NoError(t, err)
	require.NoError(t, core.Init(ctx, e.auth))

	assert.Empty(t, e.meta.Snapshot(), "manual sync must stage the record locally")
	require.NoError(t, core.CommitChanges(ctx))
	assert.Len(t, e.meta.Snapshot(), 1)
}
