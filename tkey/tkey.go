package tkey

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/kvstore"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

const metadataAddressInfo = "mpc-core-kit/metadata/v1"

// MetadataAddress derives the metadata store key for a user from the
// compressed public key of their postbox (auth) key.
func MetadataAddress(authPub []byte) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte(metadataAddressInfo))
	_, _ = h.Write(authPub)
	return h.Sum(nil)
}

// Config wires a TKey to its collaborators.
type Config struct {
	Store   kvstore.Store
	Backend Backend
	Logger  zerolog.Logger
	Rand    io.Reader
	// ManualSync defers remote flushes until Flush is called explicitly.
	ManualSync bool
}

// TKey is the client-side handle on one threshold key's metadata record.
// It is not safe for concurrent use; the engine serializes access.
type TKey struct {
	store      kvstore.Store
	backend    Backend
	log        zerolog.Logger
	rand       io.Reader
	manualSync bool

	storeKey []byte
	meta     *Metadata
	// lastSynced holds the record bytes as last seen remotely, for the
	// write conflict check.
	lastSynced []byte
	dirty      bool

	// atomic mutation controller state
	depth        int
	snapshot     *Metadata
	snapDirty    bool
	snapHasState bool

	// history retains the flushed record of each epoch for diagnostics.
	history map[uint64][]byte
}

// LiveShare is a decrypted share held in memory by a logged-in client.
type LiveShare struct {
	TSSIndex party.ID
	Share    curve.Scalar
}

// New returns a TKey for the record at storeKey.
func New(cfg Config, storeKey []byte) (*TKey, error) {
	if cfg.Store == nil || cfg.Backend == nil {
		return nil, coreerr.New(coreerr.CodeInvalidOptions, "tkey requires a store and a backend")
	}
	if cfg.Rand == nil {
		return nil, coreerr.New(coreerr.CodeInvalidOptions, "tkey requires a randomness source")
	}
	if len(storeKey) == 0 {
		return nil, coreerr.New(coreerr.CodeInvalidOptions, "empty metadata store key")
	}
	return &TKey{
		store:      cfg.Store,
		backend:    cfg.Backend,
		log:        cfg.Logger.With().Str("component", "tkey").Logger(),
		rand:       cfg.Rand,
		manualSync: cfg.ManualSync,
		storeKey:   storeKey,
		history:    make(map[uint64][]byte),
	}, nil
}

// Load fetches the remote record. It reports found=false for a fresh user
// and passes kvstore.ErrDeleted through for a reset one.
func (t *TKey) Load(ctx context.Context) (bool, error) {
	data, err := t.store.Get(ctx, t.storeKey)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	meta := new(Metadata)
	if err := meta.UnmarshalBinary(data); err != nil {
		return false, err
	}
	if !meta.KeyType.Valid() {
		return false, coreerr.Newf(coreerr.CodeInvalidKeyType, "stored record has key type %q", string(meta.KeyType))
	}
	t.meta = meta
	t.lastSynced = data
	t.dirty = false
	t.history[meta.Nonce] = data
	return true, nil
}

// Initialized reports whether a record is loaded or staged.
func (t *TKey) Initialized() bool {
	return t.meta != nil
}

// Metadata returns the current record. Callers must treat it as read-only.
func (t *TKey) Metadata() *Metadata {
	return t.meta
}

// DecryptShare opens the share fragment registered for the factor key and
// verifies the share against the current epoch's commitments.
func (t *TKey) DecryptShare(key *factor.Key) (LiveShare, error) {
	if t.meta == nil {
		return LiveShare{}, coreerr.New(coreerr.CodeMetadataUninitialized, "no metadata record")
	}
	enc, ok := t.meta.Enc(key.Pub())
	if !ok {
		return LiveShare{}, coreerr.New(coreerr.CodeFactorNotFound, "factor is not registered")
	}
	plaintext, err := enc.Fragment.Open(key)
	if err != nil {
		return LiveShare{}, coreerr.Wrap(coreerr.CodeFactorKeyMissing, "opening share fragment", err)
	}
	var payload sharePayload
	if err := payload.unmarshal(plaintext); err != nil {
		return LiveShare{}, err
	}
	if payload.Epoch != t.meta.Nonce {
		return LiveShare{}, coreerr.Newf(coreerr.CodeEpochConflict,
			"share fragment sealed at epoch %d, record is at %d", payload.Epoch, t.meta.Nonce)
	}
	if payload.TSSIndex != enc.TSSIndex {
		return LiveShare{}, coreerr.New(coreerr.CodeReconstructionFailed, "fragment index disagrees with registry")
	}
	group, err := t.meta.Group()
	if err != nil {
		return LiveShare{}, err
	}
	share := group.NewScalar()
	if err := share.UnmarshalBinary(payload.Share); err != nil {
		return LiveShare{}, err
	}
	if err := t.meta.verifyShare(t.meta.PolyIndex(payload.TSSIndex), share); err != nil {
		return LiveShare{}, err
	}
	return LiveShare{TSSIndex: payload.TSSIndex, Share: share}, nil
}

// sealShare encrypts a share payload for the factor pub at the given epoch.
func (t *TKey) sealShare(pub factor.Pub, tssIndex party.ID, epoch uint64, share curve.Scalar) (*factor.Fragment, error) {
	data, err := share.MarshalBinary()
	if err != nil {
		return nil, err
	}
	plaintext, err := (&sharePayload{Share: data, TSSIndex: tssIndex, Epoch: epoch}).marshal()
	if err != nil {
		return nil, err
	}
	return factor.Seal(t.rand, pub, plaintext)
}

// CriticalReset destroys the remote record, leaving the deletion tombstone.
// Intended for tests and account deletion flows.
func (t *TKey) CriticalReset(ctx context.Context) error {
	if err := t.store.Delete(ctx, t.storeKey); err != nil {
		return err
	}
	t.meta = nil
	t.lastSynced = nil
	t.dirty = false
	return nil
}
