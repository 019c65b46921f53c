package corekit

import (
	"context"
	"hash"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

const (
	sessionTokenItem   = "sessionToken/"
	sessionAddressInfo = "mpc-core-kit/session/v1"
	sessionKeyInfo     = "mpc-core-kit/session-key/v1"
)

// sessionPayload is the sealed state that lets a client resume without
// re-authenticating. Holding the token is holding the session.
type sessionPayload struct {
	VerifierID   string            `cbor:"verifierId"`
	PostboxKey   []byte            `cbor:"postboxKey"`
	FactorKey    []byte            `cbor:"factorKey"`
	Signatures   [][]byte          `cbor:"signatures"`
	UserInfo     map[string]string `cbor:"userInfo"`
	AccountIndex uint32            `cbor:"accountIndex"`
	ExpiresAt    int64             `cbor:"expiresAt"`
}

func sessionAddress(token string) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte(sessionAddressInfo))
	_, _ = h.Write([]byte(token))
	return h.Sum(nil)
}

func sessionAEAD(token string) ([]byte, error) {
	kdf := hkdf.New(func() hash.Hash { return blake3.New() }, []byte(token), nil, []byte(sessionKeyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// createSessionLocked writes a resumable session when sessions are
// enabled. Session trouble never fails a login; it only logs.
func (c *Core) createSessionLocked(ctx context.Context) {
	if c.opts.SessionTTL <= 0 {
		return
	}
	token := uuid.NewString()
	payload := sessionPayload{
		VerifierID:   c.auth.VerifierID,
		PostboxKey:   c.auth.PostboxKey.Bytes(),
		FactorKey:    c.activeFactor.Bytes(),
		Signatures:   c.auth.Signatures,
		UserInfo:     c.auth.UserInfo,
		AccountIndex: c.accountIndex,
		ExpiresAt:    time.Now().Add(c.opts.SessionTTL).Unix(),
	}
	plaintext, err := cbor.Marshal(&payload)
	if err != nil {
		c.log.Warn().Err(err).Msg("session payload encoding failed")
		return
	}
	key, err := sessionAEAD(token)
	if err != nil {
		c.log.Warn().Err(err).Msg("session key derivation failed")
		return
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		c.log.Warn().Err(err).Msg("session cipher failed")
		return
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(c.opts.Rand, nonce); err != nil {
		c.log.Warn().Err(err).Msg("session nonce sampling failed")
		return
	}
	sealed := append(nonce, aead.Seal(nil, nonce, plaintext, nil)...)
	if err := c.opts.MetadataStore.Set(ctx, sessionAddress(token), sealed); err != nil {
		c.log.Warn().Err(err).Msg("storing session record failed")
		return
	}
	if err := c.opts.Storage.SetItem(sessionTokenItem+c.opts.ClientID, []byte(token)); err != nil {
		c.log.Warn().Err(err).Msg("persisting session token failed")
		return
	}
	c.sessionToken = token
	c.log.Debug().Msg("session created")
}

// RehydrateSession resumes a previous login from the locally persisted
// session token. It is fail-soft and idempotent: any problem leaves the
// engine in its current state and reports resumed=false.
func (c *Core) RehydrateSession(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.SessionTTL <= 0 {
		return false, nil
	}
	if c.statusLocked() == StatusLoggedIn {
		return true, nil
	}
	item, err := c.opts.Storage.GetItem(sessionTokenItem + c.opts.ClientID)
	if err != nil {
		return false, nil
	}
	token := string(item)
	payload, err := c.openSessionLocked(ctx, token)
	if err != nil {
		c.log.Debug().Err(err).Msg("dropping unusable session")
		c.dropSessionTokenLocked(ctx, token)
		return false, nil
	}
	postbox, err := factor.FromBytes(payload.PostboxKey)
	if err != nil {
		c.dropSessionTokenLocked(ctx, token)
		return false, nil
	}
	factorKey, err := factor.FromBytes(payload.FactorKey)
	if err != nil {
		c.dropSessionTokenLocked(ctx, token)
		return false, nil
	}
	auth := AuthResult{
		VerifierID: payload.VerifierID,
		PostboxKey: postbox,
		Signatures: payload.Signatures,
		UserInfo:   payload.UserInfo,
	}
	pub := postbox.Pub()
	tk, err := tkey.New(tkey.Config{
		Store:      c.opts.MetadataStore,
		Backend:    c.opts.ReshareBackend,
		Logger:     c.log,
		Rand:       c.opts.Rand,
		ManualSync: c.opts.ManualSync,
	}, tkey.MetadataAddress(pub[:]))
	if err != nil {
		return false, nil
	}
	found, err := tk.Load(ctx)
	if err != nil || !found {
		c.dropSessionTokenLocked(ctx, token)
		return false, nil
	}
	c.resetLocked()
	c.auth = &auth
	c.tk = tk
	c.accountIndex = payload.AccountIndex
	if err := c.adoptFactorLocked(factorKey); err != nil {
		c.log.Warn().Err(err).Msg("session factor no longer opens a share")
		c.dropSessionTokenLocked(ctx, token)
		return false, nil
	}
	c.sessionToken = token
	c.log.Info().Msg("session rehydrated")
	return true, nil
}

// openSessionLocked loads and unseals the session record behind token.
// Every failure carries CodeSessionInvalid; the caller decides whether to
// surface or swallow it.
func (c *Core) openSessionLocked(ctx context.Context, token string) (*sessionPayload, error) {
	sealed, err := c.opts.MetadataStore.Get(ctx, sessionAddress(token))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.CodeSessionInvalid, "loading session record", err)
	}
	key, err := sessionAEAD(token)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, coreerr.New(coreerr.CodeSessionInvalid, "session record is truncated")
	}
	plaintext, err := aead.Open(nil, sealed[:aead.NonceSize()], sealed[aead.NonceSize():], nil)
	if err != nil {
		return nil, coreerr.New(coreerr.CodeSessionInvalid, "session record does not match token")
	}
	payload := new(sessionPayload)
	if err := cbor.Unmarshal(plaintext, payload); err != nil {
		return nil, coreerr.Wrap(coreerr.CodeSessionInvalid, "decoding session payload", err)
	}
	if time.Now().Unix() >= payload.ExpiresAt {
		return nil, coreerr.New(coreerr.CodeSessionInvalid, "session expired")
	}
	return payload, nil
}

func (c *Core) dropSessionTokenLocked(ctx context.Context, token string) {
	_ = c.opts.Storage.RemoveItem(sessionTokenItem + c.opts.ClientID)
	_ = c.opts.MetadataStore.Delete(ctx, sessionAddress(token))
}

// destroySessionLocked removes the current session record and token.
func (c *Core) destroySessionLocked(ctx context.Context) {
	if c.sessionToken == "" {
		return
	}
	c.dropSessionTokenLocked(ctx, c.sessionToken)
	c.sessionToken = ""
}
