// Package corekit is the client engine for non-custodial threshold keys:
// login and factor lifecycle, account derivation, session persistence and
// the signing coordinator. One Core serves one logged-in user at a time.
package corekit

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/kvstore"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

// Core is the engine handle. All methods are safe for concurrent use.
type Core struct {
	opts Options
	log  zerolog.Logger

	mu           sync.Mutex
	auth         *AuthResult
	tk           *tkey.TKey
	activeFactor *factor.Key
	live         tkey.LiveShare
	accountIndex uint32
	accountNonce curve.Scalar
	sessionToken string
	precomp      *precomputedSession
}

// New validates the options and returns an idle Core.
func New(opts Options) (*Core, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	return &Core{
		opts: opts,
		log:  opts.Logger.With().Str("component", "corekit").Logger(),
	}, nil
}

// Init logs the user in. A fresh user triggers distributed key generation
// and gets a device factor; a returning user is logged in silently when
// the device factor is still present, and lands in REQUIRED_SHARE
// otherwise.
func (c *Core) Init(ctx context.Context, auth AuthResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked(ctx, auth, nil)
}

// InitWithImportedKey logs a brand-new user in with a caller-supplied
// signing secret instead of a quorum-generated one. A user who already
// has a key cannot import over it.
func (c *Core) InitWithImportedKey(ctx context.Context, auth AuthResult, secretHex string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	group, err := c.opts.KeyType.Group()
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(secretHex)
	if err != nil {
		return coreerr.Wrap(coreerr.CodeInvalidOptions, "parsing imported key", err)
	}
	secret := group.NewScalar()
	if err := secret.UnmarshalBinary(data); err != nil {
		return coreerr.Wrap(coreerr.CodeInvalidOptions, "parsing imported key", err)
	}
	if secret.IsZero() {
		return coreerr.New(coreerr.CodeInvalidOptions, "imported key is zero")
	}
	return c.initLocked(ctx, auth, secret)
}

func (c *Core) initLocked(ctx context.Context, auth AuthResult, imported curve.Scalar) error {
	if err := auth.validate(); err != nil {
		return err
	}
	c.resetLocked()
	c.auth = &auth

	pub := auth.PostboxKey.Pub()
	tk, err := tkey.New(tkey.Config{
		Store:      c.opts.MetadataStore,
		Backend:    c.opts.ReshareBackend,
		Logger:     c.log,
		Rand:       c.opts.Rand,
		ManualSync: c.opts.ManualSync,
	}, tkey.MetadataAddress(pub[:]))
	if err != nil {
		return err
	}
	found, err := tk.Load(ctx)
	if errors.Is(err, kvstore.ErrDeleted) {
		return coreerr.Wrap(coreerr.CodeMetadataUninitialized, "account was reset", err)
	}
	if err != nil {
		return err
	}
	c.tk = tk

	if !found {
		key, err := tk.Initialize(ctx, tkey.InitializeParams{
			KeyType:        c.opts.KeyType,
			TssTag:         c.opts.TssTag,
			TSSIndex:       tkey.TSSIndexDevice,
			ImportedSecret: imported,
			Description:    factorDescription("deviceShare"),
			AuthSignatures: auth.Signatures,
		})
		if err != nil {
			c.tk = nil
			return err
		}
		if err := c.adoptFactorLocked(key); err != nil {
			return err
		}
		c.persistDeviceFactorLocked(key)
		c.createSessionLocked(ctx)
		return nil
	}

	if imported != nil {
		c.tk = nil
		return coreerr.New(coreerr.CodeKeyImportNotAllowed, "user already has a key")
	}
	if tk.Metadata().KeyType != c.opts.KeyType {
		c.tk = nil
		return coreerr.Newf(coreerr.CodeInvalidKeyType,
			"stored key is %q, engine configured for %q",
			string(tk.Metadata().KeyType), string(c.opts.KeyType))
	}
	key, ok := c.loadDeviceFactorLocked()
	if !ok {
		return nil
	}
	if err := c.adoptFactorLocked(key); err != nil {
		c.log.Warn().Err(err).Msg("stored device factor no longer opens a share")
		return nil
	}
	c.createSessionLocked(ctx)
	return nil
}

// InputFactorKey reconstructs the share gated by the given factor key and
// moves the engine to LOGGED_IN.
func (c *Core) InputFactorKey(ctx context.Context, key *factor.Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tk == nil || !c.tk.Initialized() {
		return coreerr.New(coreerr.CodeNotInitialized, "call Init first")
	}
	if key == nil {
		return coreerr.New(coreerr.CodeFactorKeyMissing, "no factor key provided")
	}
	if err := c.adoptFactorLocked(key); err != nil {
		return err
	}
	if c.live.TSSIndex == tkey.TSSIndexDevice {
		c.persistDeviceFactorLocked(key)
	}
	c.createSessionLocked(ctx)
	return nil
}

// InputSecurityAnswer derives a factor key from a security answer and
// reconstructs the share it gates. The answer is salted with the client
// id, matching CreateFactorArgs.Answer.
func (c *Core) InputSecurityAnswer(ctx context.Context, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tk == nil || !c.tk.Initialized() {
		return coreerr.New(coreerr.CodeNotInitialized, "call Init first")
	}
	if answer == "" {
		return coreerr.New(coreerr.CodeInvalidRecoveryAnswer, "empty security answer")
	}
	if err := c.adoptFactorLocked(factor.FromAnswer(answer, c.opts.ClientID)); err != nil {
		return coreerr.Wrap(coreerr.CodeInvalidRecoveryAnswer, "security answer does not unlock a share", err)
	}
	c.createSessionLocked(ctx)
	return nil
}

// Status reports the lifecycle state. It never fails.
func (c *Core) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Core) statusLocked() Status {
	hasMeta := c.tk != nil && c.tk.Initialized()
	hasBackups := hasMeta && len(c.tk.Metadata().FactorEncs) > 0
	hasShare := c.activeFactor != nil && c.live.Share != nil
	return statusOf(hasMeta, hasBackups, hasShare)
}

// adoptFactorLocked decrypts the share for key and installs it as the
// active factor.
func (c *Core) adoptFactorLocked(key *factor.Key) error {
	live, err := c.tk.DecryptShare(key)
	if err != nil {
		return err
	}
	c.activeFactor = key
	c.live = live
	if err := c.refreshAccountNonceLocked(); err != nil {
		return err
	}
	c.log.Info().
		Str("tssIndex", live.TSSIndex.String()).
		Str("status", c.statusLocked().String()).
		Msg("share reconstructed")
	return nil
}

// refreshLiveLocked re-opens the active factor's fragment, picking up the
// share of the current epoch after a mutation.
func (c *Core) refreshLiveLocked() error {
	live, err := c.tk.DecryptShare(c.activeFactor)
	if err != nil {
		return err
	}
	c.live = live
	return c.refreshAccountNonceLocked()
}

func (c *Core) requireLoggedInLocked() error {
	switch c.statusLocked() {
	case StatusLoggedIn:
		return nil
	case StatusNotInitialized:
		return coreerr.New(coreerr.CodeNotInitialized, "call Init first")
	default:
		return coreerr.New(coreerr.CodeNotLoggedIn, "a factor key is required")
	}
}

// SetAccountIndex switches key derivation to the given account. Only the
// secp256k1 scheme supports non-zero accounts.
func (c *Core) SetAccountIndex(index uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return err
	}
	if index != 0 && c.tk.Metadata().KeyType == tkey.KeyTypeEd25519 {
		return coreerr.New(coreerr.CodeAccountIndexUnsupported,
			"ed25519 keys do not support account offsets")
	}
	c.accountIndex = index
	return c.refreshAccountNonceLocked()
}

func (c *Core) refreshAccountNonceLocked() error {
	meta := c.tk.Metadata()
	group, err := meta.Group()
	if err != nil {
		return err
	}
	basePub, err := meta.PublicPoint()
	if err != nil {
		return err
	}
	nonce, err := tkey.AccountNonce(group, basePub, c.accountIndex)
	if err != nil {
		return err
	}
	c.accountNonce = nonce
	return nil
}

// AccountPub returns the public key of the selected account.
func (c *Core) AccountPub() (curve.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountPubLocked()
}

func (c *Core) accountPubLocked() (curve.Point, error) {
	if c.tk == nil || !c.tk.Initialized() {
		return nil, coreerr.New(coreerr.CodeNotInitialized, "call Init first")
	}
	basePub, err := c.tk.Metadata().PublicPoint()
	if err != nil {
		return nil, err
	}
	if c.accountNonce == nil || c.accountNonce.IsZero() {
		return basePub, nil
	}
	return tkey.DerivePub(basePub, c.accountNonce), nil
}

// KeyDetails is a read-only summary of the loaded key.
type KeyDetails struct {
	Status          Status
	KeyType         tkey.KeyType
	PubKeyHex       string
	AccountIndex    uint32
	AccountPubHex   string
	Epoch           uint64
	TotalFactors    int
	RequiredFactors int
	FactorPubs      []string
	Descriptions    map[string][]string
}

// GetKeyDetails aggregates what is known about the key. It never fails;
// absent information stays zero-valued.
func (c *Core) GetKeyDetails() KeyDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	details := KeyDetails{Status: c.statusLocked(), RequiredFactors: 1}
	if c.tk == nil || !c.tk.Initialized() {
		return details
	}
	meta := c.tk.Metadata()
	details.KeyType = meta.KeyType
	details.PubKeyHex = hex.EncodeToString(meta.PubKey)
	details.AccountIndex = c.accountIndex
	details.Epoch = meta.Nonce
	details.TotalFactors = len(meta.FactorPubs)
	for _, pub := range meta.FactorPubs {
		details.FactorPubs = append(details.FactorPubs, pub.Hex())
	}
	details.Descriptions = make(map[string][]string, len(meta.Descriptions))
	for k, v := range meta.Descriptions {
		details.Descriptions[k] = append([]string(nil), v...)
	}
	if details.Status == StatusLoggedIn {
		details.RequiredFactors = 0
		if pub, err := c.accountPubLocked(); err == nil {
			if data, err := pub.MarshalBinary(); err == nil {
				details.AccountPubHex = hex.EncodeToString(data)
			}
		}
	}
	return details
}

// CommitChanges flushes staged metadata mutations in manual-sync mode.
func (c *Core) CommitChanges(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tk == nil {
		return coreerr.New(coreerr.CodeNotInitialized, "call Init first")
	}
	return c.tk.Flush(ctx)
}

// SetManualSync switches the metadata sync mode.
func (c *Core) SetManualSync(ctx context.Context, manual bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tk == nil {
		return coreerr.New(coreerr.CodeNotInitialized, "call Init first")
	}
	return c.tk.SetManualSync(ctx, manual)
}

// Logout drops all reconstructed key material and destroys the session.
func (c *Core) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroySessionLocked(ctx)
	c.discardPrecomputedLocked(ctx)
	c.resetLocked()
	c.log.Info().Msg("logged out")
	return nil
}

func (c *Core) resetLocked() {
	c.auth = nil
	c.tk = nil
	c.activeFactor = nil
	c.live = tkey.LiveShare{}
	c.accountIndex = 0
	c.accountNonce = nil
	c.sessionToken = ""
	c.precomp = nil
}

// UNSAFE_ExportTssKey reconstructs the full signing secret of the selected
// account. The exported key lives outside the threshold model; handle with
// care.
func (c *Core) UNSAFE_ExportTssKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return "", err
	}
	secret, err := c.tk.ExportSecret(ctx, c.live, c.auth.Signatures)
	if err != nil {
		return "", err
	}
	return c.derivedSecretHexLocked(secret)
}

// UNSAFE_RecoverTssKey reconstructs the signing secret purely client-side
// from factor keys at distinct share indices. secp256k1 only.
func (c *Core) UNSAFE_RecoverTssKey(factorHexes []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tk == nil || !c.tk.Initialized() {
		return "", coreerr.New(coreerr.CodeNotInitialized, "call Init first")
	}
	keys := make([]*factor.Key, 0, len(factorHexes))
	for _, h := range factorHexes {
		key, err := factor.FromHex(h)
		if err != nil {
			return "", coreerr.Wrap(coreerr.CodeFactorKeyMissing, "parsing factor key", err)
		}
		keys = append(keys, key)
	}
	secret, err := c.tk.RecoverFromFactors(keys)
	if err != nil {
		return "", err
	}
	return c.derivedSecretHexLocked(secret)
}

func (c *Core) derivedSecretHexLocked(secret curve.Scalar) (string, error) {
	group, err := c.tk.Metadata().Group()
	if err != nil {
		return "", err
	}
	derived := secret
	if c.accountNonce != nil && !c.accountNonce.IsZero() {
		derived = tkey.DeriveShare(group, secret, c.accountNonce)
	}
	data, err := derived.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(data), nil
}

// CriticalReset destroys the remote metadata record. Test hook.
func (c *Core) CriticalReset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tk == nil {
		return coreerr.New(coreerr.CodeNotInitialized, "call Init first")
	}
	if err := c.tk.CriticalReset(ctx); err != nil {
		return err
	}
	c.destroySessionLocked(ctx)
	auth := c.auth
	c.resetLocked()
	c.auth = auth
	return nil
}
