package corekit

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/kvstore"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

// DefaultTssTag names the key a user gets when no tag is chosen.
const DefaultTssTag = "default"

// Options configures a Core.
type Options struct {
	// ClientID identifies the integrating application.
	ClientID string
	// KeyType selects the signing scheme for new keys.
	KeyType tkey.KeyType
	// TssTag distinguishes multiple keys per user; defaults to
	// DefaultTssTag.
	TssTag string
	// MetadataStore holds the remote metadata records.
	MetadataStore kvstore.Store
	// ReshareBackend and SigningBackend are the two faces of the server
	// quorum.
	ReshareBackend ReshareBackend
	SigningBackend SigningBackend
	// Storage persists the device factor and session token locally.
	Storage Storage
	Logger  zerolog.Logger
	// Rand defaults to crypto/rand.
	Rand io.Reader
	// ManualSync defers metadata flushes until CommitChanges.
	ManualSync bool
	// SessionTTL enables session persistence when positive.
	SessionTTL time.Duration
}

func (o *Options) normalize() error {
	if o.ClientID == "" {
		return coreerr.New(coreerr.CodeInvalidClientID, "client id is required")
	}
	if o.KeyType == "" {
		o.KeyType = tkey.KeyTypeSecp256k1
	}
	if !o.KeyType.Valid() {
		return coreerr.Newf(coreerr.CodeInvalidKeyType, "unknown key type %q", string(o.KeyType))
	}
	if o.TssTag == "" {
		o.TssTag = DefaultTssTag
	}
	if o.MetadataStore == nil {
		return coreerr.New(coreerr.CodeInvalidOptions, "metadata store is required")
	}
	if o.ReshareBackend == nil || o.SigningBackend == nil {
		return coreerr.New(coreerr.CodeServerDetailsMissing, "reshare and signing backends are required")
	}
	if o.Storage == nil {
		o.Storage = NewMemoryStorage()
	}
	if o.Rand == nil {
		o.Rand = rand.Reader
	}
	return nil
}

// AuthResult is the outcome of an external login the caller performed with
// its verifier. The core never talks to the verifier itself.
type AuthResult struct {
	// VerifierID uniquely names the user within the verifier.
	VerifierID string
	// PostboxKey addresses the user's metadata record.
	PostboxKey *factor.Key
	// Signatures authorize backend calls for this login.
	Signatures [][]byte
	UserInfo   map[string]string
}

func (a *AuthResult) validate() error {
	if a.VerifierID == "" {
		return coreerr.New(coreerr.CodeInvalidOptions, "auth result lacks a verifier id")
	}
	if a.PostboxKey == nil {
		return coreerr.New(coreerr.CodeFactorKeyMissing, "auth result lacks a postbox key")
	}
	if len(a.Signatures) == 0 {
		return coreerr.New(coreerr.CodeSignaturesMissing, "auth result lacks auth signatures")
	}
	return nil
}
