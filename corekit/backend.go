package corekit

import (
	"context"
	"errors"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

// ReshareBackend is the quorum interface for key generation, resharing and
// audited export.
type ReshareBackend = tkey.Backend

// ErrStaleSession is returned by a SigningBackend when a precomputed
// session is unknown, expired or already consumed. The coordinator reacts
// with exactly one transparent retry on a fresh session.
var ErrStaleSession = errors.New("corekit: precomputed session is stale")

// PrecomputeRequest establishes a signing session with the server quorum.
type PrecomputeRequest struct {
	KeyType tkey.KeyType
	TssTag  string
	Epoch   uint64
	// SessionID binds all messages of one signing attempt.
	SessionID string
	// Participants are the server identifiers drawn into the quorum.
	Participants party.IDSlice
	// ClientIndex is the client's x-coordinate on the sharing polynomial.
	ClientIndex    party.ID
	AuthSignatures [][]byte
}

// Precomputed is the server side's session state handed back to the client.
type Precomputed struct {
	SessionID string
	// NoncePoint is the full nonce point R for ECDSA, or the server
	// aggregate nonce commitment for EdDSA.
	NoncePoint []byte
}

// SignRequest asks the quorum for its partial signature over a session.
type SignRequest struct {
	SessionID string
	// Digest is the 32-byte message hash for ECDSA, or the reduced
	// challenge scalar for EdDSA.
	Digest []byte
}

// SignResult is the server side's contribution to the final signature.
type SignResult struct {
	// Partial is the aggregated server partial signature scalar.
	Partial []byte
	// Aux carries k⁻¹·r for ECDSA so the client can weight its own share;
	// empty for EdDSA.
	Aux []byte
}

// SigningBackend is the signing side of the server quorum.
type SigningBackend interface {
	Precompute(ctx context.Context, req *PrecomputeRequest) (*Precomputed, error)
	Sign(ctx context.Context, req *SignRequest) (*SignResult, error)
	Cleanup(ctx context.Context, sessionID string) error
}
