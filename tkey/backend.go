package tkey

import (
	"context"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

// KeygenRequest asks the server quorum to generate a fresh threshold key.
type KeygenRequest struct {
	KeyType KeyType
	TssTag  string
	// TSSIndex is the share index assigned to the initial factor.
	TSSIndex party.ID
	// ImportedSecret, when set, asks the quorum to shard this secret
	// instead of generating one.
	ImportedSecret curve.Scalar
	AuthSignatures [][]byte
}

// KeygenResult carries the material the client needs to bootstrap its
// metadata record.
type KeygenResult struct {
	// PubKey is the base public key f(0)·G.
	PubKey curve.Point
	// Commitments is the exponent polynomial of the first epoch.
	Commitments []curve.Point
	// Share is the client share at the requested index's polynomial
	// x-coordinate.
	Share curve.Scalar
	// Epoch is the first resharing epoch, normally 1.
	Epoch uint64
	// ServerCount is the size of the quorum holding the server side.
	ServerCount int
}

// ReshareRequest asks the quorum to move the key to a new epoch. The secret
// stays fixed; every listed client index receives a fresh share.
type ReshareRequest struct {
	KeyType KeyType
	TssTag  string
	// Epoch is the new epoch to establish, current + 1.
	Epoch uint64
	// Indices are the client share indices that need shares at the new
	// epoch.
	Indices        party.IDSlice
	AuthSignatures [][]byte
}

// ReshareResult carries the fresh client shares and the new epoch's
// exponent polynomial.
type ReshareResult struct {
	// Shares maps each requested share index to its new share.
	Shares      map[party.ID]curve.Scalar
	Commitments []curve.Point
}

// ExportRequest asks the quorum to release its side of the secret. This is
// the audited escape hatch behind UNSAFE_ExportTssKey.
type ExportRequest struct {
	KeyType KeyType
	TssTag  string
	Epoch   uint64
	// ClientIndex is the caller's polynomial x-coordinate. The returned
	// aggregate is weighted for the domain {servers, ClientIndex} at 0.
	ClientIndex    party.ID
	AuthSignatures [][]byte
}

// Backend is the resharing side of the server quorum. internal/tssmock
// implements it in-process for tests and the demo CLI.
type Backend interface {
	Keygen(ctx context.Context, req *KeygenRequest) (*KeygenResult, error)
	Reshare(ctx context.Context, req *ReshareRequest) (*ReshareResult, error)
	// ExportShare returns Σⱼ λⱼ(0)·shareⱼ over the server side of the
	// signing domain, so that adding λ_client(0)·clientShare yields the
	// full secret.
	ExportShare(ctx context.Context, req *ExportRequest) (curve.Scalar, error)
}
