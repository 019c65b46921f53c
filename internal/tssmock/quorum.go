// Package tssmock is an in-process stand-in for the server quorum. It
// produces transcripts with the same shape as the real thing (epochs,
// sessions, partial signatures) so the engine and its tests can run
// without network infrastructure. It is not privacy preserving: one
// process plays every server.
package tssmock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/polynomial"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/sample"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

// keyState is the quorum's view of one epoch of one key.
type keyState struct {
	epoch       uint64
	commitments []curve.Point
	// serverShares holds g(j) per server for secp256k1 (subshares of the
	// root share) and f(j) per server for ed25519.
	serverShares map[party.ID]curve.Scalar
	// rootShare is f(ServerRootIndex); secp256k1 only.
	rootShare curve.Scalar
	// poly is kept so reshares can hand out client shares at any index.
	poly *polynomial.Polynomial
}

// lineage is the full history of one key across epochs. The secret never
// changes; every epoch carries a fresh polynomial around it.
type lineage struct {
	keyType tkey.KeyType
	group   curve.Curve
	secret  curve.Scalar
	current uint64
	epochs  map[uint64]*keyState
}

// Quorum simulates a fixed-size server quorum.
type Quorum struct {
	mu          sync.Mutex
	serverCount int
	rand        io.Reader
	log         zerolog.Logger
	keys        map[string]*lineage
	sessions    map[string]*session
}

// NewQuorum returns a quorum of serverCount servers. serverCount must be
// at least 2.
func NewQuorum(serverCount int, rand io.Reader, log zerolog.Logger) (*Quorum, error) {
	if serverCount < 2 {
		return nil, fmt.Errorf("tssmock: quorum needs at least 2 servers, got %d", serverCount)
	}
	return &Quorum{
		serverCount: serverCount,
		rand:        rand,
		log:         log.With().Str("component", "tssmock").Logger(),
		keys:        make(map[string]*lineage),
		sessions:    make(map[string]*session),
	}, nil
}

func keyName(keyType tkey.KeyType, tssTag string) string {
	return string(keyType) + "/" + tssTag
}

// polyX maps a client share index to its polynomial x-coordinate,
// mirroring the layout the client records in its metadata.
func (q *Quorum) polyX(keyType tkey.KeyType, tssIndex party.ID) party.ID {
	if keyType == tkey.KeyTypeEd25519 {
		return party.ID(q.serverCount) + tssIndex - 1
	}
	return tssIndex
}

// buildEpoch lays a fresh polynomial around the lineage's secret.
func (q *Quorum) buildEpoch(lin *lineage, epoch uint64) (*keyState, error) {
	state := &keyState{
		epoch:        epoch,
		serverShares: make(map[party.ID]curve.Scalar, q.serverCount),
	}
	switch lin.keyType {
	case tkey.KeyTypeSecp256k1:
		// Two-level hierarchy: degree-1 top polynomial, with the server
		// root share subshared so n−1 of n servers can act for it.
		f := polynomial.NewPolynomial(lin.group, 1, lin.secret, q.rand)
		state.poly = f
		state.rootShare = f.EvaluateAt(polynomial.ServerRootIndex)
		sub := polynomial.NewPolynomial(lin.group, q.serverCount-2, state.rootShare, q.rand)
		for j := 1; j <= q.serverCount; j++ {
			state.serverShares[party.ID(j)] = sub.EvaluateAt(party.ID(j))
		}
		state.commitments = f.Commitments()
	case tkey.KeyTypeEd25519:
		// Flat scheme: degree-n polynomial, servers at 1..n, clients
		// above. All n server points plus one client point meet the
		// threshold; the servers alone stay one point short.
		f := polynomial.NewPolynomial(lin.group, q.serverCount, lin.secret, q.rand)
		state.poly = f
		for j := 1; j <= q.serverCount; j++ {
			state.serverShares[party.ID(j)] = f.EvaluateAt(party.ID(j))
		}
		state.commitments = f.Commitments()
	default:
		return nil, coreerr.Newf(coreerr.CodeInvalidKeyType, "unknown key type %q", string(lin.keyType))
	}
	lin.epochs[epoch] = state
	if epoch > lin.current {
		lin.current = epoch
	}
	return state, nil
}

// Keygen implements tkey.Backend.
func (q *Quorum) Keygen(_ context.Context, req *tkey.KeygenRequest) (*tkey.KeygenResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(req.AuthSignatures) == 0 {
		return nil, coreerr.New(coreerr.CodeSignaturesMissing, "keygen requires auth signatures")
	}
	group, err := req.KeyType.Group()
	if err != nil {
		return nil, err
	}
	name := keyName(req.KeyType, req.TssTag)
	if _, ok := q.keys[name]; ok {
		return nil, fmt.Errorf("tssmock: key %q already exists", name)
	}
	var secret curve.Scalar
	if req.ImportedSecret != nil {
		if req.ImportedSecret.IsZero() {
			return nil, fmt.Errorf("tssmock: imported secret is zero")
		}
		secret = group.NewScalar().Set(req.ImportedSecret)
	} else {
		secret = sample.ScalarUnit(q.rand, group)
	}
	lin := &lineage{
		keyType: req.KeyType,
		group:   group,
		secret:  secret,
		epochs:  make(map[uint64]*keyState),
	}
	state, err := q.buildEpoch(lin, 1)
	if err != nil {
		return nil, err
	}
	q.keys[name] = lin
	q.log.Info().Str("key", name).Msg("threshold key generated")
	return &tkey.KeygenResult{
		PubKey:      lin.secret.ActOnBase(),
		Commitments: state.commitments,
		Share:       state.poly.EvaluateAt(q.polyX(req.KeyType, req.TSSIndex)),
		Epoch:       1,
		ServerCount: q.serverCount,
	}, nil
}

// Reshare implements tkey.Backend. Resharing at an epoch that already
// exists overwrites it, which is what a client retrying after a rollback
// needs.
func (q *Quorum) Reshare(_ context.Context, req *tkey.ReshareRequest) (*tkey.ReshareResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(req.AuthSignatures) == 0 {
		return nil, coreerr.New(coreerr.CodeSignaturesMissing, "reshare requires auth signatures")
	}
	lin, ok := q.keys[keyName(req.KeyType, req.TssTag)]
	if !ok {
		return nil, coreerr.New(coreerr.CodeMetadataUninitialized, "unknown key")
	}
	if req.Epoch == 0 || req.Epoch > lin.current+1 {
		return nil, fmt.Errorf("tssmock: cannot reshare to epoch %d from %d", req.Epoch, lin.current)
	}
	state, err := q.buildEpoch(lin, req.Epoch)
	if err != nil {
		return nil, err
	}
	shares := make(map[party.ID]curve.Scalar, len(req.Indices))
	for _, idx := range req.Indices {
		shares[idx] = state.poly.EvaluateAt(q.polyX(req.KeyType, idx))
	}
	q.log.Info().
		Str("key", keyName(req.KeyType, req.TssTag)).
		Uint64("epoch", req.Epoch).
		Int("indices", len(req.Indices)).
		Msg("key reshared")
	return &tkey.ReshareResult{Shares: shares, Commitments: state.commitments}, nil
}

// ExportShare implements tkey.Backend.
func (q *Quorum) ExportShare(_ context.Context, req *tkey.ExportRequest) (curve.Scalar, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(req.AuthSignatures) == 0 {
		return nil, coreerr.New(coreerr.CodeSignaturesMissing, "export requires auth signatures")
	}
	lin, ok := q.keys[keyName(req.KeyType, req.TssTag)]
	if !ok {
		return nil, coreerr.New(coreerr.CodeMetadataUninitialized, "unknown key")
	}
	state, ok := lin.epochs[req.Epoch]
	if !ok {
		return nil, fmt.Errorf("tssmock: no state at epoch %d", req.Epoch)
	}
	group := lin.group
	aggregate := group.NewScalar()
	switch lin.keyType {
	case tkey.KeyTypeSecp256k1:
		coeffs, err := polynomial.Lagrange(group, []party.ID{polynomial.ServerRootIndex, req.ClientIndex})
		if err != nil {
			return nil, err
		}
		aggregate.Set(coeffs[polynomial.ServerRootIndex]).Mul(state.rootShare)
	case tkey.KeyTypeEd25519:
		domain := make([]party.ID, 0, q.serverCount+1)
		for j := 1; j <= q.serverCount; j++ {
			domain = append(domain, party.ID(j))
		}
		domain = append(domain, req.ClientIndex)
		coeffs, err := polynomial.Lagrange(group, domain)
		if err != nil {
			return nil, err
		}
		for j := 1; j <= q.serverCount; j++ {
			id := party.ID(j)
			term := group.NewScalar().Set(coeffs[id]).Mul(state.serverShares[id])
			aggregate.Add(term)
		}
	default:
		return nil, errors.New("tssmock: unsupported key type")
	}
	q.log.Warn().
		Str("key", keyName(req.KeyType, req.TssTag)).
		Uint64("epoch", req.Epoch).
		Msg("server key material exported")
	return aggregate, nil
}
