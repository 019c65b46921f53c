package tssmock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Web3Auth/mpc-core-kit-sub001/corekit"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/polynomial"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/sample"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

// session is the server side of one precomputed signing attempt. Sessions
// are single use.
type session struct {
	keyType      tkey.KeyType
	group        curve.Curve
	state        *keyState
	clientIndex  party.ID
	participants party.IDSlice
	// ECDSA precomputed nonce.
	k curve.Scalar
	r curve.Scalar
	// EdDSA server nonce.
	serverNonce curve.Scalar
	used        bool
	expired     bool
}

// Precompute implements corekit.SigningBackend.
func (q *Quorum) Precompute(_ context.Context, req *corekit.PrecomputeRequest) (*corekit.Precomputed, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(req.AuthSignatures) == 0 {
		return nil, fmt.Errorf("tssmock: precompute requires auth signatures")
	}
	lin, ok := q.keys[keyName(req.KeyType, req.TssTag)]
	if !ok {
		return nil, fmt.Errorf("tssmock: unknown key")
	}
	if req.Epoch != lin.current {
		return nil, fmt.Errorf("tssmock: epoch %d is not current (%d): %w",
			req.Epoch, lin.current, corekit.ErrStaleSession)
	}
	state := lin.epochs[req.Epoch]
	if err := q.checkParticipants(req.KeyType, req.Participants); err != nil {
		return nil, err
	}
	sess := &session{
		keyType:      req.KeyType,
		group:        lin.group,
		state:        state,
		clientIndex:  req.ClientIndex,
		participants: req.Participants.Copy(),
	}
	var noncePoint curve.Point
	switch req.KeyType {
	case tkey.KeyTypeSecp256k1:
		for {
			sess.k = sample.ScalarUnit(q.rand, lin.group)
			point := sess.k.ActOnBase()
			sess.r = point.XScalar()
			if !sess.r.IsZero() {
				noncePoint = point
				break
			}
		}
	case tkey.KeyTypeEd25519:
		sess.serverNonce = sample.ScalarUnit(q.rand, lin.group)
		noncePoint = sess.serverNonce.ActOnBase()
	default:
		return nil, fmt.Errorf("tssmock: unsupported key type %q", string(req.KeyType))
	}
	data, err := noncePoint.MarshalBinary()
	if err != nil {
		return nil, err
	}
	q.sessions[req.SessionID] = sess
	q.log.Debug().Str("session", req.SessionID).Msg("signing session precomputed")
	return &corekit.Precomputed{SessionID: req.SessionID, NoncePoint: data}, nil
}

// Sign implements corekit.SigningBackend.
func (q *Quorum) Sign(ctx context.Context, req *corekit.SignRequest) (*corekit.SignResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sess, ok := q.sessions[req.SessionID]
	if !ok || sess.used || sess.expired {
		return nil, corekit.ErrStaleSession
	}
	sess.used = true
	group := sess.group
	switch sess.keyType {
	case tkey.KeyTypeSecp256k1:
		coeffs, err := polynomial.DeriveShareCoefficients(group, sess.participants, sess.clientIndex, group.NewScalar())
		if err != nil {
			return nil, err
		}
		serverSum, err := q.weightedSum(ctx, group, sess, coeffs.Servers)
		if err != nil {
			return nil, err
		}
		m := curve.FromHash(group, req.Digest)
		kInv := group.NewScalar().Set(sess.k).Invert()
		u := group.NewScalar().Set(kInv).Mul(sess.r)
		partial := group.NewScalar().Set(kInv).Mul(m)
		partial.Add(group.NewScalar().Set(u).Mul(serverSum))
		partialBytes, err := partial.MarshalBinary()
		if err != nil {
			return nil, err
		}
		auxBytes, err := u.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return &corekit.SignResult{Partial: partialBytes, Aux: auxBytes}, nil
	case tkey.KeyTypeEd25519:
		challenge := group.NewScalar()
		if err := challenge.UnmarshalBinary(req.Digest); err != nil {
			return nil, fmt.Errorf("tssmock: bad challenge scalar: %w", err)
		}
		domain := append(sess.participants.Copy(), sess.clientIndex)
		coeffs, err := polynomial.Lagrange(group, domain)
		if err != nil {
			return nil, err
		}
		weights := make(map[party.ID]curve.Scalar, len(sess.participants))
		for _, j := range sess.participants {
			weights[j] = coeffs[j]
		}
		serverSum, err := q.weightedSum(ctx, group, sess, weights)
		if err != nil {
			return nil, err
		}
		partial := group.NewScalar().Set(challenge).Mul(serverSum).Add(sess.serverNonce)
		partialBytes, err := partial.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return &corekit.SignResult{Partial: partialBytes}, nil
	default:
		return nil, fmt.Errorf("tssmock: unsupported key type %q", string(sess.keyType))
	}
}

// weightedSum fans out one task per participating server, mirroring the
// request shape of the real quorum.
func (q *Quorum) weightedSum(ctx context.Context, group curve.Curve, sess *session, weights map[party.ID]curve.Scalar) (curve.Scalar, error) {
	var mu sync.Mutex
	sum := group.NewScalar()
	g, _ := errgroup.WithContext(ctx)
	for id, weight := range weights {
		id, weight := id, weight
		g.Go(func() error {
			share, ok := sess.state.serverShares[id]
			if !ok {
				return fmt.Errorf("tssmock: server %s holds no share", id)
			}
			term := group.NewScalar().Set(weight).Mul(share)
			mu.Lock()
			sum.Add(term)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sum, nil
}

// Cleanup implements corekit.SigningBackend.
func (q *Quorum) Cleanup(_ context.Context, sessionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.sessions, sessionID)
	return nil
}

// ExpireSessions invalidates every live session. Test hook for the
// stale-session retry path.
func (q *Quorum) ExpireSessions() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, sess := range q.sessions {
		sess.expired = true
	}
}

func (q *Quorum) checkParticipants(keyType tkey.KeyType, participants party.IDSlice) error {
	seen := make(map[party.ID]struct{}, len(participants))
	for _, id := range participants {
		if id == 0 || int(id) > q.serverCount {
			return fmt.Errorf("tssmock: participant %s outside quorum", id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("tssmock: duplicate participant %s", id)
		}
		seen[id] = struct{}{}
	}
	want := q.serverCount - 1
	if keyType == tkey.KeyTypeEd25519 {
		want = q.serverCount
	}
	if len(participants) != want {
		return fmt.Errorf("tssmock: quorum needs %d participants, got %d", want, len(participants))
	}
	return nil
}
