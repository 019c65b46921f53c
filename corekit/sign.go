package corekit

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/zeebo/blake3"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/polynomial"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/sample"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

const sessionIDInfo = "mpc-core-kit/signing-session/v1"

// precomputedSession is the client's handle on a server-side precomputed
// signing session. It stays valid for the epoch it was created at.
type precomputedSession struct {
	id           string
	epoch        uint64
	participants party.IDSlice
	noncePoint   curve.Point
}

// selectQuorum draws the participating servers. The secp256k1 hierarchy
// signs with n−1 of n servers chosen by the session seed; the flat
// ed25519 scheme always needs the full block.
func selectQuorum(keyType tkey.KeyType, serverCount int, seed []byte) party.IDSlice {
	excluded := party.ID(0)
	if keyType == tkey.KeyTypeSecp256k1 {
		excluded = party.ID(seed[0]%byte(serverCount)) + 1
	}
	ids := make([]party.ID, 0, serverCount)
	for j := 1; j <= serverCount; j++ {
		if party.ID(j) != excluded {
			ids = append(ids, party.ID(j))
		}
	}
	return party.NewIDSlice(ids)
}

// ensurePrecomputedLocked returns a session usable at the current epoch,
// establishing a fresh one when none is cached.
func (c *Core) ensurePrecomputedLocked(ctx context.Context) (*precomputedSession, error) {
	meta := c.tk.Metadata()
	if c.precomp != nil && c.precomp.epoch == meta.Nonce {
		return c.precomp, nil
	}
	c.discardPrecomputedLocked(ctx)

	seed := make([]byte, 32)
	if _, err := io.ReadFull(c.opts.Rand, seed); err != nil {
		return nil, err
	}
	var epochBytes [8]byte
	binary.BigEndian.PutUint64(epochBytes[:], meta.Nonce)
	h := blake3.New()
	_, _ = h.Write([]byte(sessionIDInfo))
	_, _ = h.Write([]byte(c.auth.VerifierID))
	_, _ = h.Write([]byte(meta.TssTag))
	_, _ = h.Write(epochBytes[:])
	_, _ = h.Write(seed)
	sid := hex.EncodeToString(h.Sum(nil))

	participants := selectQuorum(meta.KeyType, meta.ServerCount, seed)
	res, err := c.opts.SigningBackend.Precompute(ctx, &PrecomputeRequest{
		KeyType:        meta.KeyType,
		TssTag:         meta.TssTag,
		Epoch:          meta.Nonce,
		SessionID:      sid,
		Participants:   participants,
		ClientIndex:    meta.PolyIndex(c.live.TSSIndex),
		AuthSignatures: c.auth.Signatures,
	})
	if err != nil {
		return nil, err
	}
	group, err := meta.Group()
	if err != nil {
		return nil, err
	}
	noncePoint := group.NewPoint()
	if err := noncePoint.UnmarshalBinary(res.NoncePoint); err != nil {
		return nil, err
	}
	c.precomp = &precomputedSession{
		id:           res.SessionID,
		epoch:        meta.Nonce,
		participants: participants,
		noncePoint:   noncePoint,
	}
	c.log.Debug().Str("session", sid).Uint64("epoch", meta.Nonce).Msg("signing session established")
	return c.precomp, nil
}

func (c *Core) discardPrecomputedLocked(ctx context.Context) {
	if c.precomp == nil {
		return
	}
	if err := c.opts.SigningBackend.Cleanup(ctx, c.precomp.id); err != nil {
		c.log.Warn().Err(err).Str("session", c.precomp.id).Msg("session cleanup failed")
	}
	c.precomp = nil
}

// Precompute warms up a signing session ahead of time so the first
// signature request only pays for the final round.
func (c *Core) Precompute(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return err
	}
	_, err := c.ensurePrecomputedLocked(ctx)
	return err
}

// SignECDSA signs a 32-byte digest with the selected secp256k1 account. A
// stale precomputed session is retried exactly once on a fresh session.
func (c *Core) SignECDSA(ctx context.Context, digest []byte) (*ECDSASignature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return nil, err
	}
	meta := c.tk.Metadata()
	if meta.KeyType != tkey.KeyTypeSecp256k1 {
		return nil, coreerr.Newf(coreerr.CodeInvalidKeyType, "key type %q cannot produce ECDSA signatures", string(meta.KeyType))
	}
	if len(digest) != 32 {
		return nil, coreerr.Newf(coreerr.CodeInvalidOptions, "ECDSA digest must be 32 bytes, got %d", len(digest))
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		ps, err := c.ensurePrecomputedLocked(ctx)
		if err != nil {
			return nil, err
		}
		sig, err := c.ecdsaWithSessionLocked(ctx, ps, digest)
		c.discardPrecomputedLocked(ctx)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		if !errors.Is(err, ErrStaleSession) {
			return nil, err
		}
		c.log.Debug().Msg("stale signing session, retrying once")
	}
	return nil, lastErr
}

func (c *Core) ecdsaWithSessionLocked(ctx context.Context, ps *precomputedSession, digest []byte) (*ECDSASignature, error) {
	group := curve.Secp256k1{}
	res, err := c.opts.SigningBackend.Sign(ctx, &SignRequest{SessionID: ps.id, Digest: digest})
	if err != nil {
		return nil, err
	}
	partial := group.NewScalar()
	if err := partial.UnmarshalBinary(res.Partial); err != nil {
		return nil, err
	}
	u := group.NewScalar()
	if err := u.UnmarshalBinary(res.Aux); err != nil {
		return nil, err
	}
	clientX := c.tk.Metadata().PolyIndex(c.live.TSSIndex)
	coeffs, err := polynomial.DeriveShareCoefficients(group, ps.participants, clientX, group.NewScalar())
	if err != nil {
		return nil, err
	}
	weighted := group.NewScalar().Set(coeffs.Client).Mul(c.live.Share)
	if c.accountNonce != nil && !c.accountNonce.IsZero() {
		weighted.Add(c.accountNonce)
	}
	s := group.NewScalar().Set(u).Mul(weighted).Add(partial)
	r := ps.noncePoint.XScalar()
	rBytes, err := r.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sBytes, err := s.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v := byte(1)
	if ps.noncePoint.HasEvenY() {
		v = 0
	}
	if !isLowS(sBytes) {
		if sBytes, err = s.Negate().MarshalBinary(); err != nil {
			return nil, err
		}
		v ^= 1
	}
	sig := &ECDSASignature{R: rBytes, S: sBytes, V: v}
	pub, err := c.accountPubLocked()
	if err != nil {
		return nil, err
	}
	if !sig.Verify(pub, digest) {
		return nil, coreerr.New(coreerr.CodeReconstructionFailed, "assembled ECDSA signature does not verify")
	}
	return sig, nil
}

// SignEdDSA signs a message with the ed25519 key, producing an
// RFC 8032 compatible signature. A stale precomputed session is retried
// exactly once.
func (c *Core) SignEdDSA(ctx context.Context, message []byte) (*EdDSASignature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return nil, err
	}
	meta := c.tk.Metadata()
	if meta.KeyType != tkey.KeyTypeEd25519 {
		return nil, coreerr.Newf(coreerr.CodeInvalidKeyType, "key type %q cannot produce EdDSA signatures", string(meta.KeyType))
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		ps, err := c.ensurePrecomputedLocked(ctx)
		if err != nil {
			return nil, err
		}
		sig, err := c.eddsaWithSessionLocked(ctx, ps, message)
		c.discardPrecomputedLocked(ctx)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		if !errors.Is(err, ErrStaleSession) {
			return nil, err
		}
		c.log.Debug().Msg("stale signing session, retrying once")
	}
	return nil, lastErr
}

func (c *Core) eddsaWithSessionLocked(ctx context.Context, ps *precomputedSession, message []byte) (*EdDSASignature, error) {
	meta := c.tk.Metadata()
	group, err := meta.Group()
	if err != nil {
		return nil, err
	}
	basePub, err := meta.PublicPoint()
	if err != nil {
		return nil, err
	}
	aBytes, err := basePub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	clientNonce := sample.ScalarUnit(c.opts.Rand, group)
	noncePoint := ps.noncePoint.Add(clientNonce.ActOnBase())
	rBytes, err := noncePoint.MarshalBinary()
	if err != nil {
		return nil, err
	}
	challenge := reduceWideLE(group, eddsaChallenge(rBytes, aBytes, message))
	challengeBytes, err := challenge.MarshalBinary()
	if err != nil {
		return nil, err
	}
	res, err := c.opts.SigningBackend.Sign(ctx, &SignRequest{SessionID: ps.id, Digest: challengeBytes})
	if err != nil {
		return nil, err
	}
	partial := group.NewScalar()
	if err := partial.UnmarshalBinary(res.Partial); err != nil {
		return nil, err
	}
	clientX := meta.PolyIndex(c.live.TSSIndex)
	domain := append(ps.participants.Copy(), clientX)
	coeffs, err := polynomial.Lagrange(group, domain)
	if err != nil {
		return nil, err
	}
	weighted := group.NewScalar().Set(coeffs[clientX]).Mul(c.live.Share)
	s := group.NewScalar().Set(challenge).Mul(weighted).Add(clientNonce).Add(partial)
	sBytes, err := s.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sig := &EdDSASignature{R: rBytes, S: sBytes}
	if !sig.Verify(aBytes, message) {
		return nil, coreerr.New(coreerr.CodeReconstructionFailed, "assembled EdDSA signature does not verify")
	}
	return sig, nil
}

// eddsaChallenge is SHA-512(R ‖ A ‖ M) per RFC 8032.
func eddsaChallenge(rBytes, aBytes, message []byte) []byte {
	h := sha512.New()
	h.Write(rBytes)
	h.Write(aBytes)
	h.Write(message)
	return h.Sum(nil)
}

// reduceWideLE reduces a little-endian wide hash output modulo the group
// order.
func reduceWideLE(group curve.Curve, wide []byte) curve.Scalar {
	be := make([]byte, len(wide))
	for i, b := range wide {
		be[len(wide)-1-i] = b
	}
	return group.NewScalar().SetNat(new(saferith.Nat).SetBytes(be))
}
