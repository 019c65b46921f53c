package tkey

import (
	"context"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

// InitializeParams configures the first-login key generation.
type InitializeParams struct {
	KeyType KeyType
	TssTag  string
	// TSSIndex for the initial factor; defaults to TSSIndexDevice.
	TSSIndex party.ID
	// FactorKey for the initial factor; generated when nil.
	FactorKey *factor.Key
	// ImportedSecret, when set, becomes the signing secret instead of a
	// quorum-generated one.
	ImportedSecret curve.Scalar
	Description    string
	AuthSignatures [][]byte
}

// Initialize generates a fresh threshold key and registers the initial
// factor. Returns the factor key gating the initial share.
func (t *TKey) Initialize(ctx context.Context, p InitializeParams) (*factor.Key, error) {
	if t.meta != nil {
		return nil, coreerr.New(coreerr.CodeAlreadyInitialized, "metadata record already exists")
	}
	if len(p.AuthSignatures) == 0 {
		return nil, coreerr.New(coreerr.CodeSignaturesMissing, "key generation requires auth signatures")
	}
	if !p.KeyType.Valid() {
		return nil, coreerr.Newf(coreerr.CodeInvalidKeyType, "unknown key type %q", string(p.KeyType))
	}
	if p.TSSIndex == 0 {
		p.TSSIndex = TSSIndexDevice
	}
	if !ValidTSSIndex(p.TSSIndex) {
		return nil, coreerr.Newf(coreerr.CodeInvalidShareType, "share index %s is not assignable", p.TSSIndex)
	}
	key := p.FactorKey
	if key == nil {
		key = factor.Generate(t.rand)
	}
	err := t.Atomic(ctx, func(ctx context.Context) error {
		res, err := t.backend.Keygen(ctx, &KeygenRequest{
			KeyType:        p.KeyType,
			TssTag:         p.TssTag,
			TSSIndex:       p.TSSIndex,
			ImportedSecret: p.ImportedSecret,
			AuthSignatures: p.AuthSignatures,
		})
		if err != nil {
			return err
		}
		if p.ImportedSecret != nil && !res.PubKey.Equal(p.ImportedSecret.ActOnBase()) {
			return coreerr.New(coreerr.CodeReconstructionFailed, "keygen ignored the imported secret")
		}
		pubBytes, err := res.PubKey.MarshalBinary()
		if err != nil {
			return err
		}
		commitments := make([][]byte, len(res.Commitments))
		for i, c := range res.Commitments {
			if commitments[i], err = c.MarshalBinary(); err != nil {
				return err
			}
		}
		meta := &Metadata{
			KeyType:      p.KeyType,
			TssTag:       p.TssTag,
			PubKey:       pubBytes,
			Nonce:        res.Epoch,
			ServerCount:  res.ServerCount,
			Commitments:  commitments,
			FactorEncs:   make(map[string]*FactorEnc),
			Descriptions: make(map[string][]string),
		}
		if err := meta.verifyShare(meta.PolyIndex(p.TSSIndex), res.Share); err != nil {
			return err
		}
		fragment, err := t.sealShare(key.Pub(), p.TSSIndex, res.Epoch, res.Share)
		if err != nil {
			return err
		}
		pub := key.Pub()
		meta.FactorPubs = []factor.Pub{pub}
		meta.FactorEncs[pub.Hex()] = &FactorEnc{TSSIndex: p.TSSIndex, Fragment: fragment}
		if p.Description != "" {
			meta.Descriptions[pub.Hex()] = []string{p.Description}
		}
		t.meta = meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.log.Info().
		Str("keyType", string(p.KeyType)).
		Str("tssIndex", p.TSSIndex.String()).
		Msg("threshold key initialized")
	return key, nil
}

// CreateFactorParams configures factor creation.
type CreateFactorParams struct {
	// TSSIndex is the share type the new factor receives.
	TSSIndex party.ID
	// FactorKey for the new factor; generated when nil.
	FactorKey      *factor.Key
	Description    string
	AuthSignatures [][]byte
}

// CreateFactor registers a new factor. When the target share index matches
// the caller's, the live share is copied directly; otherwise the key is
// reshared so the new index exists on the polynomial.
func (t *TKey) CreateFactor(ctx context.Context, live LiveShare, p CreateFactorParams) (*factor.Key, error) {
	if t.meta == nil {
		return nil, coreerr.New(coreerr.CodeMetadataUninitialized, "no metadata record")
	}
	if len(p.AuthSignatures) == 0 {
		return nil, coreerr.New(coreerr.CodeSignaturesMissing, "factor creation requires auth signatures")
	}
	if !ValidTSSIndex(p.TSSIndex) {
		return nil, coreerr.Newf(coreerr.CodeInvalidShareType, "share index %s is not assignable", p.TSSIndex)
	}
	key := p.FactorKey
	if key == nil {
		key = factor.Generate(t.rand)
	}
	pub := key.Pub()
	if t.meta.HasFactor(pub) {
		return nil, coreerr.New(coreerr.CodeFactorAlreadyExists, "factor pub already registered")
	}
	if len(t.meta.FactorPubs) >= MaxFactors {
		return nil, coreerr.Newf(coreerr.CodeMaximumFactorsReached, "registry holds the maximum of %d factors", MaxFactors)
	}
	err := t.Atomic(ctx, func(ctx context.Context) error {
		t.meta.FactorPubs = append(t.meta.FactorPubs, pub)
		if p.Description != "" {
			t.meta.Descriptions[pub.Hex()] = append(t.meta.Descriptions[pub.Hex()], p.Description)
		}
		return t.CopyOrCreateShare(ctx, p.TSSIndex, pub, live, p.AuthSignatures)
	})
	if err != nil {
		return nil, err
	}
	t.log.Info().
		Str("factor", pub.Hex()).
		Str("tssIndex", p.TSSIndex.String()).
		Uint64("epoch", t.meta.Nonce).
		Msg("factor created")
	return key, nil
}

// CopyOrCreateShare backs the registered factor pub with a share at
// targetIndex. A target matching the caller's own index re-encrypts the
// live share locally; any other target requires a reshare to the next
// epoch.
func (t *TKey) CopyOrCreateShare(ctx context.Context, targetIndex party.ID, pub factor.Pub, live LiveShare, sigs [][]byte) error {
	if t.meta == nil {
		return coreerr.New(coreerr.CodeMetadataUninitialized, "no metadata record")
	}
	if live.Share == nil {
		return coreerr.New(coreerr.CodeFactorKeyMissing, "no reconstructed share available")
	}
	return t.Atomic(ctx, func(ctx context.Context) error {
		if targetIndex == live.TSSIndex {
			fragment, err := t.sealShare(pub, targetIndex, t.meta.Nonce, live.Share)
			if err != nil {
				return err
			}
			t.meta.FactorEncs[pub.Hex()] = &FactorEnc{TSSIndex: targetIndex, Fragment: fragment}
			return nil
		}
		t.meta.FactorEncs[pub.Hex()] = &FactorEnc{TSSIndex: targetIndex}
		return t.reshare(ctx, sigs)
	})
}

// DeleteFactorParams configures factor deletion.
type DeleteFactorParams struct {
	Pub factor.Pub
	// FactorKey, when supplied, must match Pub; it authenticates the
	// deletion of a factor whose key the caller still holds.
	FactorKey      *factor.Key
	AuthSignatures [][]byte
}

// DeleteFactor removes a factor and reshares so its share stops being
// valid. The active factor and the last remaining factor cannot be
// deleted.
func (t *TKey) DeleteFactor(ctx context.Context, activePub factor.Pub, p DeleteFactorParams) error {
	if t.meta == nil {
		return coreerr.New(coreerr.CodeMetadataUninitialized, "no metadata record")
	}
	if len(p.AuthSignatures) == 0 {
		return coreerr.New(coreerr.CodeSignaturesMissing, "factor deletion requires auth signatures")
	}
	if !t.meta.HasFactor(p.Pub) {
		return coreerr.New(coreerr.CodeFactorNotFound, "factor is not registered")
	}
	if p.Pub == activePub {
		return coreerr.New(coreerr.CodeFactorInUseCannotBeDeleted, "cannot delete the factor in use")
	}
	if len(t.meta.FactorPubs) <= 1 {
		return coreerr.New(coreerr.CodeCannotDeleteLastFactor, "cannot delete the last factor")
	}
	if p.FactorKey != nil && p.FactorKey.Pub() != p.Pub {
		return coreerr.New(coreerr.CodeFactorNotFound, "factor key does not match the factor pub")
	}
	err := t.Atomic(ctx, func(ctx context.Context) error {
		kept := make([]factor.Pub, 0, len(t.meta.FactorPubs)-1)
		for _, existing := range t.meta.FactorPubs {
			if existing != p.Pub {
				kept = append(kept, existing)
			}
		}
		t.meta.FactorPubs = kept
		delete(t.meta.FactorEncs, p.Pub.Hex())
		delete(t.meta.Descriptions, p.Pub.Hex())
		return t.reshare(ctx, p.AuthSignatures)
	})
	if err != nil {
		return err
	}
	t.log.Info().
		Str("factor", p.Pub.Hex()).
		Uint64("epoch", t.meta.Nonce).
		Msg("factor deleted")
	return nil
}

// reshare moves the key to the next epoch and re-seals every registered
// factor's fragment with its fresh share. Must run inside Atomic.
func (t *TKey) reshare(ctx context.Context, sigs [][]byte) error {
	indices := t.meta.IndicesInUse()
	epoch := t.meta.Nonce + 1
	res, err := t.backend.Reshare(ctx, &ReshareRequest{
		KeyType:        t.meta.KeyType,
		TssTag:         t.meta.TssTag,
		Epoch:          epoch,
		Indices:        indices,
		AuthSignatures: sigs,
	})
	if err != nil {
		return err
	}
	commitments := make([][]byte, len(res.Commitments))
	for i, c := range res.Commitments {
		if commitments[i], err = c.MarshalBinary(); err != nil {
			return err
		}
	}
	prevPub, err := t.meta.PublicPoint()
	if err != nil {
		return err
	}
	t.meta.Nonce = epoch
	t.meta.Commitments = commitments
	// The secret must survive the reshare untouched.
	commitmentPoints, err := t.meta.CommitmentPoints()
	if err != nil {
		return err
	}
	if len(commitmentPoints) == 0 || !commitmentPoints[0].Equal(prevPub) {
		return coreerr.New(coreerr.CodeReconstructionFailed, "reshare changed the base public key")
	}
	for hexPub, enc := range t.meta.FactorEncs {
		share, ok := res.Shares[enc.TSSIndex]
		if !ok {
			return coreerr.Newf(coreerr.CodeReconstructionFailed,
				"reshare returned no share for index %s", enc.TSSIndex)
		}
		if err := t.meta.verifyShare(t.meta.PolyIndex(enc.TSSIndex), share); err != nil {
			return err
		}
		pub, err := factor.PubFromHex(hexPub)
		if err != nil {
			return err
		}
		fragment, err := t.sealShare(pub, enc.TSSIndex, epoch, share)
		if err != nil {
			return err
		}
		enc.Fragment = fragment
	}
	return nil
}

// AddShareDescription appends a label blob to the factor's descriptions.
func (t *TKey) AddShareDescription(ctx context.Context, pub factor.Pub, description string, sigs [][]byte) error {
	if t.meta == nil {
		return coreerr.New(coreerr.CodeMetadataUninitialized, "no metadata record")
	}
	if len(sigs) == 0 {
		return coreerr.New(coreerr.CodeSignaturesMissing, "mutation requires auth signatures")
	}
	if !t.meta.HasFactor(pub) {
		return coreerr.New(coreerr.CodeFactorNotFound, "factor is not registered")
	}
	return t.Atomic(ctx, func(ctx context.Context) error {
		t.meta.Descriptions[pub.Hex()] = append(t.meta.Descriptions[pub.Hex()], description)
		return nil
	})
}

// DeleteShareDescription removes a previously added label blob.
func (t *TKey) DeleteShareDescription(ctx context.Context, pub factor.Pub, description string, sigs [][]byte) error {
	if t.meta == nil {
		return coreerr.New(coreerr.CodeMetadataUninitialized, "no metadata record")
	}
	if len(sigs) == 0 {
		return coreerr.New(coreerr.CodeSignaturesMissing, "mutation requires auth signatures")
	}
	existing := t.meta.Descriptions[pub.Hex()]
	kept := make([]string, 0, len(existing))
	for _, d := range existing {
		if d != description {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(existing) {
		return coreerr.New(coreerr.CodeFactorNotFound, "description not present")
	}
	return t.Atomic(ctx, func(ctx context.Context) error {
		if len(kept) == 0 {
			delete(t.meta.Descriptions, pub.Hex())
		} else {
			t.meta.Descriptions[pub.Hex()] = kept
		}
		return nil
	})
}
