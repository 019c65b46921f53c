package tkey

import (
	"context"
	"errors"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/polynomial"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

// ExportSecret reconstructs the full signing secret by combining the
// caller's live share with the server quorum's audited export aggregate.
// The result leaves the threshold model entirely; callers own the risk.
func (t *TKey) ExportSecret(ctx context.Context, live LiveShare, sigs [][]byte) (curve.Scalar, error) {
	if t.meta == nil {
		return nil, coreerr.New(coreerr.CodeMetadataUninitialized, "no metadata record")
	}
	if len(sigs) == 0 {
		return nil, coreerr.New(coreerr.CodeSignaturesMissing, "key export requires auth signatures")
	}
	if live.Share == nil {
		return nil, coreerr.New(coreerr.CodeFactorKeyMissing, "no reconstructed share available")
	}
	group, err := t.meta.Group()
	if err != nil {
		return nil, err
	}
	clientX := t.meta.PolyIndex(live.TSSIndex)
	aggregate, err := t.backend.ExportShare(ctx, &ExportRequest{
		KeyType:        t.meta.KeyType,
		TssTag:         t.meta.TssTag,
		Epoch:          t.meta.Nonce,
		ClientIndex:    clientX,
		AuthSignatures: sigs,
	})
	if err != nil {
		return nil, err
	}
	domain := t.meta.ShareDomain(live.TSSIndex)
	coeffs, err := polynomial.Lagrange(group, domain)
	if err != nil {
		return nil, err
	}
	secret := group.NewScalar().Set(coeffs[clientX]).Mul(live.Share).Add(aggregate)
	if err := t.checkSecret(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// RecoverFromFactors reconstructs the signing secret purely client-side
// from factor keys holding shares at distinct indices. Only the secp256k1
// hierarchy supports this: its client shares alone meet the threshold.
func (t *TKey) RecoverFromFactors(keys []*factor.Key) (curve.Scalar, error) {
	if t.meta == nil {
		return nil, coreerr.New(coreerr.CodeMetadataUninitialized, "no metadata record")
	}
	if t.meta.KeyType == KeyTypeEd25519 {
		return nil, coreerr.New(coreerr.CodeRecoveryUnsupported,
			"client-side recovery is not possible for ed25519 keys")
	}
	if len(keys) < 2 {
		return nil, coreerr.New(coreerr.CodeFactorKeyMissing, "recovery needs at least two factor keys")
	}
	group, err := t.meta.Group()
	if err != nil {
		return nil, err
	}
	indices := make([]party.ID, 0, len(keys))
	shares := make([]curve.Scalar, 0, len(keys))
	for _, key := range keys {
		live, err := t.DecryptShare(key)
		if err != nil {
			return nil, err
		}
		indices = append(indices, t.meta.PolyIndex(live.TSSIndex))
		shares = append(shares, live.Share)
	}
	secret, err := polynomial.Interpolate(group, indices, shares)
	if errors.Is(err, polynomial.ErrDuplicateIndex) {
		return nil, coreerr.Wrap(coreerr.CodeDuplicateTSSIndex, "factors hold shares at the same index", err)
	}
	if err != nil {
		return nil, err
	}
	if err := t.checkSecret(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func (t *TKey) checkSecret(secret curve.Scalar) error {
	pub, err := t.meta.PublicPoint()
	if err != nil {
		return err
	}
	if !secret.ActOnBase().Equal(pub) {
		return coreerr.New(coreerr.CodeReconstructionFailed,
			"reconstructed secret does not match the stored public key")
	}
	return nil
}
