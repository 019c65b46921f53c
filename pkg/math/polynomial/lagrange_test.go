package polynomial_test

import (
	"crypto/rand"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/polynomial"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/sample"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

func partyIDs(n int) []party.ID {
	ids := make([]party.ID, n)
	for i := range ids {
		ids[i] = party.ID(i + 1)
	}
	return ids
}

func TestLagrangeSumsToOne(t *testing.T) {
	group := curve.Secp256k1{}

	N := 10
	allIDs := partyIDs(N)
	coefsEven, err := polynomial.Lagrange(group, allIDs)
	require.NoError(t, err)
	coefsOdd, err := polynomial.Lagrange(group, allIDs[:N-1])
	require.NoError(t, err)
	sumEven := group.NewScalar()
	sumOdd := group.NewScalar()
	one := group.NewScalar().SetNat(new(saferith.Nat).SetUint64(1))
	for _, c := range coefsEven {
		sumEven.Add(c)
	}
	for _, c := range coefsOdd {
		sumOdd.Add(c)
	}
	assert.True(t, sumEven.Equal(one))
	assert.True(t, sumOdd.Equal(one))
}

func TestLagrangeDuplicateIndex(t *testing.T) {
	group := curve.Secp256k1{}
	_, err := polynomial.Lagrange(group, []party.ID{2, 3, 2})
	assert.ErrorIs(t, err, polynomial.ErrDuplicateIndex)

	_, err = polynomial.Interpolate(group, []party.ID{2, 2},
		[]curve.Scalar{group.NewScalar().SetUInt32(1), group.NewScalar().SetUInt32(2)})
	assert.ErrorIs(t, err, polynomial.ErrDuplicateIndex)
}

func TestInterpolateRecoversSecret(t *testing.T) {
	for _, group := range []curve.Curve{curve.Secp256k1{}, curve.Ed25519{}} {
		t.Run(group.Name(), func(t *testing.T) {
			secret := sample.Scalar(rand.Reader, group)
			poly := polynomial.NewPolynomial(group, 3, secret, rand.Reader)

			ids := partyIDs(4)
			shares := make([]curve.Scalar, len(ids))
			for i, id := range ids {
				shares[i] = poly.EvaluateAt(id)
			}
			recovered, err := polynomial.Interpolate(group, ids, shares)
			require.NoError(t, err)
			assert.True(t, recovered.Equal(secret))
		})
	}
}

func TestInterpolateAtArbitraryTarget(t *testing.T) {
	group := curve.Secp256k1{}
	secret := sample.Scalar(rand.Reader, group)
	poly := polynomial.NewPolynomial(group, 2, secret, rand.Reader)

	ids := partyIDs(3)
	shares := make([]curve.Scalar, len(ids))
	for i, id := range ids {
		shares[i] = poly.EvaluateAt(id)
	}
	target := party.ID(7)
	value, err := polynomial.InterpolateAt(group, ids, shares, target.Scalar(group))
	require.NoError(t, err)
	assert.True(t, value.Equal(poly.EvaluateAt(target)))
}

func TestDeriveShareCoefficients(t *testing.T) {
	group := curve.Secp256k1{}
	secret := sample.Scalar(rand.Reader, group)
	top := polynomial.NewPolynomial(group, 1, secret, rand.Reader)

	clientX := party.ID(2)
	rootShare := top.EvaluateAt(polynomial.ServerRootIndex)
	clientShare := top.EvaluateAt(clientX)

	serverXs := partyIDs(3)
	sub := polynomial.NewPolynomial(group, 1, rootShare, rand.Reader)

	// Use two of the three servers.
	participating := serverXs[:2]
	coeffs, err := polynomial.DeriveShareCoefficients(group, participating, clientX, group.NewScalar())
	require.NoError(t, err)

	sum := group.NewScalar().Set(coeffs.Client).Mul(clientShare)
	for _, j := range participating {
		term := group.NewScalar().Set(coeffs.Servers[j]).Mul(sub.EvaluateAt(j))
		sum.Add(term)
	}
	assert.True(t, sum.Equal(secret), "weighted client and server shares must combine to the secret")
}

func TestCommitmentsMatchShares(t *testing.T) {
	group := curve.Ed25519{}
	secret := sample.Scalar(rand.Reader, group)
	poly := polynomial.NewPolynomial(group, 4, secret, rand.Reader)
	commitments := poly.Commitments()

	for _, id := range partyIDs(6) {
		expected := polynomial.EvalCommitments(group, commitments, id.Scalar(group))
		assert.True(t, poly.EvaluateAt(id).ActOnBase().Equal(expected))
	}
}

func TestEvaluateRefusesZero(t *testing.T) {
	group := curve.Secp256k1{}
	poly := polynomial.NewPolynomial(group, 2, nil, rand.Reader)
	assert.Panics(t, func() { poly.Evaluate(group.NewScalar()) })
}
