package curve_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/sample"
)

func groups() []curve.Curve {
	return []curve.Curve{curve.Secp256k1{}, curve.Ed25519{}}
}

func TestScalarArithmetic(t *testing.T) {
	for _, group := range groups() {
		t.Run(group.Name(), func(t *testing.T) {
			a := sample.ScalarUnit(rand.Reader, group)
			b := sample.ScalarUnit(rand.Reader, group)

			// a + b - b == a
			sum := group.NewScalar().Set(a).Add(b).Sub(b)
			assert.True(t, sum.Equal(a))

			// a * a⁻¹ == 1
			inv := group.NewScalar().Set(a).Invert()
			prod := group.NewScalar().Set(a).Mul(inv)
			one := group.NewScalar().SetUInt32(1)
			assert.True(t, prod.Equal(one))

			// a + (−a) == 0
			neg := group.NewScalar().Set(a).Negate()
			assert.True(t, group.NewScalar().Set(a).Add(neg).IsZero())
		})
	}
}

func TestScalarRoundTrip(t *testing.T) {
	for _, group := range groups() {
		t.Run(group.Name(), func(t *testing.T) {
			a := sample.ScalarUnit(rand.Reader, group)
			data, err := a.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, data, group.ScalarBytes())

			b := group.NewScalar()
			require.NoError(t, b.UnmarshalBinary(data))
			assert.True(t, a.Equal(b))
		})
	}
}

func TestPointRoundTrip(t *testing.T) {
	for _, group := range groups() {
		t.Run(group.Name(), func(t *testing.T) {
			p := sample.ScalarUnit(rand.Reader, group).ActOnBase()
			data, err := p.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, data, group.PointBytes())

			q := group.NewPoint()
			require.NoError(t, q.UnmarshalBinary(data))
			assert.True(t, p.Equal(q))
		})
	}
}

func TestPointGroupLaw(t *testing.T) {
	for _, group := range groups() {
		t.Run(group.Name(), func(t *testing.T) {
			a := sample.ScalarUnit(rand.Reader, group)
			b := sample.ScalarUnit(rand.Reader, group)

			// (a+b)·G == a·G + b·G
			left := group.NewScalar().Set(a).Add(b).ActOnBase()
			right := a.ActOnBase().Add(b.ActOnBase())
			assert.True(t, left.Equal(right))

			// P − P == identity
			p := a.ActOnBase()
			assert.True(t, p.Sub(p).IsIdentity())
		})
	}
}

func TestActMatchesActOnBase(t *testing.T) {
	for _, group := range groups() {
		t.Run(group.Name(), func(t *testing.T) {
			a := sample.ScalarUnit(rand.Reader, group)
			base := group.NewBasePoint()
			assert.True(t, a.Act(base).Equal(a.ActOnBase()))
		})
	}
}

func TestFromHashDeterministic(t *testing.T) {
	digest := make([]byte, 64)
	for i := range digest {
		digest[i] = byte(i)
	}
	for _, group := range groups() {
		t.Run(group.Name(), func(t *testing.T) {
			a := curve.FromHash(group, digest)
			b := curve.FromHash(group, digest)
			assert.True(t, a.Equal(b))
			assert.False(t, a.IsZero())
		})
	}
}

func TestSecp256k1XScalarAndParity(t *testing.T) {
	group := curve.Secp256k1{}
	p := sample.ScalarUnit(rand.Reader, group).ActOnBase()
	require.NotNil(t, p.XScalar())
	neg := p.Negate()
	assert.NotEqual(t, p.HasEvenY(), neg.HasEvenY())
	assert.True(t, p.XScalar().Equal(neg.XScalar()))
}
