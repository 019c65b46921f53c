package polynomial

import (
	"errors"
	"fmt"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

// ErrDuplicateIndex is returned when the same x-coordinate appears twice in
// an interpolation domain. Allowing it silently would collapse the rank of
// the system and corrupt reconstruction, so it is a hard failure.
var ErrDuplicateIndex = errors.New("polynomial: duplicate share index")

// ServerRootIndex is the x-coordinate of the share jointly held by the
// signing servers in the two-level hierarchy.
const ServerRootIndex party.ID = 1

// Coefficient returns the Lagrange coefficient lⱼ(target) for the share at
// index j within the interpolation domain xs:
//
//	lⱼ(T) = Π_{i≠j} (xᵢ − T)/(xᵢ − xⱼ)
//
// The weighted sum Σ lⱼ(T)·f(xⱼ) reconstructs the polynomial value f(T).
func Coefficient(group curve.Curve, xs []party.ID, j party.ID, target curve.Scalar) (curve.Scalar, error) {
	if err := checkDomain(xs); err != nil {
		return nil, err
	}
	found := false
	for _, x := range xs {
		if x == j {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("polynomial: index %s not in interpolation domain", j)
	}
	return coefficient(group, xs, j, target), nil
}

// CoefficientsAt returns the Lagrange coefficients at target for every index
// in xs.
func CoefficientsAt(group curve.Curve, xs []party.ID, target curve.Scalar) (map[party.ID]curve.Scalar, error) {
	if err := checkDomain(xs); err != nil {
		return nil, err
	}
	out := make(map[party.ID]curve.Scalar, len(xs))
	for _, j := range xs {
		out[j] = coefficient(group, xs, j, target)
	}
	return out, nil
}

// Lagrange returns the Lagrange coefficients at 0 for all indices in xs.
func Lagrange(group curve.Curve, xs []party.ID) (map[party.ID]curve.Scalar, error) {
	return CoefficientsAt(group, xs, group.NewScalar())
}

// Interpolate reconstructs the secret f(0) from the shares at the given
// indices. Indices and shares are matched positionally.
func Interpolate(group curve.Curve, indices []party.ID, shares []curve.Scalar) (curve.Scalar, error) {
	return InterpolateAt(group, indices, shares, group.NewScalar())
}

// InterpolateAt reconstructs the polynomial value f(target) from the shares
// at the given indices.
func InterpolateAt(group curve.Curve, indices []party.ID, shares []curve.Scalar, target curve.Scalar) (curve.Scalar, error) {
	if len(indices) != len(shares) {
		return nil, fmt.Errorf("polynomial: %d indices for %d shares", len(indices), len(shares))
	}
	coeffs, err := CoefficientsAt(group, indices, target)
	if err != nil {
		return nil, err
	}
	sum := group.NewScalar()
	for i, idx := range indices {
		term := group.NewScalar().Set(coeffs[idx]).Mul(shares[i])
		sum.Add(term)
	}
	return sum, nil
}

// ShareCoefficients are the per-party weights for a two-level signing
// hierarchy: one local client share plus a server-held share at
// ServerRootIndex that is itself subshared across the participating servers.
type ShareCoefficients struct {
	// Client is the weight applied to the local share.
	Client curve.Scalar
	// Servers maps each participating server's sub-index to its weight.
	Servers map[party.ID]curve.Scalar
}

// DeriveShareCoefficients computes the coefficients such that
//
//	Client·f(clientX) + Σⱼ Servers[j]·g(xⱼ) = f(target)
//
// where g is the degree-(q−1) subsharing of f(ServerRootIndex) across the
// participating servers. No raw share ever has to leave its holder: each
// party applies its own weight locally and only weighted values are
// combined.
func DeriveShareCoefficients(group curve.Curve, serverXs []party.ID, clientX party.ID, target curve.Scalar) (*ShareCoefficients, error) {
	if clientX == 0 || clientX == ServerRootIndex {
		return nil, fmt.Errorf("polynomial: invalid client index %s", clientX)
	}
	topDomain := []party.ID{ServerRootIndex, clientX}
	topCoeffs, err := CoefficientsAt(group, topDomain, target)
	if err != nil {
		return nil, err
	}
	subCoeffs, err := Lagrange(group, serverXs)
	if err != nil {
		return nil, err
	}
	rootWeight := topCoeffs[ServerRootIndex]
	servers := make(map[party.ID]curve.Scalar, len(serverXs))
	for _, j := range serverXs {
		servers[j] = group.NewScalar().Set(subCoeffs[j]).Mul(rootWeight)
	}
	return &ShareCoefficients{
		Client:  topCoeffs[clientX],
		Servers: servers,
	}, nil
}

func checkDomain(xs []party.ID) error {
	seen := make(map[party.ID]struct{}, len(xs))
	for _, x := range xs {
		if x == 0 {
			return errors.New("polynomial: index 0 is the secret itself")
		}
		if _, ok := seen[x]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateIndex, x)
		}
		seen[x] = struct{}{}
	}
	return nil
}

// coefficient computes lⱼ(target) assuming the domain is already validated.
func coefficient(group curve.Curve, xs []party.ID, j party.ID, target curve.Scalar) curve.Scalar {
	xJ := j.Scalar(group)
	num := group.NewScalar().SetUInt32(1)
	den := group.NewScalar().SetUInt32(1)
	tmp := group.NewScalar()
	for _, i := range xs {
		if i == j {
			continue
		}
		xI := i.Scalar(group)
		// num *= xᵢ − T
		tmp.Set(xI).Sub(target)
		num.Mul(tmp)
		// den *= xᵢ − xⱼ
		tmp.Set(xI).Sub(xJ)
		den.Mul(tmp)
	}
	return num.Mul(den.Invert())
}
