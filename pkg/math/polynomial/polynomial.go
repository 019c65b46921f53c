// Package polynomial implements Shamir-style secret sharing polynomials
// and Lagrange interpolation over the supported groups.
package polynomial

import (
	"io"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/curve"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/math/sample"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
)

// Polynomial represents f(X) = a₀ + a₁⋅X + … + aₜ⋅Xᵗ.
type Polynomial struct {
	group        curve.Curve
	coefficients []curve.Scalar
}

// NewPolynomial generates a Polynomial f(X) = constant + a₁⋅X + … + aₜ⋅Xᵗ,
// with random coefficients in ℤₚ and the given degree.
// A nil constant is interpreted as 0.
func NewPolynomial(group curve.Curve, degree int, constant curve.Scalar, rand io.Reader) *Polynomial {
	p := &Polynomial{
		group:        group,
		coefficients: make([]curve.Scalar, degree+1),
	}
	if constant == nil {
		constant = group.NewScalar()
	}
	p.coefficients[0] = group.NewScalar().Set(constant)
	for i := 1; i <= degree; i++ {
		p.coefficients[i] = sample.Scalar(rand, group)
	}
	return p
}

// Evaluate evaluates the polynomial at index using Horner's method.
func (p *Polynomial) Evaluate(index curve.Scalar) curve.Scalar {
	if index.IsZero() {
		panic("polynomial: attempt to leak secret")
	}
	result := p.group.NewScalar()
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// bₙ₋₁ = bₙ * x + aₙ₋₁
		result.Mul(index).Add(p.coefficients[i])
	}
	return result
}

// EvaluateAt evaluates the polynomial at the share index id.
func (p *Polynomial) EvaluateAt(id party.ID) curve.Scalar {
	return p.Evaluate(id.Scalar(p.group))
}

// Constant returns a copy of the constant coefficient (the shared secret).
func (p *Polynomial) Constant() curve.Scalar {
	return p.group.NewScalar().Set(p.coefficients[0])
}

// Degree is the highest power of the Polynomial.
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Commitments returns the exponent form of the polynomial, [a₀⋅G, …, aₜ⋅G].
// The commitments let share holders verify their shares without learning
// any coefficient.
func (p *Polynomial) Commitments() []curve.Point {
	out := make([]curve.Point, len(p.coefficients))
	for i, c := range p.coefficients {
		out[i] = c.ActOnBase()
	}
	return out
}

// EvalCommitments evaluates an exponent polynomial at x, returning the
// public point corresponding to the share f(x).
func EvalCommitments(group curve.Curve, commitments []curve.Point, x curve.Scalar) curve.Point {
	result := group.NewPoint()
	for i := len(commitments) - 1; i >= 0; i-- {
		result = group.NewScalar().Set(x).Act(result).Add(commitments[i])
	}
	return result
}
