package curve

import (
	"errors"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var secp256k1Order = saferith.ModulusFromBytes(secp256k1.Params().N.Bytes())

// Secp256k1 is the group used by the ECDSA scheme.
type Secp256k1 struct{}

func (Secp256k1) NewPoint() Point {
	return new(secp256k1Point)
}

func (Secp256k1) NewBasePoint() Point {
	out := new(secp256k1Point)
	one := new(secp256k1.ModNScalar).SetInt(1)
	secp256k1.ScalarBaseMultNonConst(one, &out.value)
	return out
}

func (Secp256k1) NewScalar() Scalar {
	return new(secp256k1Scalar)
}

func (Secp256k1) Name() string {
	return "secp256k1"
}

func (Secp256k1) ScalarBytes() int {
	return 32
}

func (Secp256k1) PointBytes() int {
	return 33
}

func (Secp256k1) Order() *saferith.Modulus {
	return secp256k1Order
}

type secp256k1Scalar struct {
	value secp256k1.ModNScalar
}

func secp256k1CastScalar(generic Scalar) *secp256k1Scalar {
	out, ok := generic.(*secp256k1Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to secp256k1Scalar: %v", generic))
	}
	return out
}

func (s *secp256k1Scalar) Curve() Curve {
	return Secp256k1{}
}

func (s *secp256k1Scalar) MarshalBinary() ([]byte, error) {
	data := s.value.Bytes()
	return data[:], nil
}

func (s *secp256k1Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("invalid length for secp256k1 scalar: %d", len(data))
	}
	var exactData [32]byte
	copy(exactData[:], data)
	if s.value.SetBytes(&exactData) != 0 {
		return errors.New("invalid bytes for secp256k1 scalar")
	}
	return nil
}

func (s *secp256k1Scalar) Add(that Scalar) Scalar {
	other := secp256k1CastScalar(that)

	s.value.Add(&other.value)
	return s
}

func (s *secp256k1Scalar) Sub(that Scalar) Scalar {
	other := secp256k1CastScalar(that)

	negated := new(secp256k1.ModNScalar).Set(&other.value)
	negated.Negate()
	s.value.Add(negated)
	return s
}

func (s *secp256k1Scalar) Mul(that Scalar) Scalar {
	other := secp256k1CastScalar(that)

	s.value.Mul(&other.value)
	return s
}

func (s *secp256k1Scalar) Invert() Scalar {
	s.value.InverseNonConst()
	return s
}

func (s *secp256k1Scalar) Negate() Scalar {
	s.value.Negate()
	return s
}

func (s *secp256k1Scalar) Equal(that Scalar) bool {
	other := secp256k1CastScalar(that)

	return s.value.Equals(&other.value)
}

func (s *secp256k1Scalar) IsZero() bool {
	return s.value.IsZero()
}

func (s *secp256k1Scalar) Set(that Scalar) Scalar {
	other := secp256k1CastScalar(that)

	s.value.Set(&other.value)
	return s
}

func (s *secp256k1Scalar) SetNat(x *saferith.Nat) Scalar {
	reduced := new(saferith.Nat).Mod(x, secp256k1Order)
	if s.value.SetByteSlice(reduced.Bytes()) {
		panic("secp256k1Scalar.SetNat: reduction failed")
	}
	return s
}

func (s *secp256k1Scalar) SetUInt32(x uint32) Scalar {
	s.value.SetInt(x)
	return s
}

func (s *secp256k1Scalar) Act(that Point) Point {
	other := secp256k1CastPoint(that)
	out := new(secp256k1Point)
	secp256k1.ScalarMultNonConst(&s.value, &other.value, &out.value)
	return out
}

func (s *secp256k1Scalar) ActOnBase() Point {
	out := new(secp256k1Point)
	secp256k1.ScalarBaseMultNonConst(&s.value, &out.value)
	return out
}

type secp256k1Point struct {
	value secp256k1.JacobianPoint
}

func secp256k1CastPoint(generic Point) *secp256k1Point {
	out, ok := generic.(*secp256k1Point)
	if !ok {
		panic(fmt.Sprintf("failed to convert to secp256k1Point: %v", generic))
	}
	return out
}

func (p *secp256k1Point) Curve() Curve {
	return Secp256k1{}
}

func (p *secp256k1Point) MarshalBinary() ([]byte, error) {
	out := make([]byte, 33)
	if p.IsIdentity() {
		return out, nil
	}
	// This will modify p, but still return an equivalent value
	p.value.ToAffine()
	// Doing it this way is compatible with Bitcoin
	out[0] = byte(p.value.Y.IsOddBit()) + 2
	data := p.value.X.Bytes()
	copy(out[1:], data[:])
	return out, nil
}

func (p *secp256k1Point) UnmarshalBinary(data []byte) error {
	if len(data) != 33 {
		return fmt.Errorf("invalid length for secp256k1Point: %d", len(data))
	}
	if data[0] == 0 {
		p.value = secp256k1.JacobianPoint{}
		return nil
	}
	p.value.Z.SetInt(1)
	if p.value.X.SetByteSlice(data[1:]) {
		return errors.New("secp256k1Point.UnmarshalBinary: x coordinate out of range")
	}
	if !secp256k1.DecompressY(&p.value.X, data[0] == 3, &p.value.Y) {
		return errors.New("secp256k1Point.UnmarshalBinary: x coordinate not on curve")
	}
	return nil
}

func (p *secp256k1Point) Add(that Point) Point {
	other := secp256k1CastPoint(that)

	out := new(secp256k1Point)
	secp256k1.AddNonConst(&p.value, &other.value, &out.value)
	return out
}

func (p *secp256k1Point) Sub(that Point) Point {
	return p.Add(that.Negate())
}

func (p *secp256k1Point) Negate() Point {
	out := new(secp256k1Point)
	out.value.Set(&p.value)
	out.value.Y.Negate(1)
	out.value.Y.Normalize()
	return out
}

func (p *secp256k1Point) Equal(that Point) bool {
	other := secp256k1CastPoint(that)

	p.value.ToAffine()
	other.value.ToAffine()
	return p.value.X.Equals(&other.value.X) &&
		p.value.Y.Equals(&other.value.Y) &&
		p.value.Z.Equals(&other.value.Z)
}

func (p *secp256k1Point) IsIdentity() bool {
	return (p.value.X.IsZero() && p.value.Y.IsZero()) || p.value.Z.IsZero()
}

func (p *secp256k1Point) XScalar() Scalar {
	out := new(secp256k1Scalar)
	p.value.ToAffine()
	data := p.value.X.Bytes()
	var exact [32]byte
	copy(exact[:], data[:])
	out.value.SetBytes(&exact)
	return out
}

func (p *secp256k1Point) HasEvenY() bool {
	p.value.ToAffine()
	return p.value.Y.IsOddBit() == 0
}
