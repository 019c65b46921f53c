package curve

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/cronokirby/saferith"
)

// ed25519OrderBytes is the big-endian encoding of the prime order of the
// Ed25519 group, l = 2^252 + 27742317777372353535851937790883648493.
var ed25519OrderBytes = []byte{
	0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x14, 0xde, 0xf9, 0xde, 0xa2, 0xf7, 0x9c, 0xd6,
	0x58, 0x12, 0x63, 0x1a, 0x5c, 0xf5, 0xd3, 0xed,
}

var ed25519Order = saferith.ModulusFromBytes(ed25519OrderBytes)

// Ed25519 is the group used by the EdDSA scheme.
type Ed25519 struct{}

func (Ed25519) NewPoint() Point {
	return &ed25519Point{value: edwards25519.NewIdentityPoint()}
}

func (Ed25519) NewBasePoint() Point {
	return &ed25519Point{value: edwards25519.NewGeneratorPoint()}
}

func (Ed25519) NewScalar() Scalar {
	return &ed25519Scalar{value: edwards25519.NewScalar()}
}

func (Ed25519) Name() string {
	return "ed25519"
}

func (Ed25519) ScalarBytes() int {
	return 32
}

func (Ed25519) PointBytes() int {
	return 32
}

func (Ed25519) Order() *saferith.Modulus {
	return ed25519Order
}

type ed25519Scalar struct {
	value *edwards25519.Scalar
}

func ed25519CastScalar(generic Scalar) *ed25519Scalar {
	out, ok := generic.(*ed25519Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to ed25519Scalar: %v", generic))
	}
	return out
}

func (s *ed25519Scalar) ensure() {
	if s.value == nil {
		s.value = edwards25519.NewScalar()
	}
}

func (s *ed25519Scalar) Curve() Curve {
	return Ed25519{}
}

// MarshalBinary returns the canonical 32-byte little-endian encoding.
func (s *ed25519Scalar) MarshalBinary() ([]byte, error) {
	s.ensure()
	return s.value.Bytes(), nil
}

func (s *ed25519Scalar) UnmarshalBinary(data []byte) error {
	s.ensure()
	if len(data) != 32 {
		return fmt.Errorf("invalid length for ed25519 scalar: %d", len(data))
	}
	if _, err := s.value.SetCanonicalBytes(data); err != nil {
		return errors.New("invalid bytes for ed25519 scalar")
	}
	return nil
}

func (s *ed25519Scalar) Add(that Scalar) Scalar {
	other := ed25519CastScalar(that)
	s.value.Add(s.value, other.value)
	return s
}

func (s *ed25519Scalar) Sub(that Scalar) Scalar {
	other := ed25519CastScalar(that)
	s.value.Subtract(s.value, other.value)
	return s
}

func (s *ed25519Scalar) Mul(that Scalar) Scalar {
	other := ed25519CastScalar(that)
	s.value.Multiply(s.value, other.value)
	return s
}

func (s *ed25519Scalar) Invert() Scalar {
	s.value.Invert(s.value)
	return s
}

func (s *ed25519Scalar) Negate() Scalar {
	s.value.Negate(s.value)
	return s
}

func (s *ed25519Scalar) Equal(that Scalar) bool {
	other := ed25519CastScalar(that)
	return s.value.Equal(other.value) == 1
}

func (s *ed25519Scalar) IsZero() bool {
	return s.value.Equal(edwards25519.NewScalar()) == 1
}

func (s *ed25519Scalar) Set(that Scalar) Scalar {
	other := ed25519CastScalar(that)
	s.ensure()
	s.value.Set(other.value)
	return s
}

func (s *ed25519Scalar) SetNat(x *saferith.Nat) Scalar {
	s.ensure()
	reduced := new(saferith.Nat).Mod(x, ed25519Order)
	be := reduced.Bytes()
	le := make([]byte, 32)
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	if _, err := s.value.SetCanonicalBytes(le); err != nil {
		panic("ed25519Scalar.SetNat: reduction failed")
	}
	return s
}

func (s *ed25519Scalar) SetUInt32(x uint32) Scalar {
	return s.SetNat(new(saferith.Nat).SetUint64(uint64(x)))
}

func (s *ed25519Scalar) Act(that Point) Point {
	other := ed25519CastPoint(that)
	out := edwards25519.NewIdentityPoint()
	out.ScalarMult(s.value, other.value)
	return &ed25519Point{value: out}
}

func (s *ed25519Scalar) ActOnBase() Point {
	out := edwards25519.NewIdentityPoint()
	out.ScalarBaseMult(s.value)
	return &ed25519Point{value: out}
}

type ed25519Point struct {
	value *edwards25519.Point
}

func ed25519CastPoint(generic Point) *ed25519Point {
	out, ok := generic.(*ed25519Point)
	if !ok {
		panic(fmt.Sprintf("failed to convert to ed25519Point: %v", generic))
	}
	return out
}

func (p *ed25519Point) ensure() {
	if p.value == nil {
		p.value = edwards25519.NewIdentityPoint()
	}
}

func (p *ed25519Point) Curve() Curve {
	return Ed25519{}
}

func (p *ed25519Point) MarshalBinary() ([]byte, error) {
	p.ensure()
	return p.value.Bytes(), nil
}

func (p *ed25519Point) UnmarshalBinary(data []byte) error {
	p.ensure()
	if len(data) != 32 {
		return fmt.Errorf("invalid length for ed25519Point: %d", len(data))
	}
	if _, err := p.value.SetBytes(data); err != nil {
		return errors.New("ed25519Point.UnmarshalBinary: not a valid point encoding")
	}
	return nil
}

func (p *ed25519Point) Add(that Point) Point {
	other := ed25519CastPoint(that)
	out := edwards25519.NewIdentityPoint()
	out.Add(p.value, other.value)
	return &ed25519Point{value: out}
}

func (p *ed25519Point) Sub(that Point) Point {
	other := ed25519CastPoint(that)
	out := edwards25519.NewIdentityPoint()
	out.Subtract(p.value, other.value)
	return &ed25519Point{value: out}
}

func (p *ed25519Point) Negate() Point {
	out := edwards25519.NewIdentityPoint()
	out.Negate(p.value)
	return &ed25519Point{value: out}
}

func (p *ed25519Point) Equal(that Point) bool {
	other := ed25519CastPoint(that)
	return p.value.Equal(other.value) == 1
}

func (p *ed25519Point) IsIdentity() bool {
	return p.value.Equal(edwards25519.NewIdentityPoint()) == 1
}

// XScalar is not supported for twisted Edwards curves.
func (p *ed25519Point) XScalar() Scalar {
	return nil
}

func (p *ed25519Point) HasEvenY() bool {
	return false
}
