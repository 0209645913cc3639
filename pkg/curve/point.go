package curve

import (
	"fmt"
	"math/big"
)

// Point is an affine point on the twisted-Edwards curve
// a*x^2 + y^2 = 1 + d*x^2*y^2 over Fq.
type Point struct {
	x, y Fq
}

// curve parameters: a*x^2 + y^2 = 1 + d*x^2*y^2
var (
	curveA = FqFromUint64(168700)
	curveD = FqFromUint64(168696)
)

var (
	genX = mustFq("5299619240641551281634865583518297030282874472190772894086521144482721001553")
	genY = mustFq("16950150798460657717958625567821834550301663161624707787222815936182638968203")
)

func mustFq(dec string) Fq {
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		panic("curve: bad constant " + dec)
	}
	return FqFromBigInt(v)
}

// Identity returns the neutral element (0, 1) of the twisted-Edwards group law.
func Identity() Point {
	return Point{x: FqZero(), y: FqFromUint64(1)}
}

// Base returns the fixed generator of the prime-order subgroup.
func Base() Point {
	return Point{x: genX, y: genY}
}

// NewPointUnchecked constructs a point from coordinates without validating
// that it lies on the curve or in the subgroup. Used only by decoders that
// perform validation themselves immediately after.
func NewPointUnchecked(x, y Fq) Point { return Point{x: x, y: y} }

func (p Point) X() Fq { return p.x }
func (p Point) Y() Fq { return p.y }

// IsOnCurve reports whether p satisfies the twisted-Edwards equation.
func (p Point) IsOnCurve() bool {
	x2 := p.x.Mul(p.x)
	y2 := p.y.Mul(p.y)
	lhs := curveA.Mul(x2).Add(y2)
	rhs := FqFromUint64(1).Add(curveD.Mul(x2).Mul(y2))
	return lhs.Equal(rhs)
}

// IsIdentity reports whether p is the neutral element.
func (p Point) IsIdentity() bool {
	return p.x.IsZero() && p.y.Equal(FqFromUint64(1))
}

// Equal reports affine coordinate equality.
func (p Point) Equal(q Point) bool {
	return p.x.Equal(q.x) && p.y.Equal(q.y)
}

// Add performs the complete twisted-Edwards addition law (valid for a and d
// as used here, including doubling and the identity).
func (p Point) Add(q Point) Point {
	x1, y1 := p.x, p.y
	x2, y2 := q.x, q.y

	x1y2 := x1.Mul(y2)
	x2y1 := x2.Mul(y1)
	y1y2 := y1.Mul(y2)
	x1x2 := x1.Mul(x2)
	dxy := curveD.Mul(x1x2).Mul(y1y2)

	xNum := x1y2.Add(x2y1)
	xDen := FqFromUint64(1).Add(dxy)
	yNum := y1y2.Sub(curveA.Mul(x1x2))
	yDen := FqFromUint64(1).Sub(dxy)

	return Point{x: xNum.Mul(xDen.Inverse()), y: yNum.Mul(yDen.Inverse())}
}

// Double returns p+p.
func (p Point) Double() Point { return p.Add(p) }

// Neg returns the additive inverse.
func (p Point) Neg() Point { return Point{x: p.x.Neg(), y: p.y} }

// ScalarMul computes scalar*p via double-and-add over the bits of s.
func (p Point) ScalarMul(s Fr) Point {
	return p.scalarMulBigInt(s.BigInt())
}

func (p Point) scalarMulBigInt(n *big.Int) Point {
	result := Identity()
	addend := p
	for i := 0; i < n.BitLen(); i++ {
		if n.Bit(i) == 1 {
			result = result.Add(addend)
		}
		addend = addend.Double()
	}
	return result
}

// IsInSubgroup reports whether p, multiplied by the subgroup order, yields
// the identity. Combined with IsOnCurve this fully validates an untrusted
// point before it is used in any protocol step (§3 invariant: "never the
// identity, always in the prime-order subgroup").
func (p Point) IsInSubgroup() bool {
	return p.scalarMulBigInt(frModulus).IsIdentity()
}

// Validate runs the full well-formedness check required before accepting a
// point from an untrusted source (a wire message, a chain event, etc.).
func (p Point) Validate() error {
	if !p.IsOnCurve() {
		return fmt.Errorf("curve: point not on curve")
	}
	if p.IsIdentity() {
		return fmt.Errorf("curve: point is the identity")
	}
	if !p.IsInSubgroup() {
		return fmt.Errorf("curve: point not in prime-order subgroup")
	}
	return nil
}

// Bytes returns a compressed encoding: the big-endian y-coordinate plus one
// sign bit of x (its parity) packed into the top bit of the first, most
// significant byte.
func (p Point) Bytes() []byte {
	out := p.y.Bytes()
	if isOddFq(p.x) {
		out[0] |= 0x80
	}
	return out
}

// DecodePoint decompresses a point previously encoded with Bytes, validating
// on-curve membership but not subgroup membership (call Validate for that).
func DecodePoint(b []byte) (Point, error) {
	if len(b) != 32 {
		return Point{}, fmt.Errorf("curve: compressed point must be 32 bytes, got %d", len(b))
	}
	sign := b[0]&0x80 != 0
	yb := make([]byte, 32)
	copy(yb, b)
	yb[0] &= 0x7f
	y := FqFromBytes(yb)

	y2 := y.Mul(y)
	num := FqFromUint64(1).Sub(y2)
	// a*x^2 + y^2 = 1 + d*x^2*y^2  =>  x^2 (a - d*y^2) = 1 - y^2
	denom := curveA.Sub(curveD.Mul(y2))
	if denom.IsZero() {
		return Point{}, fmt.Errorf("curve: degenerate decode, zero denominator")
	}
	x2 := num.Mul(denom.Inverse())
	x, ok := x2.Sqrt()
	if !ok {
		return Point{}, fmt.Errorf("curve: not a valid compressed point, non-residue")
	}
	if isOddFq(x) != sign {
		x = x.Neg()
	}
	pt := Point{x: x, y: y}
	if !pt.IsOnCurve() {
		return Point{}, fmt.Errorf("curve: decoded point not on curve")
	}
	return pt, nil
}

func isOddFq(a Fq) bool {
	return a.BigInt().Bit(0) == 1
}
