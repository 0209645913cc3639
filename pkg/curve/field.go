// Package curve implements the twisted-Edwards curve and associated prime
// fields used by the threshold OPRF protocol.
//
// The curve family follows BabyJubJub: a twisted-Edwards curve defined over
// the scalar field of BN254 (our base field Fq), with a prime-order subgroup
// of order Fr strictly smaller than Fq. All arithmetic is monomorphic over
// this single curve instantiation; there is no dynamic dispatch in the hot
// evaluation path.
package curve

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
)

// fqModulus is the base field modulus of BabyJubJub (equal to the BN254
// scalar field order).
var fqModulus, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// frModulus is the order of the prime-order subgroup generated by Base.
var frModulus, _ = new(big.Int).SetString("2736030358979909402780800718157159386076813972158567259200215660948447373041", 10)

// FqBitLen is the bit length of the base field modulus.
const FqBitLen = 254

// Fq is an element of the curve's base field.
type Fq struct{ v *big.Int }

// Fr is an element of the curve's prime-order scalar field.
type Fr struct{ v *big.Int }

func newFq(v *big.Int) Fq {
	return Fq{v: new(big.Int).Mod(v, fqModulus)}
}

func newFr(v *big.Int) Fr {
	return Fr{v: new(big.Int).Mod(v, frModulus)}
}

// FqZero returns the additive identity of Fq.
func FqZero() Fq { return Fq{v: big.NewInt(0)} }

// FqFromUint64 embeds a uint64 into Fq.
func FqFromUint64(x uint64) Fq { return newFq(new(big.Int).SetUint64(x)) }

// FqFromBytes interprets big-endian bytes as an Fq element, reducing modulo
// the field order.
func FqFromBytes(b []byte) Fq { return newFq(new(big.Int).SetBytes(b)) }

// FqFromBigInt reduces an arbitrary *big.Int into Fq.
func FqFromBigInt(v *big.Int) Fq { return newFq(v) }

// FrFromBytes interprets big-endian bytes as an Fr element, reducing modulo
// the subgroup order. Used for the wide (64-byte) reduction of the FROST2
// nonce combiner and any other place a scalar must be derived from a hash.
func FrFromBytes(b []byte) Fr { return newFr(new(big.Int).SetBytes(b)) }

// FrFromUint64 embeds a uint64 into Fr.
func FrFromUint64(x uint64) Fr { return newFr(new(big.Int).SetUint64(x)) }

// FrZero returns the additive identity of Fr.
func FrZero() Fr { return Fr{v: big.NewInt(0)} }

// FrOne returns the multiplicative identity of Fr.
func FrOne() Fr { return Fr{v: big.NewInt(1)} }

// RandomFr samples a uniformly random, non-zero scalar from Fr.
func RandomFr() (Fr, error) {
	for {
		n, err := rand.Int(rand.Reader, frModulus)
		if err != nil {
			return Fr{}, fmt.Errorf("curve: sample Fr: %w", err)
		}
		if n.Sign() != 0 {
			return Fr{v: n}, nil
		}
	}
}

// RandomFq samples a uniformly random element of Fq (may be zero).
func RandomFq() (Fq, error) {
	n, err := rand.Int(rand.Reader, fqModulus)
	if err != nil {
		return Fq{}, fmt.Errorf("curve: sample Fq: %w", err)
	}
	return Fq{v: n}, nil
}

// OprfKeyIDBound returns the exclusive upper bound 2^160 used to validate
// that an OprfKeyId embeds injectively into Fq (Fq is far larger than this
// bound for this curve family).
func OprfKeyIDBound() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 160)
}

func (a Fq) Add(b Fq) Fq { return newFq(new(big.Int).Add(a.v, b.v)) }
func (a Fq) Sub(b Fq) Fq { return newFq(new(big.Int).Sub(a.v, b.v)) }
func (a Fq) Mul(b Fq) Fq { return newFq(new(big.Int).Mul(a.v, b.v)) }
func (a Fq) Neg() Fq     { return newFq(new(big.Int).Neg(a.v)) }
func (a Fq) IsZero() bool { return a.v.Sign() == 0 }
func (a Fq) Equal(b Fq) bool { return a.v.Cmp(b.v) == 0 }

// Sqrt returns the (unspecified) square root of a modulo the field order, or
// false if a is not a quadratic residue.
func (a Fq) Sqrt() (Fq, bool) {
	r := new(big.Int).ModSqrt(a.v, fqModulus)
	if r == nil {
		return Fq{}, false
	}
	return Fq{v: r}, true
}

// Inverse returns the multiplicative inverse. Panics on zero; callers must
// check IsZero first where zero is a legal (if degenerate) input.
func (a Fq) Inverse() Fq {
	if a.IsZero() {
		panic("curve: inverse of zero Fq element")
	}
	return Fq{v: new(big.Int).ModInverse(a.v, fqModulus)}
}

// Bytes returns the canonical big-endian, fixed-length (32-byte) encoding.
func (a Fq) Bytes() []byte {
	out := make([]byte, 32)
	a.v.FillBytes(out)
	return out
}

// BigInt exposes the underlying integer. Used at serialization boundaries
// only; arithmetic should stay within the Fq/Fr API.
func (a Fq) BigInt() *big.Int { return new(big.Int).Set(a.v) }

// Cmp provides a total order over Fq, used by OprfKeyId (§3).
func (a Fq) Cmp(b Fq) int { return a.v.Cmp(b.v) }

func (a Fr) Add(b Fr) Fr { return newFr(new(big.Int).Add(a.v, b.v)) }
func (a Fr) Sub(b Fr) Fr { return newFr(new(big.Int).Sub(a.v, b.v)) }
func (a Fr) Mul(b Fr) Fr { return newFr(new(big.Int).Mul(a.v, b.v)) }
func (a Fr) Neg() Fr     { return newFr(new(big.Int).Neg(a.v)) }
func (a Fr) IsZero() bool { return a.v.Sign() == 0 }
func (a Fr) Equal(b Fr) bool { return a.v.Cmp(b.v) == 0 }

// Inverse returns the multiplicative inverse of a non-zero scalar. Returns
// false if a is zero: this is the one place the spec requires an explicit,
// non-panicking failure (BlindingFactor.Prepare, §3).
func (a Fr) Inverse() (Fr, bool) {
	if a.IsZero() {
		return Fr{}, false
	}
	return Fr{v: new(big.Int).ModInverse(a.v, frModulus)}, true
}

// Bytes returns the canonical big-endian, fixed-length (32-byte) encoding.
func (a Fr) Bytes() []byte {
	out := make([]byte, 32)
	a.v.FillBytes(out)
	return out
}

func (a Fr) BigInt() *big.Int { return new(big.Int).Set(a.v) }

// AsNat exposes the scalar as a saferith.Nat, matching the convention used
// elsewhere in the threshold-protocol family for constant-time-friendly
// integer handling at API boundaries. No package in this module calls it;
// Lagrange coefficients are computed on Fr directly.
func (a Fr) AsNat() *saferith.Nat {
	return new(saferith.Nat).SetBig(a.v, a.v.BitLen())
}

// ConvertBaseToScalar reduces a base-field element modulo the (smaller)
// scalar-field order. This is the "e'" reduction of §4.2/§7: Fr divides
// close enough into Fq for this curve family that the reduction introduces
// no practical bias, but implementations must perform it explicitly rather
// than rely on an implicit truncation inside scalar multiplication.
func ConvertBaseToScalar(e Fq) Fr {
	return newFr(new(big.Int).Set(e.v))
}
