// Package keygen implements the per-node building blocks of distributed key
// generation and resharing: polynomial sampling and commitment, Diffie-
// Hellman share encryption, and share/public-key accumulation.
package keygen

import (
	"errors"
	"fmt"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/lagrange"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
)

// ErrCommitmentMismatch is returned when a decrypted share does not match
// its published commitment.
var ErrCommitmentMismatch = errors.New("keygen: decrypted share does not match commitment")

// Poly is one node's ephemeral secret-sharing polynomial: toxic waste that
// must be dropped as soon as every recipient's share has been computed and
// the polynomial's commitments published.
type Poly struct {
	coeffs []curve.Fr
}

// NewPoly samples a fresh random polynomial of the given degree. For a
// plain key generation the constant term is a fresh random scalar; for a
// reshare, pass the node's existing share as the constant term instead via
// NewPolyWithConstant.
func NewPoly(degree int) (*Poly, error) {
	secret, err := curve.RandomFr()
	if err != nil {
		return nil, err
	}
	return NewPolyWithConstant(degree, secret)
}

// NewPolyWithConstant samples a fresh random polynomial of the given
// degree with a caller-chosen constant term (used for resharing, where the
// constant term is the node's existing share rather than fresh randomness).
func NewPolyWithConstant(degree int, constant curve.Fr) (*Poly, error) {
	coeffs := make([]curve.Fr, degree+1)
	coeffs[0] = constant
	for i := 1; i <= degree; i++ {
		c, err := curve.RandomFr()
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	return &Poly{coeffs: coeffs}, nil
}

// Degree returns the polynomial's degree (threshold - 1).
func (p *Poly) Degree() int { return len(p.coeffs) - 1 }

// Evaluate computes the polynomial at the given x.
func (p *Poly) Evaluate(x curve.Fr) curve.Fr {
	acc := curve.FrZero()
	xPow := curve.FrOne()
	for _, c := range p.coeffs {
		acc = acc.Add(c.Mul(xPow))
		xPow = xPow.Mul(x)
	}
	return acc
}

// ShareFor evaluates the polynomial at the Shamir point assigned to id.
func (p *Poly) ShareFor(id party.ID) curve.Fr {
	return p.Evaluate(curve.FrFromUint64(id.EvalPoint()))
}

// CommitShare returns G * constant-term, the node's public-key share.
func (p *Poly) CommitShare() curve.Point {
	return curve.Base().ScalarMul(p.coeffs[0])
}

// CommitCoeffs absorbs the non-constant coefficients into the width-4
// sponge under a fixed domain separator in the capacity slot, producing a
// single field-element commitment to every coefficient but the constant
// term (which is separately committed to via CommitShare).
func (p *Poly) CommitCoeffs() curve.Fq {
	state := [4]curve.Fq{curve.CoeffDomainSeparator(), curve.FqZero(), curve.FqZero(), curve.FqZero()}
	rest := p.coeffs[1:]
	for i := 0; i < len(rest); i += 3 {
		chunk := rest[i:min(i+3, len(rest))]
		for j, c := range chunk {
			state[1+j] = curve.FqFromBigIntDecimal(c.BigInt().String())
		}
		for j := len(chunk); j < 3; j++ {
			state[1+j] = curve.FqZero()
		}
		state = curve.PermuteT4(state)
	}
	return state[1]
}

// Zeroize drops the polynomial's coefficients. Safe to call more than once.
func (p *Poly) Zeroize() {
	for i := range p.coeffs {
		p.coeffs[i] = curve.FrZero()
	}
}

// EphemeralPrivateKey is a one-time Diffie-Hellman key used to encrypt
// Shamir shares to their recipients during key generation.
type EphemeralPrivateKey struct {
	sk curve.Fr
}

// GenerateEphemeralKey samples a fresh ephemeral DH private key.
func GenerateEphemeralKey() (EphemeralPrivateKey, error) {
	sk, err := curve.RandomFr()
	if err != nil {
		return EphemeralPrivateKey{}, err
	}
	return EphemeralPrivateKey{sk: sk}, nil
}

// PublicKey returns G * sk.
func (k EphemeralPrivateKey) PublicKey() curve.Point {
	return curve.Base().ScalarMul(k.sk)
}

// Scalar exposes the raw private scalar, needed by the encryption-proof
// prover to demonstrate possession of the key behind PublicKey. Callers
// outside that narrow use should prefer PublicKey and the Encrypt/Decrypt
// helpers, which never need the scalar directly.
func (k EphemeralPrivateKey) Scalar() curve.Fr { return k.sk }

// Zeroize drops the private scalar.
func (k *EphemeralPrivateKey) Zeroize() { k.sk = curve.FrZero() }

func dhSharedSecret(sk EphemeralPrivateKey, theirPK curve.Point) curve.Fq {
	return theirPK.ScalarMul(sk.sk).X()
}

// t1DomainSeparator is the capacity-slot constant for the width-3 share
// encryption sponge.
var t1DomainSeparator = curve.T1DomainSeparator()

func keystream(symKey curve.Fq, nonce curve.Fq) curve.Fq {
	state := [3]curve.Fq{t1DomainSeparator, symKey, nonce}
	out := curve.PermuteT3(state)
	return out[1]
}

// Cipher is one encrypted Shamir share, together with the nonce used and
// the per-recipient commitment (share * G) the recipient checks the
// decrypted share against. This is not the sender's round-1 constant-term
// commitment — it is the commitment to this specific recipient's polynomial
// evaluation, which differs from the constant term for any threshold >= 2.
type Cipher struct {
	Nonce      curve.Fq
	Ciphertext curve.Fq
	Commitment curve.Point
}

// EncryptShare encrypts share to the recipient identified by theirPK, using
// a DH-derived symmetric key and the given nonce (nonces must never repeat
// for the same (sk, theirPK) pair).
func EncryptShare(sk EphemeralPrivateKey, theirPK curve.Point, share curve.Fr, nonce curve.Fq) Cipher {
	symKey := dhSharedSecret(sk, theirPK)
	ks := keystream(symKey, nonce)
	shareAsField := curve.FqFromBigIntDecimal(share.BigInt().String())
	return Cipher{
		Nonce:      nonce,
		Ciphertext: ks.Add(shareAsField),
		Commitment: curve.Base().ScalarMul(share),
	}
}

// DecryptShare reverses EncryptShare, given the recipient's own private key
// and the sender's public key.
func DecryptShare(sk EphemeralPrivateKey, senderPK curve.Point, cipher Cipher) curve.Fr {
	symKey := dhSharedSecret(sk, senderPK)
	ks := keystream(symKey, cipher.Nonce)
	shareField := cipher.Ciphertext.Sub(ks)
	return curve.FrFromBytes(shareField.Bytes())
}

// VerifyShareCommitment checks that G*share equals the published
// commitment for that party's polynomial.
func VerifyShareCommitment(share curve.Fr, commitment curve.Point) error {
	if !curve.Base().ScalarMul(share).Equal(commitment) {
		return ErrCommitmentMismatch
	}
	return nil
}

// Contributions describes how accumulated shares should be weighted: Full
// is a plain sum (plain key generation, every producer contributes equally
// to the new polynomial's constant term); Shamir carries the
// reshare-specific Lagrange coefficient used to reconstruct the old secret
// from a threshold subset of old shares.
type Contributions struct {
	Lagrange map[party.ID]curve.Fr // nil for a plain sum
}

// FullContributions requests a plain (unweighted) sum, used for fresh key
// generation.
func FullContributions() Contributions { return Contributions{} }

// ShamirContributions requests Lagrange-weighted accumulation over the
// given set of producing parties, used for resharing.
func ShamirContributions(producers party.Set) Contributions {
	return Contributions{Lagrange: lagrange.FromParties(producers)}
}

// AccumulateShares sums decrypted shares from every producer, weighting
// each by its Lagrange coefficient if c carries one.
func AccumulateShares(shares map[party.ID]curve.Fr, c Contributions) curve.Fr {
	acc := curve.FrZero()
	for id, s := range shares {
		if c.Lagrange != nil {
			s = s.Mul(c.Lagrange[id])
		}
		acc = acc.Add(s)
	}
	return acc
}

// AccumulatePublicShares sums per-producer public-key-share commitments the
// same way AccumulateShares sums the secret shares, yielding the new
// aggregate public key.
func AccumulatePublicShares(commitments map[party.ID]curve.Point, c Contributions) curve.Point {
	acc := curve.Identity()
	for id, p := range commitments {
		if c.Lagrange != nil {
			p = p.ScalarMul(c.Lagrange[id])
		}
		acc = acc.Add(p)
	}
	return acc
}

// ValidateDegree checks that a claimed polynomial degree matches the
// threshold the caller expects (threshold - 1), returning a descriptive
// error otherwise.
func ValidateDegree(degree, threshold int) error {
	if degree != threshold-1 {
		return fmt.Errorf("keygen: polynomial degree %d does not match threshold %d (want degree %d)", degree, threshold, threshold-1)
	}
	return nil
}
