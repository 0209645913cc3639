package secretgen

import (
	"errors"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dlogeq"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
)

// ErrInvalidEncryptionProof is returned when a round-2 producer's proof of
// correct encryption fails to verify.
var ErrInvalidEncryptionProof = errors.New("secretgen: invalid proof of correct encryption")

// EncryptionProof is a producer's round-2 proof object. With the reference
// prover it attests only knowledge of the ephemeral private key behind the
// producer's published ephemeral public key; it does not prove that the
// ciphertexts or commitments were derived from that key or from one
// polynomial. See EncryptionProver for why this is a reference stand-in
// rather than a SNARK.
type EncryptionProof struct {
	PKProof dlogeq.Proof // proves knowledge of the ephemeral sk behind EphemeralPubKey
}

// EncryptionProver produces a zero-knowledge proof that a round-2
// contribution's ciphertexts were correctly derived.
//
// The original design verifies this with a Groth16/circom SNARK circuit
// over the full encryption relation (every ciphertext, every commitment,
// and the coefficient-commitment sponge, all in one proof). Compiling and
// vendoring a SNARK circuit is outside what this module can responsibly do
// without a build toolchain, so this interface abstracts the check instead;
// the reference implementation below proves knowledge of the ephemeral
// private key behind the published public key via a Chaum-Pedersen proof,
// which is the one part of the relation that can be checked without a
// circuit while still giving every caller a concrete, wired proof object to
// produce and verify.
type EncryptionProver interface {
	Prove(sk keygen.EphemeralPrivateKey) (EncryptionProof, error)
}

// EncryptionVerifier checks an EncryptionProof against a published
// ephemeral public key.
type EncryptionVerifier interface {
	Verify(pubKey curve.Point, proof EncryptionProof) error
}

// ReferenceProver is the default EncryptionProver: a Chaum-Pedersen proof
// of knowledge of the ephemeral private key.
type ReferenceProver struct{}

func (ReferenceProver) Prove(sk keygen.EphemeralPrivateKey) (EncryptionProof, error) {
	pub := sk.PublicKey()
	proof, err := dlogeq.Prove(sk.Scalar(), pub, curve.Base(), pub)
	if err != nil {
		return EncryptionProof{}, err
	}
	return EncryptionProof{PKProof: proof}, nil
}

// ReferenceVerifier is the default EncryptionVerifier, pairing with
// ReferenceProver.
type ReferenceVerifier struct{}

func (ReferenceVerifier) Verify(pubKey curve.Point, proof EncryptionProof) error {
	if err := dlogeq.Verify(pubKey, curve.Base(), pubKey, proof.PKProof); err != nil {
		return ErrInvalidEncryptionProof
	}
	return nil
}
