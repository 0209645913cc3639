package secretgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dlogeq"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/secretgen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
)

// runKeyGen drives all n parties (each acting as both a producer and a
// consumer, as in a full-participation key generation) through one
// complete DLogSecretGen round and returns each party's finished
// key material.
func runKeyGen(t *testing.T, n, threshold int, keyID chain.OprfKeyID) map[party.ID]store.KeyMaterial {
	t.Helper()
	engines := make(map[party.ID]*secretgen.Engine, n)
	ids := make(party.Set, n)
	for i := 0; i < n; i++ {
		ids[i] = party.ID(i)
		engines[party.ID(i)] = secretgen.New(nil)
	}

	round1 := make(map[party.ID]chain.Round1Contribution, n)
	for _, id := range ids {
		c, err := engines[id].KeyGenRound1(keyID, threshold, id)
		require.NoError(t, err)
		round1[id] = c
	}

	pks := make(map[party.ID]curve.Point, n)
	for id, c := range round1 {
		pks[id] = c.EphemeralPubKey
	}
	shareCommits := make(map[party.ID]curve.Point, n)
	for id, c := range round1 {
		shareCommits[id] = c.ShareCommit
	}

	round2 := make(map[party.ID]chain.Round2Contribution, n)
	for _, id := range ids {
		recipients := make(map[party.ID]curve.Point, n)
		for _, other := range ids {
			recipients[other] = pks[other]
		}
		nonceCounter := uint64(0)
		c, err := engines[id].ProducerRound2(keyID, id, recipients, func(party.ID) curve.Fq {
			nonceCounter++
			return curve.FqFromUint64(nonceCounter)
		})
		require.NoError(t, err)
		round2[id] = c
	}

	proofs := make(map[party.ID]dlogeq.Proof, n)
	for producer, c := range round2 {
		proofs[producer] = c.Proof
	}

	result := make(map[party.ID]store.KeyMaterial, n)
	for _, recipient := range ids {
		ciphers := make(map[party.ID]keygen.Cipher, n)
		for producer, c := range round2 {
			ciphers[producer] = c.Ciphers[recipient]
		}
		_, err := engines[recipient].Round3(keyID, recipient, ciphers, pks, proofs, keygen.FullContributions())
		require.NoError(t, err)

		publicKey := curve.Identity()
		for _, commit := range shareCommits {
			publicKey = publicKey.Add(commit)
		}
		km, err := engines[recipient].Finalize(keyID, 0, publicKey)
		require.NoError(t, err)
		result[recipient] = km
	}
	return result
}

func TestKeyGenEndToEnd(t *testing.T) {
	shares := runKeyGen(t, 4, 3, chain.OprfKeyID(1))

	// Any 3-of-4 subset reconstructs the same public key via Lagrange
	// interpolation of the shares.
	subset := party.Set{0, 1, 2}
	recombined := keygen.AccumulateShares(map[party.ID]curve.Fr{
		0: shares[0].Share,
		1: shares[1].Share,
		2: shares[2].Share,
	}, keygen.ShamirContributions(subset))

	pk := shares[0].PublicKey
	assert.True(t, curve.Base().ScalarMul(recombined).Equal(pk))
}

func TestDeleteKeyMaterialIsIdempotent(t *testing.T) {
	e := secretgen.New(nil)
	e.DeleteKeyMaterial(chain.OprfKeyID(99))
	e.DeleteKeyMaterial(chain.OprfKeyID(99))
}

func TestRound2BeforeRound1Errors(t *testing.T) {
	e := secretgen.New(nil)
	_, err := e.ProducerRound2(chain.OprfKeyID(1), party.ID(0), nil, func(party.ID) curve.Fq { return curve.FqZero() })
	assert.ErrorIs(t, err, secretgen.ErrNoToxicWaste)
}

// TestRound3RejectsTamperedCommitment exercises the commitment actually
// fixed: a commitment equal to the producer's round-1 constant-term
// ShareCommit (rather than this recipient's real evaluated-share
// commitment) must be rejected by Round3 for any threshold >= 2.
func TestRound3RejectsTamperedCommitment(t *testing.T) {
	const threshold = 2
	keyID := chain.OprfKeyID(5)
	producer, recipient := party.ID(0), party.ID(1)

	eProducer := secretgen.New(nil)
	eRecipient := secretgen.New(nil)

	r1Producer, err := eProducer.KeyGenRound1(keyID, threshold, producer)
	require.NoError(t, err)
	r1Recipient, err := eRecipient.KeyGenRound1(keyID, threshold, recipient)
	require.NoError(t, err)

	recipients := map[party.ID]curve.Point{
		producer:  r1Producer.EphemeralPubKey,
		recipient: r1Recipient.EphemeralPubKey,
	}
	round2, err := eProducer.ProducerRound2(keyID, producer, recipients, func(party.ID) curve.Fq { return curve.FqFromUint64(1) })
	require.NoError(t, err)

	// The recipient publishes no round-2 contribution here; move its
	// round-1 ephemeral key into round 2 so Round3 can decrypt.
	eRecipient.ConsumerRound2(keyID)

	cipher := round2.Ciphers[recipient]
	cipher.Commitment = r1Producer.ShareCommit // the bug under test: round-1 constant-term commitment, not this recipient's share commitment
	ciphers := map[party.ID]keygen.Cipher{producer: cipher}
	senderPKs := map[party.ID]curve.Point{producer: r1Producer.EphemeralPubKey}
	proofs := map[party.ID]dlogeq.Proof{producer: round2.Proof}

	_, err = eRecipient.Round3(keyID, recipient, ciphers, senderPKs, proofs, keygen.FullContributions())
	assert.ErrorIs(t, err, keygen.ErrCommitmentMismatch)
}

// TestRound3RejectsInvalidEncryptionProof confirms a producer's round-2
// contribution is rejected if its proof of correct encryption does not
// verify against its published ephemeral public key.
func TestRound3RejectsInvalidEncryptionProof(t *testing.T) {
	const threshold = 2
	keyID := chain.OprfKeyID(6)
	producer, recipient := party.ID(0), party.ID(1)

	eProducer := secretgen.New(nil)
	eRecipient := secretgen.New(nil)

	r1Producer, err := eProducer.KeyGenRound1(keyID, threshold, producer)
	require.NoError(t, err)
	r1Recipient, err := eRecipient.KeyGenRound1(keyID, threshold, recipient)
	require.NoError(t, err)

	recipients := map[party.ID]curve.Point{
		producer:  r1Producer.EphemeralPubKey,
		recipient: r1Recipient.EphemeralPubKey,
	}
	round2, err := eProducer.ProducerRound2(keyID, producer, recipients, func(party.ID) curve.Fq { return curve.FqFromUint64(1) })
	require.NoError(t, err)

	// The recipient publishes no round-2 contribution here; move its
	// round-1 ephemeral key into round 2 so Round3 can decrypt.
	eRecipient.ConsumerRound2(keyID)

	ciphers := map[party.ID]keygen.Cipher{producer: round2.Ciphers[recipient]}
	senderPKs := map[party.ID]curve.Point{producer: r1Producer.EphemeralPubKey}
	tamperedProof := round2.Proof
	tamperedProof.S = tamperedProof.S.Add(curve.FrOne())
	proofs := map[party.ID]dlogeq.Proof{producer: tamperedProof}

	_, err = eRecipient.Round3(keyID, recipient, ciphers, senderPKs, proofs, keygen.FullContributions())
	assert.ErrorIs(t, err, secretgen.ErrInvalidEncryptionProof)
}
