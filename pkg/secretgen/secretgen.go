// Package secretgen implements the per-node engine driving DLogSecretGen:
// the three-round, ledger-orchestrated distributed key generation and
// resharing protocol. One Engine instance is owned by exactly one node and
// is not safe for concurrent use by multiple goroutines acting on the same
// key id at once; callers serialize access per key id (the watcher does
// this naturally, since it processes ledger events one at a time).
package secretgen

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dlogeq"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
)

var (
	// ErrNoToxicWaste is returned when a round is driven before its
	// prerequisite toxic waste exists (e.g. round 2 before round 1).
	ErrNoToxicWaste = errors.New("secretgen: no toxic waste for this key id and round")
	// ErrAlreadyHasToxicWaste is returned when round 1 is driven twice for
	// the same key id without an intervening delete.
	ErrAlreadyHasToxicWaste = errors.New("secretgen: toxic waste already exists for this key id")
	// ErrNoFinishedShare is returned when Finalize is called before Round3
	// has produced a share.
	ErrNoFinishedShare = errors.New("secretgen: no finished share for this key id")
)

// toxicWasteRound1 is kept between round 1 and round 2: the ephemeral
// polynomial plus the ephemeral DH key used to encrypt shares to peers.
type toxicWasteRound1 struct {
	poly *keygen.Poly
	sk   keygen.EphemeralPrivateKey
}

func (t *toxicWasteRound1) zeroize() {
	if t.poly != nil {
		t.poly.Zeroize()
	}
	t.sk.Zeroize()
}

// next discards the polynomial (no longer needed once shares are encrypted)
// and carries the ephemeral DH key forward into round 2, where it is needed
// again to decrypt the shares this node receives from other producers.
func (t *toxicWasteRound1) next() toxicWasteRound2 {
	if t.poly != nil {
		t.poly.Zeroize()
	}
	return toxicWasteRound2{sk: t.sk}
}

// toxicWasteRound2 is kept between round 2 and round 3: only the ephemeral
// DH key is still needed, to decrypt incoming shares.
type toxicWasteRound2 struct {
	sk keygen.EphemeralPrivateKey
}

func (t *toxicWasteRound2) zeroize() { t.sk.Zeroize() }

// Engine is the per-node DLogSecretGen session state machine.
type Engine struct {
	log *zap.Logger

	round1 map[chain.OprfKeyID]toxicWasteRound1
	round2 map[chain.OprfKeyID]toxicWasteRound2
	done   map[chain.OprfKeyID]curve.Fr
}

// New returns an Engine with no in-flight key generations.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:    log,
		round1: make(map[chain.OprfKeyID]toxicWasteRound1),
		round2: make(map[chain.OprfKeyID]toxicWasteRound2),
		done:   make(map[chain.OprfKeyID]curve.Fr),
	}
}

// DeleteKeyMaterial drops any in-flight toxic waste and finished share for
// keyID, in response to a KeyDeletion ledger event. It is always safe to
// call, even if no state exists for keyID.
func (e *Engine) DeleteKeyMaterial(keyID chain.OprfKeyID) {
	if tw, ok := e.round1[keyID]; ok {
		tw.zeroize()
		delete(e.round1, keyID)
		e.log.Info("dropped round1 toxic waste on key deletion", zap.Uint64("key_id", uint64(keyID)))
	}
	if tw, ok := e.round2[keyID]; ok {
		tw.zeroize()
		delete(e.round2, keyID)
		e.log.Info("dropped round2 toxic waste on key deletion", zap.Uint64("key_id", uint64(keyID)))
	}
	if _, ok := e.done[keyID]; ok {
		delete(e.done, keyID)
		e.log.Info("dropped finished share on key deletion", zap.Uint64("key_id", uint64(keyID)))
	}
}

// AbortKeyGen resets in-flight state for keyID without touching anything
// already confirmed and persisted under a prior epoch (KeyGenAbort /
// NotEnoughProducers only undo the attempt in progress).
func (e *Engine) AbortKeyGen(keyID chain.OprfKeyID, reason string) {
	if tw, ok := e.round1[keyID]; ok {
		tw.zeroize()
		delete(e.round1, keyID)
	}
	if tw, ok := e.round2[keyID]; ok {
		tw.zeroize()
		delete(e.round2, keyID)
	}
	e.log.Warn("key generation aborted", zap.Uint64("key_id", uint64(keyID)), zap.String("reason", reason))
}

// KeyGenRound1 starts a fresh key generation for keyID: samples a new
// degree = threshold-1 polynomial with a fresh random constant term and a
// fresh ephemeral DH key, and returns this node's round-1 contribution to
// publish.
func (e *Engine) KeyGenRound1(keyID chain.OprfKeyID, threshold int, myID party.ID) (chain.Round1Contribution, error) {
	if _, ok := e.round1[keyID]; ok {
		return chain.Round1Contribution{}, fmt.Errorf("%w: key %d", ErrAlreadyHasToxicWaste, keyID)
	}
	poly, err := keygen.NewPoly(threshold - 1)
	if err != nil {
		return chain.Round1Contribution{}, err
	}
	sk, err := keygen.GenerateEphemeralKey()
	if err != nil {
		poly.Zeroize()
		return chain.Round1Contribution{}, err
	}
	e.round1[keyID] = toxicWasteRound1{poly: poly, sk: sk}

	return chain.Round1Contribution{
		PartyID:         myID,
		ShareCommit:     poly.CommitShare(),
		CoeffCommit:     poly.CommitCoeffs(),
		EphemeralPubKey: sk.PublicKey(),
	}, nil
}

// ReshareRound1 starts a resharing of an existing share into a new
// polynomial whose constant term is oldShare, so the new shares reconstruct
// the same secret under a (possibly different) threshold.
func (e *Engine) ReshareRound1(keyID chain.OprfKeyID, threshold int, oldShare curve.Fr, myID party.ID) (chain.Round1Contribution, error) {
	if _, ok := e.round1[keyID]; ok {
		return chain.Round1Contribution{}, fmt.Errorf("%w: key %d", ErrAlreadyHasToxicWaste, keyID)
	}
	poly, err := keygen.NewPolyWithConstant(threshold-1, oldShare)
	if err != nil {
		return chain.Round1Contribution{}, err
	}
	sk, err := keygen.GenerateEphemeralKey()
	if err != nil {
		poly.Zeroize()
		return chain.Round1Contribution{}, err
	}
	e.round1[keyID] = toxicWasteRound1{poly: poly, sk: sk}

	return chain.Round1Contribution{
		PartyID:         myID,
		ShareCommit:     poly.CommitShare(),
		CoeffCommit:     poly.CommitCoeffs(),
		EphemeralPubKey: sk.PublicKey(),
	}, nil
}

// ProducerRound2 is driven once every round-1 contribution has been
// observed on-chain, by every party acting as a share producer: it encrypts
// this node's polynomial evaluation at every recipient's Shamir point to
// that recipient's ephemeral public key, then discards the polynomial.
func (e *Engine) ProducerRound2(keyID chain.OprfKeyID, myID party.ID, recipients map[party.ID]curve.Point, nonceSeed func(party.ID) curve.Fq) (chain.Round2Contribution, error) {
	tw, ok := e.round1[keyID]
	if !ok {
		return chain.Round2Contribution{}, fmt.Errorf("%w: key %d", ErrNoToxicWaste, keyID)
	}

	ciphers := e.encryptShares(tw, recipients, nonceSeed)
	proof, err := ReferenceProver{}.Prove(tw.sk)
	if err != nil {
		return chain.Round2Contribution{}, fmt.Errorf("secretgen: proof of correct encryption: %w", err)
	}

	e.round2[keyID] = tw.next()
	delete(e.round1, keyID)

	return chain.Round2Contribution{PartyID: myID, Ciphers: ciphers, Proof: proof.PKProof}, nil
}

// ConsumerRound1 is driven by a node that will only consume shares (never
// produce), in place of KeyGenRound1: it samples only the ephemeral DH key
// needed to receive and decrypt its incoming shares, and returns the
// corresponding public key to publish as this node's round-1 contribution.
func (e *Engine) ConsumerRound1(keyID chain.OprfKeyID, myID party.ID) (chain.Round1Contribution, error) {
	if _, ok := e.round2[keyID]; ok {
		e.log.Warn("overwriting existing round2 toxic waste", zap.Uint64("key_id", uint64(keyID)))
	}
	sk, err := keygen.GenerateEphemeralKey()
	if err != nil {
		return chain.Round1Contribution{}, err
	}
	e.round2[keyID] = toxicWasteRound2{sk: sk}
	return chain.Round1Contribution{PartyID: myID, EphemeralPubKey: sk.PublicKey()}, nil
}

// ConsumerRound2 is driven by a pure-consumer node at round-2 time. If this
// node mistakenly still holds round-1 toxic waste (meaning it was, in fact,
// asked to act as a producer), it promotes that state into round 2 instead
// of acting a second time; otherwise it is a no-op, since a consumer
// publishes no round-2 transaction at all.
func (e *Engine) ConsumerRound2(keyID chain.OprfKeyID) {
	tw, ok := e.round1[keyID]
	if !ok {
		return
	}
	e.round2[keyID] = tw.next()
	delete(e.round1, keyID)
}

// DecryptedShare is one producer's contribution to this node's final share,
// after decryption and commitment verification.
type DecryptedShare struct {
	ProducerID party.ID
	Share      curve.Fr
}

// Round3 decrypts and verifies every producer's encrypted share to this
// node, accumulates them according to contributions (plain sum for key
// generation, Lagrange-weighted for a reshare), and stores the finished
// share for Finalize to hand off. senderPKs and proofs are keyed by
// producer id: senderPKs supplies the ephemeral DH public key needed to
// decrypt, and proofs supplies that producer's proof of correct encryption,
// checked against the same public key before its share is accepted.
func (e *Engine) Round3(keyID chain.OprfKeyID, myID party.ID, ciphers map[party.ID]keygen.Cipher, senderPKs map[party.ID]curve.Point, proofs map[party.ID]dlogeq.Proof, contributions keygen.Contributions) (chain.Round3Contribution, error) {
	tw, ok := e.round2[keyID]
	if !ok {
		return chain.Round3Contribution{}, fmt.Errorf("%w: key %d", ErrNoToxicWaste, keyID)
	}
	defer func() {
		tw.zeroize()
		delete(e.round2, keyID)
	}()

	shares := make(map[party.ID]curve.Fr, len(ciphers))
	for producer, cipher := range ciphers {
		senderPK, ok := senderPKs[producer]
		if !ok {
			return chain.Round3Contribution{}, fmt.Errorf("secretgen: missing sender public key for producer %d", producer)
		}
		proof, ok := proofs[producer]
		if !ok {
			return chain.Round3Contribution{}, fmt.Errorf("secretgen: missing encryption proof for producer %d", producer)
		}
		if err := (ReferenceVerifier{}).Verify(senderPK, EncryptionProof{PKProof: proof}); err != nil {
			return chain.Round3Contribution{}, fmt.Errorf("secretgen: producer %d: %w", producer, err)
		}
		share := keygen.DecryptShare(tw.sk, senderPK, cipher)
		if err := keygen.VerifyShareCommitment(share, cipher.Commitment); err != nil {
			return chain.Round3Contribution{}, fmt.Errorf("secretgen: producer %d: %w", producer, err)
		}
		shares[producer] = share
	}

	finalShare := keygen.AccumulateShares(shares, contributions)
	e.done[keyID] = finalShare

	return chain.Round3Contribution{PartyID: myID}, nil
}

// Finalize removes and returns the finished share for keyID once the
// ledger confirms every participant's round-3 contribution. epoch and
// publicKey are supplied by the caller. EventDispatcher derives publicKey
// from the round-1 share commitments and always passes epoch 0: chain.Event
// carries no epoch, so reshared key material is also stored at epoch 0.
func (e *Engine) Finalize(keyID chain.OprfKeyID, epoch store.Epoch, publicKey curve.Point) (store.KeyMaterial, error) {
	share, ok := e.done[keyID]
	if !ok {
		return store.KeyMaterial{}, fmt.Errorf("%w: key %d", ErrNoFinishedShare, keyID)
	}
	delete(e.done, keyID)
	return store.KeyMaterial{Share: share, PublicKey: publicKey, Epoch: epoch}, nil
}
