package secretgen

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dlogeq"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
)

// keyRoundState accumulates the round-1 and round-2 contributions seen on
// the ledger for one in-flight key generation or reshare, until enough have
// arrived to advance this node's own state.
type keyRoundState struct {
	threshold    int
	participants party.Set
	isReshare    bool
	round1       map[party.ID]chain.Round1Contribution
	round2       map[party.ID]chain.Round2Contribution
}

// EventDispatcher implements watcher.Dispatcher over an Engine: it
// accumulates ledger contributions per key id and, once every expected
// participant's contribution for a round has been observed, drives the
// Engine's next round and submits this node's own contribution back to the
// ledger.
type EventDispatcher struct {
	Engine    *Engine
	MyID      party.ID
	Store     store.SecretManager
	Submitter chain.Submitter
	Log       *zap.Logger

	inFlight map[chain.OprfKeyID]*keyRoundState
}

// NewEventDispatcher returns a dispatcher ready to drive engine from ledger
// events observed by a watcher.Watcher.
func NewEventDispatcher(engine *Engine, myID party.ID, sm store.SecretManager, submitter chain.Submitter, log *zap.Logger) *EventDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventDispatcher{
		Engine:    engine,
		MyID:      myID,
		Store:     sm,
		Submitter: submitter,
		Log:       log,
		inFlight:  make(map[chain.OprfKeyID]*keyRoundState),
	}
}

func (d *EventDispatcher) stateFor(keyID chain.OprfKeyID) *keyRoundState {
	st, ok := d.inFlight[keyID]
	if !ok {
		st = &keyRoundState{round1: make(map[party.ID]chain.Round1Contribution), round2: make(map[party.ID]chain.Round2Contribution)}
		d.inFlight[keyID] = st
	}
	return st
}

// Dispatch implements watcher.Dispatcher.
func (d *EventDispatcher) Dispatch(ctx context.Context, ev chain.Event) error {
	switch ev.Kind {
	case chain.EventKindRound1, chain.EventKindReshareRound1:
		return d.onRound1(ctx, ev)
	case chain.EventKindRound2:
		return d.onRound2(ctx, ev)
	case chain.EventKindRound3, chain.EventKindReshareRound3:
		// Informational: this repository's Finalize event is what actually
		// releases key material, so round-3 confirmations (plain or reshare)
		// require no action beyond what onRound2/Round3-driving already
		// performed locally.
		return nil
	case chain.EventKindFinalize:
		return d.onFinalize(ctx, ev)
	case chain.EventKindKeyDeletion:
		d.Engine.DeleteKeyMaterial(ev.KeyID)
		delete(d.inFlight, ev.KeyID)
		return d.Store.RemoveOprfKeyMaterial(ctx, ev.KeyID)
	case chain.EventKindKeyGenAbort, chain.EventKindNotEnoughProducers:
		d.Engine.AbortKeyGen(ev.KeyID, ev.Reason)
		delete(d.inFlight, ev.KeyID)
		return nil
	default:
		return fmt.Errorf("secretgen: unknown event kind %d", ev.Kind)
	}
}

func (d *EventDispatcher) onRound1(ctx context.Context, ev chain.Event) error {
	if ev.Round1 == nil {
		return fmt.Errorf("secretgen: round1 event missing contribution")
	}
	st := d.stateFor(ev.KeyID)
	if ev.Kind == chain.EventKindReshareRound1 {
		st.isReshare = true
	}
	if ev.Threshold != 0 {
		st.threshold = ev.Threshold
	}
	if len(ev.Producers) != 0 {
		st.participants = ev.Producers
	}
	st.round1[ev.Round1.PartyID] = *ev.Round1

	if st.threshold == 0 || len(st.participants) == 0 || len(st.round1) < len(st.participants) {
		return nil
	}

	recipients := make(map[party.ID]curve.Point, len(st.participants))
	for _, id := range st.participants {
		recipients[id] = st.round1[id].EphemeralPubKey
	}

	counter := uint64(0)
	contribution, err := d.Engine.ProducerRound2(ev.KeyID, d.MyID, recipients, func(party.ID) curve.Fq {
		counter++
		return curve.FqFromUint64(counter)
	})
	if err != nil {
		return fmt.Errorf("secretgen: producer round2: %w", err)
	}
	if d.Submitter == nil {
		return nil
	}
	if err := d.Submitter.SubmitRound2(ctx, ev.KeyID, contribution); err != nil {
		d.Log.Warn("round2 submission failed", zap.Error(err), zap.Uint64("key_id", uint64(ev.KeyID)))
		return err
	}
	return nil
}

func (d *EventDispatcher) onRound2(ctx context.Context, ev chain.Event) error {
	if ev.Round2 == nil {
		return fmt.Errorf("secretgen: round2 event missing contribution")
	}
	st := d.stateFor(ev.KeyID)
	st.round2[ev.Round2.PartyID] = *ev.Round2

	if len(st.participants) == 0 || len(st.round2) < len(st.participants) {
		return nil
	}

	ciphers := make(map[party.ID]keygen.Cipher, len(st.round2))
	senderPKs := make(map[party.ID]curve.Point, len(st.round1))
	proofs := make(map[party.ID]dlogeq.Proof, len(st.round1))
	for producer, c := range st.round2 {
		cipher, ok := c.Ciphers[d.MyID]
		if !ok {
			return fmt.Errorf("secretgen: producer %d sent no share for this node", producer)
		}
		ciphers[producer] = cipher
		senderPKs[producer] = st.round1[producer].EphemeralPubKey
		proofs[producer] = c.Proof
	}

	contributions := keygen.FullContributions()
	if st.isReshare {
		contributions = keygen.ShamirContributions(st.participants)
	}

	contribution, err := d.Engine.Round3(ev.KeyID, d.MyID, ciphers, senderPKs, proofs, contributions)
	if err != nil {
		return fmt.Errorf("secretgen: round3: %w", err)
	}
	if d.Submitter == nil {
		return nil
	}
	if err := d.Submitter.SubmitRound3(ctx, ev.KeyID, contribution); err != nil {
		d.Log.Warn("round3 submission failed", zap.Error(err), zap.Uint64("key_id", uint64(ev.KeyID)))
		return err
	}
	return nil
}

func (d *EventDispatcher) onFinalize(ctx context.Context, ev chain.Event) error {
	st, ok := d.inFlight[ev.KeyID]
	if !ok {
		return nil
	}
	commits := make(map[party.ID]curve.Point, len(st.round1))
	for id, c := range st.round1 {
		commits[id] = c.ShareCommit
	}
	contributions := keygen.FullContributions()
	if st.isReshare {
		contributions = keygen.ShamirContributions(st.participants)
	}
	publicKey := keygen.AccumulatePublicShares(commits, contributions)
	km, err := d.Engine.Finalize(ev.KeyID, store.Epoch(0), publicKey)
	if err != nil {
		return fmt.Errorf("secretgen: finalize: %w", err)
	}
	delete(d.inFlight, ev.KeyID)
	return d.Store.StoreDlogShare(ctx, ev.KeyID, km)
}
