// Package chain models the on-chain ledger event log that orchestrates
// distributed key generation: the sequence of SecretGenRound1/2/3,
// ReshareRound1/3, Finalize, KeyDeletion, KeyGenAbort, and
// NotEnoughProducers events that drive pkg/secretgen, plus the transaction
// submission interface used to publish a node's own contributions.
package chain

import (
	"context"
	"fmt"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dlogeq"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
)

// OprfKeyID identifies one distributed key across its whole lifetime
// (generation, any number of reshares, and eventual deletion).
type OprfKeyID uint64

// EventKind enumerates the ledger event types that the watcher dispatches
// on.
type EventKind int

const (
	EventKindRound1 EventKind = iota
	EventKindReshareRound1
	EventKindRound2
	EventKindRound3
	EventKindReshareRound3
	EventKindFinalize
	EventKindKeyDeletion
	EventKindKeyGenAbort
	EventKindNotEnoughProducers
)

// BlockPos is a strict ordering key: (block number, log index within block).
type BlockPos struct {
	Block    uint64
	LogIndex uint32
}

// Less reports whether p sorts strictly before o.
func (p BlockPos) Less(o BlockPos) bool {
	if p.Block != o.Block {
		return p.Block < o.Block
	}
	return p.LogIndex < o.LogIndex
}

// Round1Contribution is published by every participant starting a fresh
// key generation or reshare: the public-key share commitment, the
// coefficient commitment, and the node's ephemeral DH public key.
type Round1Contribution struct {
	PartyID        party.ID
	ShareCommit    curve.Point
	CoeffCommit    curve.Fq
	EphemeralPubKey curve.Point
}

// Round2Contribution is published once by each producer once every round-1
// contribution has been observed: the encrypted shares for every
// participant, each carrying the commitment needed to validate it, plus
// this producer's proof of correct encryption.
type Round2Contribution struct {
	PartyID party.ID
	Ciphers map[party.ID]keygen.Cipher
	Proof   dlogeq.Proof
}

// Round3Contribution is published by every participant once it has
// decrypted and validated its incoming shares, confirming participation in
// the new key.
type Round3Contribution struct {
	PartyID party.ID
}

// Event is the sum type of every ledger event the watcher consumes. Exactly
// one of the typed fields is meaningful, selected by Kind.
type Event struct {
	Pos  BlockPos
	Kind EventKind

	KeyID OprfKeyID

	Round1    *Round1Contribution
	Round2    *Round2Contribution
	Round3    *Round3Contribution
	Threshold int            // Round1/ReshareRound1
	Producers party.Set      // Round1/ReshareRound1: the participants, each of which produces round 2
	Reason    string         // KeyGenAbort / NotEnoughProducers
}

// EventSource streams ledger events in strict (block, log_index) order. A
// real implementation subscribes to a chain RPC endpoint; pkg/chain/memchain
// provides an in-memory reference implementation for tests and examples.
type EventSource interface {
	// CatchUp returns every event at or after fromBlock recorded so far,
	// in order, including events in the latest block.
	CatchUp(ctx context.Context, fromBlock uint64) ([]Event, error)
	// Subscribe delivers events as they are produced, starting from the
	// live head at call time. The returned channel is closed when ctx is
	// cancelled.
	Subscribe(ctx context.Context) (<-chan Event, error)
	// LatestBlock returns the most recent block number known to the
	// source. watcher.Watcher does not call it.
	LatestBlock(ctx context.Context) (uint64, error)
}

// Submitter publishes this node's own contributions to the ledger.
// Implementations must be idempotent: submitting the same contribution
// twice (e.g. after a retry) must not double-publish.
type Submitter interface {
	SubmitRound1(ctx context.Context, keyID OprfKeyID, c Round1Contribution) error
	SubmitRound2(ctx context.Context, keyID OprfKeyID, c Round2Contribution) error
	SubmitRound3(ctx context.Context, keyID OprfKeyID, c Round3Contribution) error
}

// ErrRevert wraps a transaction revert reason surfaced by an eth_call replay
// during diagnostic handling, named after the chain-level revert reasons of
// the original registry contract.
type ErrRevert struct {
	Reason string
}

func (e *ErrRevert) Error() string { return fmt.Sprintf("chain: transaction reverted: %s", e.Reason) }

// Known revert reasons from the key-registry contract, used to classify
// submission failures without guessing.
const (
	RevertAlreadySubmitted            = "AlreadySubmitted"
	RevertBadContribution              = "BadContribution"
	RevertDeletedID                    = "DeletedId"
	RevertNotAParticipant              = "NotAParticipant"
	RevertNotAProducer                 = "NotAProducer"
	RevertNotReady                     = "NotReady"
	RevertOutdatedNullifier            = "OutdatedNullifier"
	RevertUnexpectedAmountPeers        = "UnexpectedAmountPeers"
	RevertUnknownID                    = "UnknownId"
	RevertUnsupportedNumPeersThreshold = "UnsupportedNumPeersThreshold"
	RevertWrongRound                   = "WrongRound"
	RevertPartiesNotDistinct           = "PartiesNotDistinct"
)
