package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dshamir"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
)

// PartialCommit samples this node's nonces and returns the partial
// Chaum-Pedersen commitments to send to the client, including this node's
// evaluation of the blinded query (the PartialCommitments.C field). It must
// be called exactly once per State.
func (st *State) PartialCommit() (dshamir.PartialCommitments, error) {
	if st.closed {
		return dshamir.PartialCommitments{}, fmt.Errorf("session: state already closed")
	}
	sess, pc, err := dshamir.NewSession(st.blindedQ, st.keyMat.Share)
	if err != nil {
		st.Close()
		return dshamir.PartialCommitments{}, err
	}
	st.dshamir = sess
	return pc, nil
}

// ValidateChallenge checks a client-supplied contributing-parties set
// against the protocol invariants before this node commits to producing a
// proof share for it: it must have exactly the node's threshold size, be
// sorted and deduplicated, and include this node's own id.
func (st *State) ValidateChallenge(contributingParties party.Set, threshold int) error {
	if len(contributingParties) != threshold {
		return fmt.Errorf("%w: expected %d contributing parties, got %d", ErrBadRequest, threshold, len(contributingParties))
	}
	if !contributingParties.IsSorted() {
		return fmt.Errorf("%w: contributing parties must be sorted and deduplicated", ErrBadRequest)
	}
	if !contributingParties.Contains(st.h.MyID) {
		return fmt.Errorf("%w: contributing parties must include this node", ErrBadRequest)
	}
	return nil
}

// ChallengeAndRespond consumes the session's nonces and returns this node's
// proof share. After this call the State must not be used again.
func (st *State) ChallengeAndRespond(combined dshamir.Commitments, publicKey curve.Point) (curve.Fr, error) {
	defer st.Close()
	return dshamir.Challenge(&st.dshamir, st.sessionID, publicKey, combined, st.keyMat.Share, st.h.MyID)
}

// Close releases the session id and zeroizes any in-flight nonces. Safe to
// call more than once and on any error path.
func (st *State) Close() {
	if st.closed {
		return
	}
	st.dshamir.Zeroize()
	st.h.Sessions.Release(st.sessionID)
	st.closed = true
	if st.h.Log != nil {
		st.h.Log.Debug("session closed", zap.String("session_id", st.sessionID.String()))
	}
}
