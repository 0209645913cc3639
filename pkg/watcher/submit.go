package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
)

// pendingKey identifies one outstanding submission slot: a node never has
// more than one transaction in flight for the same (key id, round) pair.
type pendingKey struct {
	keyID chain.OprfKeyID
	round chain.EventKind
}

// SubmissionRegistry tracks in-flight transactions (Confirm removes an
// entry) so that a retried submission never double-publishes. A submission is
// "awaiting confirmation" from the moment it is sent until the
// corresponding ledger event for this node's own contribution is observed
// by the watcher (at which point the caller should call Confirm).
type SubmissionRegistry struct {
	mu      sync.Mutex
	pending map[pendingKey]time.Time
}

// NewSubmissionRegistry returns an empty registry.
func NewSubmissionRegistry() *SubmissionRegistry {
	return &SubmissionRegistry{pending: make(map[pendingKey]time.Time)}
}

// ErrAlreadyPending is returned when a submission is attempted for a slot
// that already has one awaiting confirmation.
var ErrAlreadyPending = errors.New("watcher: submission already awaiting confirmation")

// Begin reserves the (keyID, round) slot, failing if one is already
// outstanding. Callers should call Confirm or Abandon to release it.
func (r *SubmissionRegistry) Begin(keyID chain.OprfKeyID, round chain.EventKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := pendingKey{keyID: keyID, round: round}
	if _, ok := r.pending[k]; ok {
		return fmt.Errorf("%w: key %d round %d", ErrAlreadyPending, keyID, round)
	}
	r.pending[k] = time.Now()
	return nil
}

// Confirm releases the slot once the node's own contribution is observed on
// the ledger.
func (r *SubmissionRegistry) Confirm(keyID chain.OprfKeyID, round chain.EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, pendingKey{keyID: keyID, round: round})
}

// Abandon releases the slot without having confirmed, allowing a fresh
// attempt (used after a bounded retry budget is exhausted).
func (r *SubmissionRegistry) Abandon(keyID chain.OprfKeyID, round chain.EventKind) {
	r.Confirm(keyID, round)
}

// TimedOut reports whether the (keyID, round) slot has been awaiting
// confirmation for longer than timeout.
func (r *SubmissionRegistry) TimedOut(keyID chain.OprfKeyID, round chain.EventKind, timeout time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	startedAt, ok := r.pending[pendingKey{keyID: keyID, round: round}]
	if !ok {
		return false
	}
	return time.Since(startedAt) > timeout
}

// SubmitRound1WithRetry submits a round-1 contribution, retrying on
// transient failure up to cfg.MaxRetries times with cfg.RetryDelay between
// attempts. A chain.ErrRevert failure is never retried, since it indicates
// the contribution itself (not the transport) is invalid.
func (w *Watcher) SubmitRound1WithRetry(ctx context.Context, reg *SubmissionRegistry, keyID chain.OprfKeyID, c chain.Round1Contribution) error {
	if err := reg.Begin(keyID, chain.EventKindRound1); err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		lastErr = w.cfg.Submitter.SubmitRound1(ctx, keyID, c)
		if lastErr == nil {
			return nil
		}
		var revert *chain.ErrRevert
		if errors.As(lastErr, &revert) {
			reg.Abandon(keyID, chain.EventKindRound1)
			return lastErr
		}
		w.log.Warn("round1 submission failed, retrying", zap.Error(lastErr), zap.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			reg.Abandon(keyID, chain.EventKindRound1)
			return ctx.Err()
		case <-time.After(w.cfg.RetryDelay):
		}
	}
	reg.Abandon(keyID, chain.EventKindRound1)
	return fmt.Errorf("watcher: round1 submission exhausted retries: %w", lastErr)
}
