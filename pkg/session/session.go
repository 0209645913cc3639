// Package session implements the per-request OPRF node state machine: one
// instance is created per incoming evaluation request and walks through
// request validation, partial commitment, challenge validation, and proof
// share generation before being consumed exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dshamir"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
)

// Error classes matching the §7 close-code taxonomy.
var (
	ErrBadRequest       = errors.New("session: bad request")
	ErrUnsupported      = errors.New("session: unsupported")
	ErrSessionIDReused  = errors.New("session: session id already in use")
	ErrIdentityQuery    = errors.New("session: blinded query must not be the identity")
	ErrUnauthorized     = errors.New("session: unauthorized")
)

// OpenSessions tracks session ids currently in use by this node, enforcing
// uniqueness and releasing each entry exactly once when the session closes
// (standing in, in Go, for the move-only semantics the original design
// expresses with an affine session type).
type OpenSessions struct {
	mu   sync.Mutex
	ids  map[uuid.UUID]struct{}
}

// NewOpenSessions returns an empty tracker.
func NewOpenSessions() *OpenSessions {
	return &OpenSessions{ids: make(map[uuid.UUID]struct{})}
}

// Begin reserves id, failing with ErrSessionIDReused if already in use.
func (s *OpenSessions) Begin(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return ErrSessionIDReused
	}
	s.ids[id] = struct{}{}
	return nil
}

// Release frees id. Safe to call even if id was never reserved.
func (s *OpenSessions) Release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Handler runs one node's side of an evaluation session against a key
// material store and a shared open-sessions tracker.
type Handler struct {
	MyID     party.ID
	Store    store.SecretManager
	Sessions *OpenSessions
	Log      *zap.Logger
}

// State is the live, in-progress session: reserved id, decoded-and-validated
// blinded query, loaded key material, and the move-only dshamir.Session
// (nonces) created for this evaluation.
type State struct {
	h         *Handler
	sessionID uuid.UUID
	keyID     chain.OprfKeyID
	keyMat    store.KeyMaterial
	blindedQ  curve.Point
	dshamir   dshamir.Session
	closed    bool
}

// Open validates an incoming request and, on success, returns a State ready
// to produce partial commitments. On any error the session id (if already
// reserved) is released before returning, so a client may legally retry
// with the same id after a validation failure.
func (h *Handler) Open(ctx context.Context, sessionID uuid.UUID, keyID chain.OprfKeyID, blindedQueryBytes []byte) (*State, error) {
	if err := h.Sessions.Begin(sessionID); err != nil {
		return nil, err
	}

	blindedQ, err := curve.DecodePoint(blindedQueryBytes)
	if err != nil {
		h.Sessions.Release(sessionID)
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := blindedQ.Validate(); err != nil {
		h.Sessions.Release(sessionID)
		if blindedQ.IsIdentity() {
			return nil, ErrIdentityQuery
		}
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	keyMat, err := h.Store.GetOprfKeyMaterial(ctx, keyID)
	if err != nil {
		h.Sessions.Release(sessionID)
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	return &State{
		h:         h,
		sessionID: sessionID,
		keyID:     keyID,
		keyMat:    keyMat,
		blindedQ:  blindedQ,
	}, nil
}
