// Package store defines the key-material persistence contract and an
// in-memory reference implementation, consulted by the session handler and
// the HTTP surface and updated by the key-event watcher.
package store

import (
	"context"
	"errors"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
)

// ErrNotFound is returned when no key material exists for the requested id
// (and, where relevant, epoch).
var ErrNotFound = errors.New("store: key material not found")

// Epoch numbers successive generations of the same OprfKeyId: the value
// bumps on every reshare, while the public key tied to the id is expected to
// stay stable across epochs (resharing changes who holds the secret, not
// what it evaluates to).
type Epoch uint32

// KeyMaterial is everything a node needs to serve OPRF evaluations for one
// key id at one epoch.
type KeyMaterial struct {
	Share     curve.Fr
	PublicKey curve.Point
	Epoch     Epoch
}

// SecretManager is the persistence contract a node depends on for its own
// key shares: load at startup, store as new epochs finalize, and remove on
// deletion. Implementations must be safe for concurrent use.
type SecretManager interface {
	LoadAddress(ctx context.Context) (string, error)
	LoadSecrets(ctx context.Context) (map[chain.OprfKeyID]KeyMaterial, error)
	GetOprfKeyMaterial(ctx context.Context, keyID chain.OprfKeyID) (KeyMaterial, error)
	StoreDlogShare(ctx context.Context, keyID chain.OprfKeyID, km KeyMaterial) error
	GetShareByEpoch(ctx context.Context, keyID chain.OprfKeyID, epoch Epoch) (KeyMaterial, error)
	RemoveOprfKeyMaterial(ctx context.Context, keyID chain.OprfKeyID) error
}
