package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
)

// MemStore is a sync.RWMutex-guarded in-memory SecretManager, holding only
// the latest epoch per key id plus an epoch-indexed history so
// GetShareByEpoch can still answer for an older epoch while a reshare is
// confirming.
type MemStore struct {
	address string

	mu      sync.RWMutex
	latest  map[chain.OprfKeyID]KeyMaterial
	history map[chain.OprfKeyID]map[Epoch]KeyMaterial
}

var _ SecretManager = (*MemStore)(nil)

// New returns an empty MemStore reporting address as its node address (used
// by the /wallet HTTP endpoint).
func New(address string) *MemStore {
	return &MemStore{
		address: address,
		latest:  make(map[chain.OprfKeyID]KeyMaterial),
		history: make(map[chain.OprfKeyID]map[Epoch]KeyMaterial),
	}
}

func (m *MemStore) LoadAddress(ctx context.Context) (string, error) {
	return m.address, nil
}

func (m *MemStore) LoadSecrets(ctx context.Context) (map[chain.OprfKeyID]KeyMaterial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[chain.OprfKeyID]KeyMaterial, len(m.latest))
	for k, v := range m.latest {
		out[k] = v
	}
	return out, nil
}

func (m *MemStore) GetOprfKeyMaterial(ctx context.Context, keyID chain.OprfKeyID) (KeyMaterial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	km, ok := m.latest[keyID]
	if !ok {
		return KeyMaterial{}, fmt.Errorf("%w: key %d", ErrNotFound, keyID)
	}
	return km, nil
}

func (m *MemStore) StoreDlogShare(ctx context.Context, keyID chain.OprfKeyID, km KeyMaterial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest[keyID] = km
	if m.history[keyID] == nil {
		m.history[keyID] = make(map[Epoch]KeyMaterial)
	}
	m.history[keyID][km.Epoch] = km
	return nil
}

func (m *MemStore) GetShareByEpoch(ctx context.Context, keyID chain.OprfKeyID, epoch Epoch) (KeyMaterial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byEpoch, ok := m.history[keyID]
	if !ok {
		return KeyMaterial{}, fmt.Errorf("%w: key %d", ErrNotFound, keyID)
	}
	km, ok := byEpoch[epoch]
	if !ok {
		return KeyMaterial{}, fmt.Errorf("%w: key %d epoch %d", ErrNotFound, keyID, epoch)
	}
	return km, nil
}

func (m *MemStore) RemoveOprfKeyMaterial(ctx context.Context, keyID chain.OprfKeyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.latest, keyID)
	delete(m.history, keyID)
	return nil
}
