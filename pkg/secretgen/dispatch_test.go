package secretgen_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain/memchain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/secretgen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/watcher"
)

// TestEventDispatcherDrivesFullKeyGenOverLedger wires three nodes' Engines
// to a shared in-memory ledger purely through EventDispatcher and
// watcher.Watcher: once each node submits its own round-1 contribution,
// every subsequent round is driven reactively from observed ledger events
// alone, with no direct calls between nodes.
func TestEventDispatcherDrivesFullKeyGenOverLedger(t *testing.T) {
	const n, threshold = 3, 2
	keyID := chain.OprfKeyID(42)
	participants := party.Set{0, 1, 2}

	c := memchain.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engines := make(map[party.ID]*secretgen.Engine, n)
	stores := make(map[party.ID]*store.MemStore, n)
	for i := 0; i < n; i++ {
		id := party.ID(i)
		engines[id] = secretgen.New(nil)
		stores[id] = store.New("addr")
		sub := &memchain.Submitter{Chain: c}
		d := secretgen.NewEventDispatcher(engines[id], id, stores[id], sub, nil)
		w := watcher.New(watcher.Config{PartyID: uint16(id), Source: c, Submitter: sub})
		go w.Run(ctx, d)
	}

	for i := 0; i < n; i++ {
		id := party.ID(i)
		contribution, err := engines[id].KeyGenRound1(keyID, threshold, id)
		require.NoError(t, err)
		c.Append(chain.Event{
			KeyID:     keyID,
			Kind:      chain.EventKindRound1,
			Round1:    &contribution,
			Threshold: threshold,
			Producers: participants,
		})
	}

	require.Eventually(t, func() bool {
		events, err := c.CatchUp(context.Background(), 0)
		require.NoError(t, err)
		count := 0
		for _, ev := range events {
			if ev.Kind == chain.EventKindRound3 {
				count++
			}
		}
		return count == n
	}, 2*time.Second, 10*time.Millisecond)

	c.Append(chain.Event{KeyID: keyID, Kind: chain.EventKindFinalize})

	for i := 0; i < n; i++ {
		id := party.ID(i)
		require.Eventually(t, func() bool {
			_, err := stores[id].GetOprfKeyMaterial(context.Background(), keyID)
			return err == nil
		}, 2*time.Second, 10*time.Millisecond)
	}

	km0, err := stores[0].GetOprfKeyMaterial(context.Background(), keyID)
	require.NoError(t, err)
	km1, err := stores[1].GetOprfKeyMaterial(context.Background(), keyID)
	require.NoError(t, err)
	assert.True(t, km0.PublicKey.Equal(km1.PublicKey))
	assert.False(t, km0.Share.Equal(km1.Share))
}

// TestEventDispatcherDispatchesReshareRound3 confirms a ReshareRound3 ledger
// event no longer falls through to Dispatch's "unknown event kind" default.
func TestEventDispatcherDispatchesReshareRound3(t *testing.T) {
	d := secretgen.NewEventDispatcher(secretgen.New(nil), party.ID(0), store.New("addr"), nil, nil)
	err := d.Dispatch(context.Background(), chain.Event{KeyID: chain.OprfKeyID(1), Kind: chain.EventKindReshareRound3})
	assert.NoError(t, err)
}

// TestEventDispatcherDrivesReshareOverLedger reshares a 2-of-3 key into a
// new 2-of-2 key using only a strict subset {0,1} of the original producers
// as the reshare's producer set, purely by appending ledger events and
// letting each node's watcher/EventDispatcher react. This only reconstructs
// the original secret if Round3 is driven with
// keygen.ShamirContributions(subset) instead of a plain sum.
func TestEventDispatcherDrivesReshareOverLedger(t *testing.T) {
	const n, oldThreshold = 3, 2
	keyID := chain.OprfKeyID(142)
	participants := party.Set{0, 1, 2}

	c := memchain.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engines := make(map[party.ID]*secretgen.Engine, n)
	stores := make(map[party.ID]*store.MemStore, n)
	for i := 0; i < n; i++ {
		id := party.ID(i)
		engines[id] = secretgen.New(nil)
		stores[id] = store.New("addr")
		sub := &memchain.Submitter{Chain: c}
		d := secretgen.NewEventDispatcher(engines[id], id, stores[id], sub, nil)
		w := watcher.New(watcher.Config{PartyID: uint16(id), Source: c, Submitter: sub})
		go w.Run(ctx, d)
	}

	for i := 0; i < n; i++ {
		id := party.ID(i)
		contribution, err := engines[id].KeyGenRound1(keyID, oldThreshold, id)
		require.NoError(t, err)
		c.Append(chain.Event{KeyID: keyID, Kind: chain.EventKindRound1, Round1: &contribution, Threshold: oldThreshold, Producers: participants})
	}

	require.Eventually(t, func() bool {
		events, err := c.CatchUp(context.Background(), 0)
		require.NoError(t, err)
		count := 0
		for _, ev := range events {
			if ev.Kind == chain.EventKindRound3 {
				count++
			}
		}
		return count == n
	}, 2*time.Second, 10*time.Millisecond)

	c.Append(chain.Event{KeyID: keyID, Kind: chain.EventKindFinalize})
	for i := 0; i < n; i++ {
		id := party.ID(i)
		require.Eventually(t, func() bool {
			_, err := stores[id].GetOprfKeyMaterial(context.Background(), keyID)
			return err == nil
		}, 2*time.Second, 10*time.Millisecond)
	}

	oldKM, err := stores[0].GetOprfKeyMaterial(context.Background(), keyID)
	require.NoError(t, err)

	const newKeyID, newThreshold = chain.OprfKeyID(143), 2
	subset := party.Set{0, 1}

	resEngines := make(map[party.ID]*secretgen.Engine, len(subset))
	resStores := make(map[party.ID]*store.MemStore, len(subset))
	rc := memchain.New()
	for _, id := range subset {
		resEngines[id] = secretgen.New(nil)
		resStores[id] = store.New("addr")
		sub := &memchain.Submitter{Chain: rc}
		d := secretgen.NewEventDispatcher(resEngines[id], id, resStores[id], sub, nil)
		w := watcher.New(watcher.Config{PartyID: uint16(id), Source: rc, Submitter: sub})
		go w.Run(ctx, d)
	}

	for _, id := range subset {
		km, err := stores[id].GetOprfKeyMaterial(context.Background(), keyID)
		require.NoError(t, err)
		contribution, err := resEngines[id].ReshareRound1(newKeyID, newThreshold, km.Share, id)
		require.NoError(t, err)
		rc.Append(chain.Event{KeyID: newKeyID, Kind: chain.EventKindReshareRound1, Round1: &contribution, Threshold: newThreshold, Producers: subset})
	}

	require.Eventually(t, func() bool {
		events, err := rc.CatchUp(context.Background(), 0)
		require.NoError(t, err)
		count := 0
		for _, ev := range events {
			if ev.Kind == chain.EventKindRound3 {
				count++
			}
		}
		return count == len(subset)
	}, 2*time.Second, 10*time.Millisecond)

	rc.Append(chain.Event{KeyID: newKeyID, Kind: chain.EventKindFinalize})
	for _, id := range subset {
		require.Eventually(t, func() bool {
			_, err := resStores[id].GetOprfKeyMaterial(context.Background(), newKeyID)
			return err == nil
		}, 2*time.Second, 10*time.Millisecond)
	}

	newKM0, err := resStores[0].GetOprfKeyMaterial(context.Background(), newKeyID)
	require.NoError(t, err)
	newKM1, err := resStores[1].GetOprfKeyMaterial(context.Background(), newKeyID)
	require.NoError(t, err)

	reconstructed := keygen.AccumulateShares(map[party.ID]curve.Fr{
		0: newKM0.Share,
		1: newKM1.Share,
	}, keygen.ShamirContributions(subset))
	assert.True(t, curve.Base().ScalarMul(reconstructed).Equal(oldKM.PublicKey))
}
