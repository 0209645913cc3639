// Package e2e wires the secret-gen engines (driven directly, with no
// ledger in between), the session handler, and the client aggregator
// together to exercise the scenarios a single package test can't reach in
// isolation.
package e2e_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/client"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dlogeq"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dshamir"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/secretgen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/session"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/store"
)

type fleet struct {
	n, threshold int
	engines      map[party.ID]*secretgen.Engine
	stores       map[party.ID]*store.MemStore
	handlers     map[party.ID]*session.Handler
	publicKey    curve.Point
}

func newFleet(t *testing.T, n, threshold int) *fleet {
	t.Helper()
	f := &fleet{
		n: n, threshold: threshold,
		engines:  make(map[party.ID]*secretgen.Engine, n),
		stores:   make(map[party.ID]*store.MemStore, n),
		handlers: make(map[party.ID]*session.Handler, n),
	}
	for i := 0; i < n; i++ {
		id := party.ID(i)
		f.engines[id] = secretgen.New(nil)
		f.stores[id] = store.New("addr")
		f.handlers[id] = &session.Handler{MyID: id, Store: f.stores[id], Sessions: session.NewOpenSessions()}
	}
	return f
}

func (f *fleet) runKeyGen(t *testing.T, keyID chain.OprfKeyID, participants party.Set) {
	t.Helper()
	round1 := make(map[party.ID]chain.Round1Contribution, len(participants))
	for _, id := range participants {
		c, err := f.engines[id].KeyGenRound1(keyID, f.threshold, id)
		require.NoError(t, err)
		round1[id] = c
	}
	pks := make(map[party.ID]curve.Point, len(participants))
	shareCommits := make(map[party.ID]curve.Point, len(participants))
	for id, c := range round1 {
		pks[id] = c.EphemeralPubKey
		shareCommits[id] = c.ShareCommit
	}

	round2 := make(map[party.ID]chain.Round2Contribution, len(participants))
	for _, id := range participants {
		counter := uint64(0)
		c, err := f.engines[id].ProducerRound2(keyID, id, pks, func(party.ID) curve.Fq {
			counter++
			return curve.FqFromUint64(counter)
		})
		require.NoError(t, err)
		round2[id] = c
	}

	publicKey := curve.Identity()
	for _, c := range shareCommits {
		publicKey = publicKey.Add(c)
	}
	f.publicKey = publicKey

	proofs := make(map[party.ID]dlogeq.Proof, len(participants))
	for producer, c := range round2 {
		proofs[producer] = c.Proof
	}

	for _, recipient := range participants {
		ciphers := make(map[party.ID]keygen.Cipher, len(participants))
		for producer, c := range round2 {
			ciphers[producer] = c.Ciphers[recipient]
		}
		_, err := f.engines[recipient].Round3(keyID, recipient, ciphers, pks, proofs, keygen.FullContributions())
		require.NoError(t, err)
		km, err := f.engines[recipient].Finalize(keyID, 0, publicKey)
		require.NoError(t, err)
		require.NoError(t, f.stores[recipient].StoreDlogShare(context.Background(), keyID, km))
	}
}

// simpleNodeClient adapts a fleet member's session.Handler to
// client.NodeClient for in-process end-to-end evaluation, standing in for a
// real transport.Conn round trip.
type simpleNodeClient struct {
	id      party.ID
	handler *session.Handler
	keyID   chain.OprfKeyID
	state   *session.State
}

func (c *simpleNodeClient) PartyID() party.ID { return c.id }

func (c *simpleNodeClient) RequestCommitments(ctx context.Context, sessionID uuid.UUID, keyID chain.OprfKeyID, blindedQuery curve.Point) (dshamir.PartialCommitments, uint32, error) {
	st, err := c.handler.Open(ctx, sessionID, keyID, blindedQuery.Bytes())
	if err != nil {
		return dshamir.PartialCommitments{}, 0, err
	}
	c.state = st
	pc, err := st.PartialCommit()
	if err != nil {
		return dshamir.PartialCommitments{}, 0, err
	}
	return pc, 0, nil
}

func (c *simpleNodeClient) RequestProofShare(ctx context.Context, sessionID uuid.UUID, combined dshamir.Commitments) (curve.Fr, error) {
	return c.state.ChallengeAndRespond(combined, publicKeyHolder)
}

var publicKeyHolder curve.Point

func TestEndToEndKeyGenAndEvaluate(t *testing.T) {
	const n, threshold = 5, 3
	f := newFleet(t, n, threshold)
	keyID := chain.OprfKeyID(7)
	all := party.Set{0, 1, 2, 3, 4}
	f.runKeyGen(t, keyID, all)
	publicKeyHolder = f.publicKey

	nodes := make([]client.NodeClient, n)
	for i := 0; i < n; i++ {
		id := party.ID(i)
		nodes[i] = &simpleNodeClient{id: id, handler: f.handlers[id], keyID: keyID}
	}

	agg := &client.Aggregator{Nodes: nodes, Threshold: threshold, PublicKey: f.publicKey, KeyID: keyID}
	out, err := agg.Evaluate(context.Background(), curve.FqFromUint64(1), []byte("alice's secret input"))
	require.NoError(t, err)
	assert.False(t, out.IsZero())

	// Determinism: evaluating the same input twice yields the same output.
	out2, err := agg.Evaluate(context.Background(), curve.FqFromUint64(1), []byte("alice's secret input"))
	require.NoError(t, err)
	assert.True(t, out.Equal(out2))

	// Different inputs yield different outputs.
	out3, err := agg.Evaluate(context.Background(), curve.FqFromUint64(1), []byte("bob's secret input"))
	require.NoError(t, err)
	assert.False(t, out.Equal(out3))
}

func TestSessionIDReuseAcrossNodesIsRejectedPerNode(t *testing.T) {
	const n, threshold = 3, 2
	f := newFleet(t, n, threshold)
	keyID := chain.OprfKeyID(9)
	f.runKeyGen(t, keyID, party.Set{0, 1, 2})

	id := uuid.New()
	blindedQuery := curve.HashToCurve("test", []byte("x"))

	st1, err := f.handlers[0].Open(context.Background(), id, keyID, blindedQuery.Bytes())
	require.NoError(t, err)
	defer st1.Close()

	_, err = f.handlers[0].Open(context.Background(), id, keyID, blindedQuery.Bytes())
	assert.ErrorIs(t, err, session.ErrSessionIDReused)

	// A different node's handler has an independent session-id namespace.
	st2, err := f.handlers[1].Open(context.Background(), id, keyID, blindedQuery.Bytes())
	require.NoError(t, err)
	st2.Close()
}

func TestIdentityBlindedQueryRejected(t *testing.T) {
	const n, threshold = 3, 2
	f := newFleet(t, n, threshold)
	keyID := chain.OprfKeyID(11)
	f.runKeyGen(t, keyID, party.Set{0, 1, 2})

	_, err := f.handlers[0].Open(context.Background(), uuid.New(), keyID, curve.Identity().Bytes())
	assert.ErrorIs(t, err, session.ErrIdentityQuery)
}

func TestAbortPreservesNoPriorEpoch(t *testing.T) {
	const n, threshold = 3, 2
	f := newFleet(t, n, threshold)
	keyID := chain.OprfKeyID(13)

	_, err := f.engines[0].KeyGenRound1(keyID, threshold, 0)
	require.NoError(t, err)

	f.engines[0].AbortKeyGen(keyID, "not enough producers")

	// After an abort, round1 can be retried for the same key id.
	_, err = f.engines[0].KeyGenRound1(keyID, threshold, 0)
	assert.NoError(t, err)
}
