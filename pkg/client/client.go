// Package client implements the aggregator a consumer uses to obtain an
// OPRF evaluation from a threshold of nodes: it fans a request out to every
// configured endpoint, takes the first t commitments to arrive, combines
// and verifies the distributed proof, and unblinds the result.
package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/dshamir"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/oprf"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
)

// ErrEpochMismatch is returned when contributing nodes disagree on which
// epoch of the key they are serving.
var ErrEpochMismatch = errors.New("client: contributing nodes disagree on key epoch")

// ErrNotEnoughNodes is returned when fewer than threshold nodes respond
// before the context is cancelled.
var ErrNotEnoughNodes = errors.New("client: fewer than threshold nodes responded")

// NodeClient is the per-node connection contract the aggregator drives. A
// concrete implementation talks transport.Conn/pkg/wire to one node; tests
// supply an in-process fake.
type NodeClient interface {
	PartyID() party.ID
	RequestCommitments(ctx context.Context, sessionID uuid.UUID, keyID chain.OprfKeyID, blindedQuery curve.Point) (dshamir.PartialCommitments, uint32, error)
	RequestProofShare(ctx context.Context, sessionID uuid.UUID, combined dshamir.Commitments) (curve.Fr, error)
}

// Aggregator queries a fixed set of node endpoints and combines their
// responses into one verified OPRF evaluation.
type Aggregator struct {
	Nodes     []NodeClient
	Threshold int
	PublicKey curve.Point
	KeyID     chain.OprfKeyID
}

type commitmentResult struct {
	id    party.ID
	pc    dshamir.PartialCommitments
	epoch uint32
}

// Evaluate runs one full blind/evaluate/unblind/finalize round for input
// against the configured node set, returning the finalized OPRF output.
func (a *Aggregator) Evaluate(ctx context.Context, domainSeparator curve.Fq, input []byte) (curve.Fq, error) {
	if len(a.Nodes) < a.Threshold {
		return curve.Fq{}, fmt.Errorf("client: have %d nodes, need threshold %d", len(a.Nodes), a.Threshold)
	}

	b, err := oprf.NewBlindingFactor()
	if err != nil {
		return curve.Fq{}, err
	}
	req, query := oprf.Blind(input, b)
	prepared, err := b.Prepare()
	if err != nil {
		return curve.Fq{}, err
	}

	sessionID := uuid.New()

	results, err := a.collectFirstT(ctx, sessionID, req.Point, a.KeyID)
	if err != nil {
		return curve.Fq{}, err
	}

	ids := make(party.Set, 0, len(results))
	partials := make(map[party.ID]dshamir.PartialCommitments, len(results))
	epoch := results[0].epoch
	for _, r := range results {
		if r.epoch != epoch {
			return curve.Fq{}, ErrEpochMismatch
		}
		ids = append(ids, r.id)
		partials[r.id] = r.pc
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	combined, err := dshamir.CombineCommitments(partials, ids)
	if err != nil {
		return curve.Fq{}, err
	}

	shares := make(map[party.ID]curve.Fr, len(ids))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	byID := make(map[party.ID]NodeClient, len(a.Nodes))
	for _, n := range a.Nodes {
		byID[n.PartyID()] = n
	}
	for _, id := range ids {
		id := id
		node := byID[id]
		g.Go(func() error {
			share, err := node.RequestProofShare(gctx, sessionID, combined)
			if err != nil {
				return err
			}
			mu.Lock()
			shares[id] = share
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return curve.Fq{}, err
	}

	response := combined.C
	if _, err := dshamir.CombineProofShares(shares, ids, sessionID, a.PublicKey, req.Point, response, combined); err != nil {
		return curve.Fq{}, err
	}

	unblinded := oprf.Unblind(oprf.BlindedOprfResponse{Point: response}, prepared)
	return oprf.Finalize(domainSeparator, query, unblinded), nil
}

// collectFirstT fans the commitment request out to every node and returns
// as soon as threshold responses have arrived, cancelling the stragglers.
func (a *Aggregator) collectFirstT(ctx context.Context, sessionID uuid.UUID, blindedQuery curve.Point, keyID chain.OprfKeyID) ([]commitmentResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultsCh := make(chan commitmentResult, len(a.Nodes))
	var wg sync.WaitGroup
	for _, n := range a.Nodes {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			pc, epoch, err := n.RequestCommitments(ctx, sessionID, keyID, blindedQuery)
			if err != nil {
				return
			}
			select {
			case resultsCh <- commitmentResult{id: n.PartyID(), pc: pc, epoch: epoch}:
			case <-ctx.Done():
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var out []commitmentResult
	for r := range resultsCh {
		out = append(out, r)
		if len(out) == a.Threshold {
			cancel()
			return out, nil
		}
	}
	return nil, ErrNotEnoughNodes
}
