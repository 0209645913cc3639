// Package memchain is an in-memory reference implementation of
// chain.EventSource and chain.Submitter, used by tests, examples, and the
// CLI in place of a real chain RPC connection.
package memchain

import (
	"context"
	"sync"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
)

// Chain is a single shared event log. Append is how a test or CLI drives
// the ledger; it assigns strictly increasing (block, log_index) positions
// automatically.
type Chain struct {
	mu       sync.Mutex
	events   []chain.Event
	block    uint64
	logIndex uint32
	subs     []chan chain.Event
}

// New returns an empty chain starting at block 0.
func New() *Chain {
	return &Chain{}
}

// Append adds an event to the log, assigning it the next (block, log_index)
// position, and delivers it to any live subscribers. Call AdvanceBlock
// between groups of events that should land in different blocks.
func (c *Chain) Append(ev chain.Event) chain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev.Pos = chain.BlockPos{Block: c.block, LogIndex: c.logIndex}
	c.logIndex++
	c.events = append(c.events, ev)
	for _, sub := range c.subs {
		select {
		case sub <- ev:
		default:
			// Reference implementation: a slow subscriber drops events
			// rather than blocking Append. Production watchers should not
			// rely on unbounded subscriber channels.
		}
	}
	return ev
}

// AdvanceBlock moves the simulated chain to the next block number, resetting
// the log-index counter.
func (c *Chain) AdvanceBlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block++
	c.logIndex = 0
}

func (c *Chain) CatchUp(ctx context.Context, fromBlock uint64) ([]chain.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []chain.Event
	for _, ev := range c.events {
		if ev.Pos.Block >= fromBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (c *Chain) Subscribe(ctx context.Context) (<-chan chain.Event, error) {
	ch := make(chan chain.Event, 256)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (c *Chain) LatestBlock(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

// Submitter publishes a node's own contributions directly onto a Chain,
// each as a Round1/Round2/Round3 event in the next log slot.
type Submitter struct {
	Chain *Chain
}

func (s *Submitter) SubmitRound1(ctx context.Context, keyID chain.OprfKeyID, c chain.Round1Contribution) error {
	s.Chain.Append(chain.Event{KeyID: keyID, Kind: chain.EventKindRound1, Round1: &c})
	return nil
}

func (s *Submitter) SubmitRound2(ctx context.Context, keyID chain.OprfKeyID, c chain.Round2Contribution) error {
	s.Chain.Append(chain.Event{KeyID: keyID, Kind: chain.EventKindRound2, Round2: &c})
	return nil
}

func (s *Submitter) SubmitRound3(ctx context.Context, keyID chain.OprfKeyID, c chain.Round3Contribution) error {
	s.Chain.Append(chain.Event{KeyID: keyID, Kind: chain.EventKindRound3, Round3: &c})
	return nil
}
