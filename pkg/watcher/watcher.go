// Package watcher consumes the ledger event stream and drives the
// secretgen.Engine and store.SecretManager in response, and submits this
// node's own contributions back to the ledger with bounded, idempotent
// retry.
package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/chain"
)

// Config configures one Watcher instance.
type Config struct {
	PartyID     uint16
	StartBlock  uint64
	Source      chain.EventSource
	Submitter   chain.Submitter
	RetryDelay  time.Duration
	MaxRetries  int
	Log         *zap.Logger
}

// Dispatcher receives each event after ordering but before any
// ledger-submission side effects, in strict (block, log_index) order. The
// secretgen-backed implementation is secretgen.EventDispatcher in
// pkg/secretgen/dispatch.go; Watcher itself only guarantees ordering and
// delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev chain.Event) error
}

// Watcher runs the catch-up-then-live event consumption loop described by
// the ledger orchestration design: it subscribes to live events first (to
// avoid any gap between catch-up and the live feed), then replays history
// from StartBlock, then serves the live stream, skipping any event whose
// position was already delivered during catch-up.
type Watcher struct {
	cfg Config
	log *zap.Logger
}

// New returns a Watcher ready to Run.
func New(cfg Config) *Watcher {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Watcher{cfg: cfg, log: log}
}

// Run blocks, consuming events until ctx is cancelled or a non-recoverable
// error occurs.
func (w *Watcher) Run(ctx context.Context, dispatch Dispatcher) error {
	live, err := w.cfg.Source.Subscribe(ctx)
	if err != nil {
		return err
	}

	history, err := w.cfg.Source.CatchUp(ctx, w.cfg.StartBlock)
	if err != nil {
		return err
	}

	var lastPos chain.BlockPos
	havePos := false
	for _, ev := range history {
		if err := dispatch.Dispatch(ctx, ev); err != nil {
			w.log.Error("dispatch failed during catch-up", zap.Error(err))
		}
		lastPos = ev.Pos
		havePos = true
	}
	w.log.Info("catch-up complete", zap.Int("events", len(history)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-live:
			if !ok {
				return ctx.Err()
			}
			if havePos && !lastPos.Less(ev.Pos) {
				// Already processed during catch-up; the live subscription
				// necessarily overlaps it since it was opened first.
				continue
			}
			if err := dispatch.Dispatch(ctx, ev); err != nil {
				w.log.Error("dispatch failed", zap.Error(err), zap.Uint64("block", ev.Pos.Block))
			}
			lastPos = ev.Pos
			havePos = true
		}
	}
}
