package secretgen

import (
	"context"
	"sync"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/keygen"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/workerpool"
)

// encryptionWorkers bounds how many share encryptions run concurrently
// during round 2; evaluating the polynomial and encrypting to each
// recipient is independent per-recipient work, so it parallelizes cleanly
// once the participant count is large enough to matter.
const encryptionWorkers = 8

// encryptShares computes and encrypts this node's share for every recipient
// using a bounded worker pool, since a large participant count makes this
// the dominant cost of round 2.
func (e *Engine) encryptShares(tw toxicWasteRound1, recipients map[party.ID]curve.Point, nonceSeed func(party.ID) curve.Fq) map[party.ID]keygen.Cipher {
	ciphers := make(map[party.ID]keygen.Cipher, len(recipients))
	var mu sync.Mutex

	pool := workerpool.New(encryptionWorkers)
	tasks := make([]func(ctx context.Context) error, 0, len(recipients))
	for id, pk := range recipients {
		id, pk := id, pk
		tasks = append(tasks, func(ctx context.Context) error {
			share := tw.poly.ShareFor(id)
			cipher := keygen.EncryptShare(tw.sk, pk, share, nonceSeed(id))
			mu.Lock()
			ciphers[id] = cipher
			mu.Unlock()
			return nil
		})
	}
	// Errors are impossible here (no fallible step), so the pool's return
	// value is intentionally discarded.
	_ = pool.Run(context.Background(), tasks)

	return ciphers
}
