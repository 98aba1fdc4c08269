package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Phase is the observable state of a submitted write.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseConfirmed Phase = "confirmed"
	PhaseFailed    Phase = "failed"
)

// Outcome is the final state of a write. Err is a *types.WriteRejectedError
// when the phase is PhaseFailed.
type Outcome struct {
	Phase        Phase
	Hash         common.Hash
	BlockNumber  uint64
	CreatedID    uint64
	HasCreatedID bool
	Err          error
}

// PendingTx is the handle of a submitted write. A submitted write cannot be
// cancelled: it always ends Confirmed or Failed, whether someone waits for
// it or not.
type PendingTx struct {
	ID         string
	Op         string
	Hash       common.Hash
	CampaignID uint64
	Submitted  time.Time

	done    chan struct{}
	mu      sync.RWMutex
	outcome *Outcome
}

func newPendingTx(id, op string, hash common.Hash, campaignID uint64, submitted time.Time) *PendingTx {
	return &PendingTx{
		ID:         id,
		Op:         op,
		Hash:       hash,
		CampaignID: campaignID,
		Submitted:  submitted,
		done:       make(chan struct{}),
	}
}

// Phase returns the current phase of the write.
func (t *PendingTx) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.outcome == nil {
		return PhasePending
	}
	return t.outcome.Phase
}

// Done returns a channel closed once the write is resolved.
func (t *PendingTx) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the outcome of the write, if it is resolved.
func (t *PendingTx) Outcome() (*Outcome, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.outcome, t.outcome != nil
}

// Wait blocks until the write is resolved or ctx is done. Giving up waiting
// does not affect the write.
func (t *PendingTx) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-t.done:
		o, _ := t.Outcome()
		return o, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *PendingTx) resolve(o *Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcome != nil {
		return false
	}
	t.outcome = o
	close(t.done)
	return true
}
