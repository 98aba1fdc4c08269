package registry

import (
	"context"
	"maps"
	"slices"

	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
)

// subscriptionBuffer is the number of pending refresh signals a subscriber
// can hold. Signals beyond it are dropped; subscribers re-read anyway.
const subscriptionBuffer = 64

func (r *Registry) remember(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[id] = struct{}{}
}

// Track adds campaign ids to the known set without reading them.
func (r *Registry) Track(ids ...uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.known[id] = struct{}{}
	}
}

// KnownIDs returns the ids of the campaigns seen so far, sorted.
func (r *Registry) KnownIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.known))
}

// Subscribe returns a channel receiving the id of every campaign that may
// have changed, and a function to stop the subscription.
func (r *Registry) Subscribe() (<-chan uint64, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSubs
	r.nextSubs++
	ch := make(chan uint64, subscriptionBuffer)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
}

// Invalidate signals that a campaign may have changed. It is a hint only:
// the next read goes to the contract regardless.
func (r *Registry) Invalidate(campaignID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[campaignID] = struct{}{}
	for _, ch := range r.subs {
		select {
		case ch <- campaignID:
		default:
		}
	}
}

// HandleEvent turns a contract notification into a refresh signal.
func (r *Registry) HandleEvent(e *types.ContractEvent) {
	if e == nil {
		return
	}
	log.Debugw("contract event",
		"kind", string(e.Kind),
		"campaignID", e.CampaignID,
		"block", e.BlockNumber)
	r.Invalidate(e.CampaignID)
}

// Follow feeds every event received from events into HandleEvent until the
// channel is closed or ctx is done.
func (r *Registry) Follow(ctx context.Context, events <-chan *types.ContractEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			r.HandleEvent(e)
		}
	}
}
