package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/storage"
	"github.com/fundshadow/fundshadow-client/types"
)

// DefaultEventInterval is the polling interval used when none is given.
const DefaultEventInterval = 5 * time.Second

// EventMonitor represents a service that follows the contract events and
// feeds them to a handler, usually the campaign registry. The last block
// seen and the ids of the created campaigns are stored, so a restarted
// client does not scan the chain from the beginning to find them.
type EventMonitor struct {
	source    EventSource
	handler   EventHandler
	storage   *storage.Storage
	interval  time.Duration
	subscribe bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastBlock uint64
}

// NewEventMonitor creates a new EventMonitor service. storage may be nil,
// in which case monitoring starts from the source default block on every
// start. With subscribe, a log subscription is tried first and polling is
// used if it fails.
func NewEventMonitor(source EventSource, handler EventHandler, stg *storage.Storage, interval time.Duration, subscribe bool) *EventMonitor {
	if interval <= 0 {
		interval = DefaultEventInterval
	}
	return &EventMonitor{
		source:    source,
		handler:   handler,
		storage:   stg,
		interval:  interval,
		subscribe: subscribe,
	}
}

// Start begins monitoring contract events. It returns an error if the
// service is already running or if it fails to start monitoring.
func (em *EventMonitor) Start(ctx context.Context) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if em.storage != nil {
		last, err := em.storage.LastBlock()
		switch {
		case err == nil && last > 0:
			em.lastBlock = last
			em.source.SetStartBlock(last)
			log.Infow("resuming contract events", "block", last)
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("failed to load last block: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := em.open(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start event monitoring: %w", err)
	}
	em.cancel = cancel
	em.done = make(chan struct{})
	go em.monitorEvents(ctx, events, em.done)
	return nil
}

// Stop halts the monitoring service and waits for it to finish.
func (em *EventMonitor) Stop() {
	em.mu.Lock()
	cancel, done := em.cancel, em.done
	em.cancel, em.done = nil, nil
	em.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// LastBlock returns the highest block an event was seen at.
func (em *EventMonitor) LastBlock() uint64 {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.lastBlock
}

func (em *EventMonitor) open(ctx context.Context) (<-chan *types.ContractEvent, error) {
	if em.subscribe {
		events, err := em.source.MonitorEventsBySubscription(ctx)
		if err == nil {
			return events, nil
		}
		log.Warnw("event subscription failed, falling back to polling", "error", err.Error())
	}
	return em.source.MonitorEventsByPolling(ctx, em.interval)
}

func (em *EventMonitor) monitorEvents(ctx context.Context, events <-chan *types.ContractEvent, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				// the subscription ended, continue by polling
				log.Warnw("event stream closed, reopening by polling")
				var err error
				if events, err = em.source.MonitorEventsByPolling(ctx, em.interval); err != nil {
					log.Errorw(err, "failed to restart event monitoring")
					return
				}
				continue
			}
			log.Debugw("contract event", "kind", string(e.Kind), "campaignID", e.CampaignID, "block", e.BlockNumber)
			em.handler.HandleEvent(e)
			em.record(e)
			em.advance(e.BlockNumber)
		}
	}
}

// record stores the id of every created campaign.
func (em *EventMonitor) record(e *types.ContractEvent) {
	if em.storage == nil || e.Kind != types.EventCampaignCreated {
		return
	}
	if err := em.storage.AddCampaignID(e.CampaignID); err != nil {
		log.Warnw("failed to store campaign id", "campaignID", e.CampaignID, "error", err.Error())
	}
}

// advance records block as the last seen one if it is newer.
func (em *EventMonitor) advance(block uint64) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if block <= em.lastBlock {
		return
	}
	em.lastBlock = block
	if em.storage == nil {
		return
	}
	if err := em.storage.SetLastBlock(block); err != nil {
		log.Warnw("failed to store last block", "block", block, "error", err.Error())
	}
}
