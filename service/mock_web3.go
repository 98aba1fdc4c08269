package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fundshadow/fundshadow-client/types"
)

// ErrNoSubscription is returned by MockEvents when subscriptions are
// disabled, as with an HTTP endpoint.
var ErrNoSubscription = errors.New("subscriptions not supported")

// MockEvents implements EventSource over events emitted by the tests.
type MockEvents struct {
	mu          sync.Mutex
	events      []*types.ContractEvent
	startBlock  uint64
	subscribe   bool
	subscribers []chan *types.ContractEvent
}

// NewMockEvents returns an event source without subscription support.
func NewMockEvents() *MockEvents {
	return &MockEvents{}
}

// EnableSubscriptions makes MonitorEventsBySubscription succeed.
func (m *MockEvents) EnableSubscriptions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribe = true
}

// Emit queues e for the pollers and sends it to the current subscribers.
func (m *MockEvents) Emit(e *types.ContractEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	for _, ch := range m.subscribers {
		ch <- e
	}
}

// CloseSubscriptions ends every subscription, as a dropped websocket would.
func (m *MockEvents) CloseSubscriptions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
}

// StartBlock returns the block set by SetStartBlock.
func (m *MockEvents) StartBlock() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startBlock
}

func (m *MockEvents) SetStartBlock(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startBlock = block
}

// MonitorEventsByPolling delivers every queued event at or after the start
// block once per poller, on each tick.
func (m *MockEvents) MonitorEventsByPolling(ctx context.Context, interval time.Duration) (<-chan *types.ContractEvent, error) {
	ch := make(chan *types.ContractEvent)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sent := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				pending := m.events[sent:]
				sent = len(m.events)
				from := m.startBlock
				m.mu.Unlock()
				for _, e := range pending {
					if e.BlockNumber < from {
						continue
					}
					select {
					case ch <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch, nil
}

// MonitorEventsBySubscription returns a channel receiving the events
// emitted from now on.
func (m *MockEvents) MonitorEventsBySubscription(ctx context.Context) (<-chan *types.ContractEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.subscribe {
		return nil, ErrNoSubscription
	}
	ch := make(chan *types.ContractEvent, 16)
	m.subscribers = append(m.subscribers, ch)
	return ch, nil
}
