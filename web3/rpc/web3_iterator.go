package rpc

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Web3Endpoint is a dialed web3 provider.
type Web3Endpoint struct {
	ChainID       uint64 `json:"chainId"`
	URI           string `json:"uri"`
	Subscriptions bool   `json:"subscriptions"`
	client        *ethclient.Client
}

// Web3Iterator struct is a round-robin iterator over the endpoints of a
// single chainID. Failing endpoints are disabled and not returned again
// until every endpoint fails, in which case all of them are enabled again.
type Web3Iterator struct {
	mu        sync.Mutex
	available []*Web3Endpoint
	disabled  []*Web3Endpoint
	next      int
}

// NewWeb3Iterator returns a new iterator over the endpoints provided.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{available: endpoints}
}

// Add adds the endpoints provided to the available list.
func (w *Web3Iterator) Add(endpoints ...*Web3Endpoint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.available = append(w.available, endpoints...)
}

// Next returns the next available endpoint. If every endpoint has been
// disabled, they are all made available again before choosing.
func (w *Web3Iterator) Next() (*Web3Endpoint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.available) == 0 {
		if len(w.disabled) == 0 {
			return nil, fmt.Errorf("no endpoints in the pool")
		}
		w.available, w.disabled = w.disabled, nil
		w.next = 0
	}
	if w.next >= len(w.available) {
		w.next = 0
	}
	endpoint := w.available[w.next]
	w.next++
	return endpoint, nil
}

// Disable moves the endpoint with the URI provided to the disabled list.
func (w *Web3Iterator) Disable(uri string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, endpoint := range w.available {
		if endpoint.URI == uri {
			w.available = append(w.available[:i], w.available[i+1:]...)
			w.disabled = append(w.disabled, endpoint)
			return
		}
	}
}

// Find returns the first available endpoint for which match is true, or
// nil.
func (w *Web3Iterator) Find(match func(*Web3Endpoint) bool) *Web3Endpoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, endpoint := range w.available {
		if match(endpoint) {
			return endpoint
		}
	}
	return nil
}

// Available returns the number of available endpoints.
func (w *Web3Iterator) Available() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.available)
}

// Disabled returns the number of disabled endpoints.
func (w *Web3Iterator) Disabled() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.disabled)
}
