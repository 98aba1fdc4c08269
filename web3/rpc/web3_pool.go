// Package rpc balances the contract calls of the client over a set of web3
// endpoints grouped by chain ID. Endpoints that fail are skipped until every
// endpoint of the chain has failed, then all of them are tried again.
package rpc

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fundshadow/fundshadow-client/log"
)

const (
	// DefaultMaxWeb3ClientRetries is the number of endpoints a call is tried
	// on before giving up, and the number of dial attempts per endpoint.
	DefaultMaxWeb3ClientRetries = 5
	// dialTimeout bounds the dial and chain ID query of a new endpoint.
	dialTimeout = 10 * time.Second
)

// Web3Pool holds the endpoints known to the client, one round-robin
// iterator per chain ID.
type Web3Pool struct {
	mu        sync.RWMutex
	endpoints map[uint64]*Web3Iterator
}

// NewWeb3Pool returns an empty pool.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{endpoints: make(map[uint64]*Web3Iterator)}
}

// AddEndpoint dials uri, asks for its chain ID and adds it to the pool. It
// returns the chain ID of the endpoint.
func (p *Web3Pool) AddEndpoint(uri string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	client, err := connect(ctx, uri)
	if err != nil {
		return 0, err
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return 0, fmt.Errorf("failed to get chain id from %s: %w", uri, err)
	}
	endpoint := &Web3Endpoint{
		ChainID:       id.Uint64(),
		URI:           uri,
		Subscriptions: supportsSubscriptions(uri),
		client:        client,
	}
	p.addEndpoint(endpoint)
	log.Infow("web3 endpoint added",
		"chainID", endpoint.ChainID,
		"subscriptions", endpoint.Subscriptions)
	return endpoint.ChainID, nil
}

func (p *Web3Pool) addEndpoint(endpoint *Web3Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if it, ok := p.endpoints[endpoint.ChainID]; ok {
		it.Add(endpoint)
		return
	}
	p.endpoints[endpoint.ChainID] = NewWeb3Iterator(endpoint)
}

// DelEndpoint disables uri on every chain it was added to.
func (p *Web3Pool) DelEndpoint(uri string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, it := range p.endpoints {
		it.Disable(uri)
	}
}

// Endpoint returns the next available endpoint of chainID.
func (p *Web3Pool) Endpoint(chainID uint64) (*Web3Endpoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	it, ok := p.endpoints[chainID]
	if !ok {
		return nil, fmt.Errorf("no endpoint found for chainID %d", chainID)
	}
	return it.Next()
}

// SubscriptionEndpoint returns an available endpoint of chainID able to
// serve log subscriptions.
func (p *Web3Pool) SubscriptionEndpoint(chainID uint64) (*Web3Endpoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	it, ok := p.endpoints[chainID]
	if !ok {
		return nil, fmt.Errorf("no endpoint found for chainID %d", chainID)
	}
	endpoint := it.Find(func(e *Web3Endpoint) bool { return e.Subscriptions })
	if endpoint == nil {
		return nil, fmt.Errorf("no endpoint of chainID %d supports subscriptions", chainID)
	}
	return endpoint, nil
}

// DisableEndpoint marks uri of chainID as failing.
func (p *Web3Pool) DisableEndpoint(chainID uint64, uri string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if it, ok := p.endpoints[chainID]; ok {
		it.Disable(uri)
	}
}

// NumberOfEndpoints returns how many endpoints chainID has, counting only
// the available ones if onlyAvailable is set.
func (p *Web3Pool) NumberOfEndpoints(chainID uint64, onlyAvailable bool) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	it, ok := p.endpoints[chainID]
	if !ok {
		return 0
	}
	if onlyAvailable {
		return it.Available()
	}
	return it.Available() + it.Disabled()
}

// Client returns a contract backend bound to chainID.
func (p *Web3Pool) Client(chainID uint64) (*Client, error) {
	if _, err := p.Endpoint(chainID); err != nil {
		return nil, err
	}
	return &Client{w3p: p, chainID: chainID, maxRetries: DefaultMaxWeb3ClientRetries}, nil
}

func connect(ctx context.Context, uri string) (*ethclient.Client, error) {
	var err error
	for i := 0; i < DefaultMaxWeb3ClientRetries; i++ {
		var client *ethclient.Client
		if client, err = ethclient.DialContext(ctx, uri); err == nil {
			return client, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("failed to dial %s: %w", uri, err)
}

// supportsSubscriptions reports whether uri uses a transport with server
// push. Plain http endpoints can only be polled.
func supportsSubscriptions(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "ws", "wss", "":
		// an empty scheme is an IPC socket path
		return true
	}
	return false
}
