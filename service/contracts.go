package service

import (
	"context"
	"time"

	"github.com/fundshadow/fundshadow-client/registry"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/web3"
)

// EventSource is the part of web3.Contracts the event monitor needs.
type EventSource interface {
	MonitorEventsByPolling(ctx context.Context, interval time.Duration) (<-chan *types.ContractEvent, error)
	MonitorEventsBySubscription(ctx context.Context) (<-chan *types.ContractEvent, error)
	SetStartBlock(block uint64)
}

// EventHandler consumes contract events, registry.Registry implements it.
type EventHandler interface {
	HandleEvent(e *types.ContractEvent)
}

var (
	_ EventSource  = (*web3.Contracts)(nil)
	_ EventSource  = (*MockEvents)(nil)
	_ EventHandler = (*registry.Registry)(nil)
)
