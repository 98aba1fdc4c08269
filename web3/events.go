package web3

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
)

// eventsQuery returns the filter matching every known event of the
// contract from block onwards.
func (c *Contracts) eventsQuery(from uint64) ethereum.FilterQuery {
	ids := make([]common.Hash, 0, len(parsedABI.Events))
	for _, name := range []string{EventCampaignCreated, EventDonationMade, EventImpactReported, EventVoteCast} {
		ids = append(ids, parsedABI.Events[name].ID)
	}
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{c.Address},
		Topics:    [][]common.Hash{ids},
	}
}

// decodeEvent decodes a contract log into a ContractEvent.
func decodeEvent(l *ethtypes.Log) (*types.ContractEvent, error) {
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("log without topics")
	}
	event, err := parsedABI.EventByID(l.Topics[0])
	if err != nil {
		return nil, err
	}
	topic := func(i int) (common.Hash, error) {
		if i >= len(l.Topics) {
			return common.Hash{}, fmt.Errorf("%s: missing topic %d", event.Name, i)
		}
		return l.Topics[i], nil
	}
	ev := &types.ContractEvent{
		Kind:        types.EventKind(event.Name),
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}
	var t1, t2, t3 common.Hash
	if t1, err = topic(1); err != nil {
		return nil, err
	}
	switch event.Name {
	case EventVoteCast:
		ev.CampaignID = new(big.Int).SetBytes(t1.Bytes()).Uint64()
		return ev, nil
	case EventCampaignCreated:
		if t2, err = topic(2); err != nil {
			return nil, err
		}
		ev.ID = new(big.Int).SetBytes(t1.Bytes()).Uint64()
		ev.CampaignID = ev.ID
		ev.Account = common.BytesToAddress(t2.Bytes())
		values, err := parsedABI.Unpack(event.Name, l.Data)
		if err == nil && len(values) == 1 {
			ev.Name, _ = values[0].(string)
		}
		return ev, nil
	default:
		if t2, err = topic(2); err != nil {
			return nil, err
		}
		if t3, err = topic(3); err != nil {
			return nil, err
		}
		ev.ID = new(big.Int).SetBytes(t1.Bytes()).Uint64()
		ev.CampaignID = new(big.Int).SetBytes(t2.Bytes()).Uint64()
		ev.Account = common.BytesToAddress(t3.Bytes())
		return ev, nil
	}
}

// seen reports whether the log was already delivered, marking it otherwise.
func (c *Contracts) seen(l *ethtypes.Log) bool {
	c.monitorMu.Lock()
	defer c.monitorMu.Unlock()
	key := fmt.Sprintf("%x:%d", l.TxHash, l.Index)
	if _, exists := c.knownEvents[key]; exists {
		return true
	}
	c.knownEvents[key] = struct{}{}
	if l.BlockNumber > c.lastWatchBlock {
		c.lastWatchBlock = l.BlockNumber
	}
	return false
}

func (c *Contracts) watchFrom() uint64 {
	c.monitorMu.Lock()
	defer c.monitorMu.Unlock()
	return c.lastWatchBlock
}

// SetStartBlock sets the first block the monitors look at.
func (c *Contracts) SetStartBlock(block uint64) {
	c.monitorMu.Lock()
	defer c.monitorMu.Unlock()
	c.lastWatchBlock = block
}

// MonitorEventsByPolling filters the contract logs every interval and
// sends the new events to the returned channel, which is closed when ctx is
// done. Delivery is best effort.
func (c *Contracts) MonitorEventsByPolling(ctx context.Context, interval time.Duration) (<-chan *types.ContractEvent, error) {
	ch := make(chan *types.ContractEvent)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Warnw("exiting contract events monitor")
				return
			case <-ticker.C:
				ctxQuery, cancel := context.WithTimeout(ctx, web3QueryTimeout)
				logs, err := c.cli.FilterLogs(ctxQuery, c.eventsQuery(c.watchFrom()))
				cancel()
				if err != nil {
					log.Warnw("failed to filter contract events, retrying", "err", err)
					continue
				}
				for i := range logs {
					if c.seen(&logs[i]) {
						continue
					}
					ev, err := decodeEvent(&logs[i])
					if err != nil {
						log.Warnw("failed to decode contract event", "err", err, "tx", logs[i].TxHash.Hex())
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch, nil
}

// MonitorEventsBySubscription subscribes to the contract logs. It requires
// a websocket endpoint. The returned channel is closed when ctx is done or
// the subscription fails.
func (c *Contracts) MonitorEventsBySubscription(ctx context.Context) (<-chan *types.ContractEvent, error) {
	logs := make(chan ethtypes.Log)
	sub, err := c.cli.SubscribeFilterLogs(ctx, c.eventsQuery(c.watchFrom()), logs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to contract events: %w", err)
	}
	ch := make(chan *types.ContractEvent)
	go func() {
		defer close(ch)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				log.Warnw("exiting contract events subscription")
				return
			case err := <-sub.Err():
				log.Errorw(err, "contract events subscription failed")
				return
			case l := <-logs:
				if c.seen(&l) {
					continue
				}
				ev, err := decodeEvent(&l)
				if err != nil {
					log.Warnw("failed to decode contract event", "err", err, "tx", l.TxHash.Hex())
					continue
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
