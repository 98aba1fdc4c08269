// Package gateway is the only way the client reads and mutates the state
// owned by the contract. Reads are typed and side effect free. Writes are
// validated locally, have their sensitive fields sealed, take the single
// signing slot of the wallet and then resolve asynchronously to Confirmed
// or Failed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/storage"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/wallet"
	"github.com/fundshadow/fundshadow-client/web3"
)

// DefaultPollInterval is how often pending transactions are checked.
const DefaultPollInterval = 2 * time.Second

// Gateway is the typed interface to the contract.
type Gateway struct {
	backend      Backend
	wallet       wallet.Wallet
	encoder      codec.Encoder
	storage      *storage.Storage
	pollInterval time.Duration
	now          func() time.Time

	// signing is the single signature slot of the wallet.
	signing chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu  sync.Mutex
	txs map[common.Hash]*PendingTx
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithStorage persists the pending writes so they can be resumed.
func WithStorage(st *storage.Storage) Option {
	return func(g *Gateway) { g.storage = st }
}

// WithPollInterval sets how often pending transactions are checked.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// WithClock sets the clock used to check campaign deadlines.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New returns a gateway over backend, signing with w and sealing amounts
// with enc.
func New(backend Backend, w wallet.Wallet, enc codec.Encoder, opts ...Option) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		backend:      backend,
		wallet:       w,
		encoder:      enc,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		signing:      make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		txs:          make(map[common.Hash]*PendingTx),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Close stops watching the pending transactions. They keep resolving on the
// network and are picked up again by Resume.
func (g *Gateway) Close() {
	g.cancel()
	g.wg.Wait()
}

// Wallet returns the wallet writes are signed with.
func (g *Gateway) Wallet() wallet.Wallet {
	return g.wallet
}

// Now returns the current time of the gateway clock.
func (g *Gateway) Now() time.Time {
	return g.now()
}

func read[T any](op string, fn func() (T, error)) (T, error) {
	v, err := fn()
	readCounter(op, err).Inc()
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		log.Debugw("read failed", "op", op, "err", err)
	}
	return v, err
}

// Campaign returns the campaign with the given id.
func (g *Gateway) Campaign(ctx context.Context, id uint64) (*types.Campaign, error) {
	return read("campaign", func() (*types.Campaign, error) { return g.backend.Campaign(ctx, id) })
}

// CampaignTotals returns the aggregate funding figures of a campaign.
func (g *Gateway) CampaignTotals(ctx context.Context, id uint64) (*types.CampaignTotals, error) {
	return read("campaign_totals", func() (*types.CampaignTotals, error) { return g.backend.CampaignTotals(ctx, id) })
}

// Donation returns the donation with the given id.
func (g *Gateway) Donation(ctx context.Context, id uint64) (*types.Donation, error) {
	return read("donation", func() (*types.Donation, error) { return g.backend.Donation(ctx, id) })
}

// DonorProfile returns the profile of a donor.
func (g *Gateway) DonorProfile(ctx context.Context, donor common.Address) (*types.DonorProfile, error) {
	return read("donor_profile", func() (*types.DonorProfile, error) { return g.backend.DonorProfile(ctx, donor) })
}

// DonorStats returns the statistics of a donor.
func (g *Gateway) DonorStats(ctx context.Context, donor common.Address) (*types.DonorStats, error) {
	return read("donor_stats", func() (*types.DonorStats, error) { return g.backend.DonorStats(ctx, donor) })
}

// CampaignDonations lists the donation ids of a campaign.
func (g *Gateway) CampaignDonations(ctx context.Context, campaignID uint64) ([]uint64, error) {
	return read("campaign_donations", func() ([]uint64, error) { return g.backend.CampaignDonations(ctx, campaignID) })
}

// DonorCampaigns lists the campaign ids a donor donated to.
func (g *Gateway) DonorCampaigns(ctx context.Context, donor common.Address) ([]uint64, error) {
	return read("donor_campaigns", func() ([]uint64, error) { return g.backend.DonorCampaigns(ctx, donor) })
}

// CampaignReports lists the impact report ids of a campaign.
func (g *Gateway) CampaignReports(ctx context.Context, campaignID uint64) ([]uint64, error) {
	return read("campaign_reports", func() ([]uint64, error) { return g.backend.CampaignReports(ctx, campaignID) })
}

// ImpactReport returns the impact report with the given id.
func (g *Gateway) ImpactReport(ctx context.Context, id uint64) (*types.ImpactReport, error) {
	return read("impact_report", func() (*types.ImpactReport, error) { return g.backend.ImpactReport(ctx, id) })
}

// VoteStats returns the vote aggregates of a campaign.
func (g *Gateway) VoteStats(ctx context.Context, campaignID uint64) (*types.VoteStats, error) {
	return read("vote_stats", func() (*types.VoteStats, error) { return g.backend.VoteStats(ctx, campaignID) })
}

// HasVoted reports whether voter has a vote recorded on the campaign.
func (g *Gateway) HasVoted(ctx context.Context, campaignID uint64, voter common.Address) (bool, error) {
	return read("has_voted", func() (bool, error) { return g.backend.HasVoted(ctx, campaignID, voter) })
}

// Tx returns the handle of a write submitted or resumed by this gateway.
func (g *Gateway) Tx(hash common.Hash) (*PendingTx, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tx, ok := g.txs[hash]
	return tx, ok
}

// TxOutcome returns the current state of any transaction: the handle state
// if the gateway tracks it, the receipt otherwise.
func (g *Gateway) TxOutcome(ctx context.Context, hash common.Hash) (*Outcome, error) {
	if tx, ok := g.Tx(hash); ok {
		if o, ok := tx.Outcome(); ok {
			return o, nil
		}
		return &Outcome{Phase: PhasePending, Hash: hash}, nil
	}
	res, err := g.backend.TxResult(ctx, hash)
	if errors.Is(err, web3.ErrTxPending) {
		return &Outcome{Phase: PhasePending, Hash: hash}, nil
	}
	if err != nil {
		return nil, err
	}
	return outcomeFromResult("", res), nil
}

// Track watches a transaction submitted earlier, for instance by a previous
// run of the client, and returns its handle.
func (g *Gateway) Track(hash common.Hash, op string, campaignID uint64) *PendingTx {
	return g.track(&storage.PendingWrite{
		Hash:       hash,
		Op:         op,
		CampaignID: campaignID,
		Submitted:  g.now(),
	}, false)
}

// Resume watches again every write persisted as pending.
func (g *Gateway) Resume() ([]*PendingTx, error) {
	if g.storage == nil {
		return nil, nil
	}
	writes, err := g.storage.PendingWrites()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending writes: %w", err)
	}
	txs := make([]*PendingTx, 0, len(writes))
	for _, w := range writes {
		txs = append(txs, g.track(w, false))
	}
	if len(txs) > 0 {
		log.Infow("resumed pending writes", "count", len(txs))
	}
	return txs, nil
}

func (g *Gateway) track(w *storage.PendingWrite, persist bool) *PendingTx {
	g.mu.Lock()
	if tx, ok := g.txs[w.Hash]; ok {
		g.mu.Unlock()
		return tx
	}
	tx := newPendingTx(w.ID, w.Op, w.Hash, w.CampaignID, w.Submitted)
	g.txs[w.Hash] = tx
	g.mu.Unlock()

	if persist && g.storage != nil {
		if err := g.storage.AddPendingWrite(w); err != nil {
			log.Warnw("failed to persist pending write", "hash", w.Hash.Hex(), "err", err)
		}
	}
	pendingWrites.Inc()
	g.wg.Add(1)
	go g.watch(tx)
	return tx
}

// watch polls the receipt of tx until it is mined or the gateway closed.
func (g *Gateway) watch(tx *PendingTx) {
	defer g.wg.Done()
	defer pendingWrites.Dec()
	var res *web3.TxResult
	err := backoff.Retry(func() error {
		r, err := g.backend.TxResult(g.ctx, tx.Hash)
		if err != nil {
			if !errors.Is(err, web3.ErrTxPending) {
				log.Debugw("failed to get transaction result, retrying", "hash", tx.Hash.Hex(), "err", err)
			}
			return err
		}
		res = r
		return nil
	}, backoff.WithContext(backoff.NewConstantBackOff(g.pollInterval), g.ctx))
	if err != nil {
		log.Debugw("stopped watching transaction", "hash", tx.Hash.Hex(), "op", tx.Op)
		return
	}
	outcome := outcomeFromResult(tx.Op, res)
	if !tx.resolve(outcome) {
		return
	}
	if g.storage != nil {
		if err := g.storage.DeletePendingWrite(tx.Hash); err != nil {
			log.Warnw("failed to delete pending write", "hash", tx.Hash.Hex(), "err", err)
		}
	}
	resolvedCounter(tx.Op, outcome.Phase).Inc()
	if outcome.Phase == PhaseConfirmed {
		log.Infow("transaction confirmed",
			"op", tx.Op,
			"hash", tx.Hash.Hex(),
			"block", outcome.BlockNumber,
			"createdID", outcome.CreatedID)
		return
	}
	log.Warnw("transaction failed", "op", tx.Op, "hash", tx.Hash.Hex(), "err", outcome.Err)
}

func outcomeFromResult(op string, res *web3.TxResult) *Outcome {
	o := &Outcome{
		Hash:        res.Hash,
		BlockNumber: res.BlockNumber,
	}
	if res.Success {
		o.Phase = PhaseConfirmed
		o.CreatedID, o.HasCreatedID = res.CreatedID, res.HasCreatedID
		return o
	}
	o.Phase = PhaseFailed
	if op == "" {
		op = "transaction"
	}
	o.Err = &types.WriteRejectedError{Op: op, Reason: res.Reason, Detail: res.Detail}
	return o
}
