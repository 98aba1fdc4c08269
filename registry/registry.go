// Package registry projects the contract state into the records the client
// displays. Every read goes to the contract. Several reads run concurrently
// and their results are merged independently, so a slow or failing record
// never holds back the others.
package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the number of reads a registry runs at once.
	DefaultConcurrency = 8
	// DefaultRetryTime bounds the time spent retrying a transient read.
	DefaultRetryTime = 10 * time.Second
)

// ErrInconsistent is returned for records violating the invariants of the
// contract, such as a campaign ending before it starts.
var ErrInconsistent = errors.New("inconsistent record")

// Reader is the read side of the contract gateway.
type Reader interface {
	Campaign(ctx context.Context, id uint64) (*types.Campaign, error)
	CampaignTotals(ctx context.Context, id uint64) (*types.CampaignTotals, error)
	VoteStats(ctx context.Context, campaignID uint64) (*types.VoteStats, error)
	Donation(ctx context.Context, id uint64) (*types.Donation, error)
	DonorProfile(ctx context.Context, donor common.Address) (*types.DonorProfile, error)
	DonorStats(ctx context.Context, donor common.Address) (*types.DonorStats, error)
	CampaignDonations(ctx context.Context, campaignID uint64) ([]uint64, error)
	DonorCampaigns(ctx context.Context, donor common.Address) ([]uint64, error)
	CampaignReports(ctx context.Context, campaignID uint64) ([]uint64, error)
	ImpactReport(ctx context.Context, id uint64) (*types.ImpactReport, error)
}

// Result is the outcome of the read of one record of a batch.
type Result[T any] struct {
	ID     uint64
	Record T
	Err    error
}

// Registry is the campaign view model. It remembers the ids of the
// campaigns it has seen, from reads or contract events, so they can be
// listed, and notifies subscribers when one of them changes.
type Registry struct {
	reader      Reader
	concurrency int
	retryTime   time.Duration

	mu       sync.RWMutex
	known    map[uint64]struct{}
	subs     map[int]chan uint64
	nextSubs int
}

// Option configures a Registry.
type Option func(*Registry)

// WithConcurrency sets the number of reads run at once.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRetryTime bounds the time spent retrying a transient read. Zero
// disables retries.
func WithRetryTime(d time.Duration) Option {
	return func(r *Registry) { r.retryTime = d }
}

// New returns a registry reading through reader.
func New(reader Reader, opts ...Option) *Registry {
	r := &Registry{
		reader:      reader,
		concurrency: DefaultConcurrency,
		retryTime:   DefaultRetryTime,
		known:       make(map[uint64]struct{}),
		subs:        make(map[int]chan uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// retry runs fn again with exponential backoff while it fails with a
// transient read error. Any other error is returned at once.
func retry[T any](ctx context.Context, r *Registry, op string, fn func(context.Context) (T, error)) (T, error) {
	var v T
	if r.retryTime <= 0 {
		return fn(ctx)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = r.retryTime
	err := backoff.RetryNotify(func() error {
		res, err := fn(ctx)
		if err != nil {
			if types.IsRetryableRead(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		v = res
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		log.Debugw("transient read failure, retrying", "op", op, "wait", wait.String(), "err", err)
	})
	return v, err
}

// Campaign reads a campaign with its funding and vote aggregates. The
// aggregates are optional: if their reads fail the campaign is returned
// without them.
func (r *Registry) Campaign(ctx context.Context, id uint64) (*types.Campaign, error) {
	var (
		campaign *types.Campaign
		totals   *types.CampaignTotals
		votes    *types.VoteStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		campaign, err = retry(gctx, r, "campaign", func(ctx context.Context) (*types.Campaign, error) {
			return r.reader.Campaign(ctx, id)
		})
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = retry(gctx, r, "campaign totals", func(ctx context.Context) (*types.CampaignTotals, error) {
			return r.reader.CampaignTotals(ctx, id)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debugw("campaign totals not available", "id", id, "err", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		votes, err = retry(gctx, r, "vote stats", func(ctx context.Context) (*types.VoteStats, error) {
			return r.reader.VoteStats(ctx, id)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debugw("vote stats not available", "id", id, "err", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !campaign.StartTime.IsZero() && !campaign.EndTime.After(campaign.StartTime) {
		return nil, fmt.Errorf("campaign %d ends at %s before starting at %s: %w",
			id, campaign.EndTime, campaign.StartTime, ErrInconsistent)
	}
	campaign.Totals, campaign.Votes = totals, votes
	r.remember(id)
	return campaign, nil
}

// Stream reads the campaigns concurrently and sends each result as soon as
// it is available. The channel is closed after the last result. A failure
// is reported in its own result and does not affect the other reads.
func (r *Registry) Stream(ctx context.Context, ids []uint64) <-chan Result[*types.Campaign] {
	out := make(chan Result[*types.Campaign], len(ids))
	go func() {
		defer close(out)
		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for _, id := range ids {
			g.Go(func() error {
				c, err := r.Campaign(ctx, id)
				out <- Result[*types.Campaign]{ID: id, Record: c, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return out
}

// Campaigns reads the campaigns concurrently. The results are in the order
// of ids.
func (r *Registry) Campaigns(ctx context.Context, ids []uint64) []Result[*types.Campaign] {
	return collect(ids, r.Stream(ctx, ids))
}

// Known returns the campaigns seen so far, in id order, read again from the
// contract.
func (r *Registry) Known(ctx context.Context) []Result[*types.Campaign] {
	return r.Campaigns(ctx, r.KnownIDs())
}

func collect[T any](ids []uint64, results <-chan Result[T]) []Result[T] {
	index := make(map[uint64][]int, len(ids))
	for i, id := range ids {
		index[id] = append(index[id], i)
	}
	out := make([]Result[T], len(ids))
	for res := range results {
		positions := index[res.ID]
		out[positions[0]] = res
		index[res.ID] = positions[1:]
	}
	return out
}

// Donation reads a donation.
func (r *Registry) Donation(ctx context.Context, id uint64) (*types.Donation, error) {
	return retry(ctx, r, "donation", func(ctx context.Context) (*types.Donation, error) {
		return r.reader.Donation(ctx, id)
	})
}

// CampaignDonations reads every donation of a campaign.
func (r *Registry) CampaignDonations(ctx context.Context, campaignID uint64) ([]Result[*types.Donation], error) {
	ids, err := retry(ctx, r, "campaign donations", func(ctx context.Context) ([]uint64, error) {
		return r.reader.CampaignDonations(ctx, campaignID)
	})
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, r, ids, r.Donation), nil
}

// ImpactReports reads the impact reports of a campaign, ordered by
// submission time. Reports that could not be read are returned last.
func (r *Registry) ImpactReports(ctx context.Context, campaignID uint64) ([]Result[*types.ImpactReport], error) {
	ids, err := retry(ctx, r, "campaign reports", func(ctx context.Context) ([]uint64, error) {
		return r.reader.CampaignReports(ctx, campaignID)
	})
	if err != nil {
		return nil, err
	}
	reports := fanOut(ctx, r, ids, func(ctx context.Context, id uint64) (*types.ImpactReport, error) {
		return retry(ctx, r, "impact report", func(ctx context.Context) (*types.ImpactReport, error) {
			return r.reader.ImpactReport(ctx, id)
		})
	})
	slices.SortStableFunc(reports, func(a, b Result[*types.ImpactReport]) int {
		switch {
		case a.Err != nil || b.Err != nil:
			return cmp.Compare(errRank(a.Err), errRank(b.Err))
		case !a.Record.Timestamp.Equal(b.Record.Timestamp):
			return a.Record.Timestamp.Compare(b.Record.Timestamp)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return reports, nil
}

func errRank(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

// DonorProfile reads the profile of a donor with its statistics. The
// statistics are optional.
func (r *Registry) DonorProfile(ctx context.Context, donor common.Address) (*types.DonorProfile, error) {
	profile, err := retry(ctx, r, "donor profile", func(ctx context.Context) (*types.DonorProfile, error) {
		return r.reader.DonorProfile(ctx, donor)
	})
	if err != nil {
		return nil, err
	}
	stats, err := retry(ctx, r, "donor stats", func(ctx context.Context) (*types.DonorStats, error) {
		return r.reader.DonorStats(ctx, donor)
	})
	if err != nil {
		log.Debugw("donor stats not available", "donor", donor.Hex(), "err", err)
	} else {
		profile.Stats = stats
	}
	return profile, nil
}

// DonorCampaigns reads the campaigns a donor donated to.
func (r *Registry) DonorCampaigns(ctx context.Context, donor common.Address) ([]Result[*types.Campaign], error) {
	ids, err := retry(ctx, r, "donor campaigns", func(ctx context.Context) ([]uint64, error) {
		return r.reader.DonorCampaigns(ctx, donor)
	})
	if err != nil {
		return nil, err
	}
	return r.Campaigns(ctx, ids), nil
}

func fanOut[T any](ctx context.Context, r *Registry, ids []uint64, read func(context.Context, uint64) (T, error)) []Result[T] {
	out := make([]Result[T], len(ids))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			v, err := read(ctx, id)
			out[i] = Result[T]{ID: id, Record: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
