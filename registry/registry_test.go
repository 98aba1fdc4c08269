package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/wallet"
)

var organizer = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

func newMock(c *qt.C, campaigns int) *gateway.MockBackend {
	mock, err := gateway.NewMockBackend()
	c.Assert(err, qt.IsNil)
	now := time.Now()
	for i := 0; i < campaigns; i++ {
		mock.AddCampaign(&types.Campaign{
			Name:      "campaign",
			Category:  types.CategoryEducation,
			Organizer: organizer,
			IsActive:  true,
			StartTime: now,
			EndTime:   now.Add(time.Hour),
		})
	}
	return mock
}

func TestCampaignAggregates(t *testing.T) {
	c := qt.New(t)
	mock := newMock(c, 1)
	mock.SetTotalVoters(1, 50)
	r := New(mock)

	campaign, err := r.Campaign(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(campaign.ID, qt.Equals, uint64(1))
	c.Assert(campaign.Votes, qt.DeepEquals, &types.VoteStats{TotalVoters: 50})
	c.Assert(campaign.Totals.CurrentAmount.String(), qt.Equals, "0")
	c.Assert(r.KnownIDs(), qt.DeepEquals, []uint64{1})

	_, err = r.Campaign(context.Background(), 9)
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)
}

func TestRetryTransientReads(t *testing.T) {
	c := qt.New(t)
	mock := newMock(c, 1)
	r := New(mock, WithRetryTime(5*time.Second))

	mock.FailReads(1, 2)
	campaign, err := r.Campaign(context.Background(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(campaign.ID, qt.Equals, uint64(1))

	// not found is never retried
	start := time.Now()
	_, err = r.Donation(context.Background(), 1)
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)
	c.Assert(time.Since(start) < time.Second, qt.IsTrue)
}

func TestIndependentReads(t *testing.T) {
	c := qt.New(t)
	mock := newMock(c, 2)
	r := New(mock, WithRetryTime(0))

	mock.FailReads(2, -1)
	results := r.Campaigns(context.Background(), []uint64{1, 2})
	c.Assert(results, qt.HasLen, 2)
	c.Assert(results[0].ID, qt.Equals, uint64(1))
	c.Assert(results[0].Err, qt.IsNil)
	c.Assert(results[0].Record.Name, qt.Equals, "campaign")
	c.Assert(results[1].ID, qt.Equals, uint64(2))
	c.Assert(types.IsRetryableRead(results[1].Err), qt.IsTrue)
	c.Assert(results[1].Record, qt.IsNil)

	mock.FailReads(2, 0)
	results = r.Campaigns(context.Background(), []uint64{2, 2, 1})
	for i, id := range []uint64{2, 2, 1} {
		c.Assert(results[i].ID, qt.Equals, id)
		c.Assert(results[i].Err, qt.IsNil)
	}
}

type slowReader struct {
	Reader
	release chan struct{}
}

func (s *slowReader) Campaign(ctx context.Context, id uint64) (*types.Campaign, error) {
	if id == 2 {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Reader.Campaign(ctx, id)
}

func TestStreamDoesNotWaitForSlowReads(t *testing.T) {
	c := qt.New(t)
	mock := newMock(c, 2)
	slow := &slowReader{Reader: mock, release: make(chan struct{})}
	r := New(slow)

	results := r.Stream(context.Background(), []uint64{2, 1})
	select {
	case res := <-results:
		c.Assert(res.ID, qt.Equals, uint64(1))
		c.Assert(res.Err, qt.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("timed out waiting for the fast read")
	}
	close(slow.release)
	res, ok := <-results
	c.Assert(ok, qt.IsTrue)
	c.Assert(res.ID, qt.Equals, uint64(2))
	_, ok = <-results
	c.Assert(ok, qt.IsFalse)
}

func TestDonationsAndReports(t *testing.T) {
	c := qt.New(t)
	mock := newMock(c, 1)
	w, err := wallet.GenerateKeyWallet()
	c.Assert(err, qt.IsNil)
	g := gateway.New(mock, w, mock.Codec(), gateway.WithPollInterval(10*time.Millisecond))
	defer g.Close()
	r := New(g)
	ctx := context.Background()

	for _, amount := range []uint64{10, 20} {
		tx, err := g.MakeDonation(ctx, &gateway.DonationRequest{CampaignID: 1, Amount: codec.FromUint64(amount)})
		c.Assert(err, qt.IsNil)
		o, err := tx.Wait(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(o.Phase, qt.Equals, gateway.PhaseConfirmed)
	}

	donations, err := r.CampaignDonations(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(donations, qt.HasLen, 2)
	for i, d := range donations {
		c.Assert(d.Err, qt.IsNil)
		c.Assert(d.Record.ID, qt.Equals, uint64(i+1))
		c.Assert(d.Record.Donor, qt.Equals, w.Address())
	}

	// a missing donation is not a zero donation
	d, err := r.Donation(ctx, 3)
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)
	c.Assert(d, qt.IsNil)

	profile, err := r.DonorProfile(ctx, w.Address())
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)
	c.Assert(profile, qt.IsNil)

	campaigns, err := r.DonorCampaigns(ctx, w.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(campaigns, qt.HasLen, 1)
	c.Assert(campaigns[0].Record.Totals.CurrentAmount.String(), qt.Equals, "30")

	reports, err := r.ImpactReports(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(reports, qt.HasLen, 0)
}

func TestInvalidate(t *testing.T) {
	c := qt.New(t)
	r := New(newMock(c, 0))

	updates, stop := r.Subscribe()
	r.HandleEvent(&types.ContractEvent{Kind: types.EventCampaignCreated, CampaignID: 4})
	r.HandleEvent(nil)
	c.Assert(<-updates, qt.Equals, uint64(4))
	c.Assert(r.KnownIDs(), qt.DeepEquals, []uint64{4})

	events := make(chan *types.ContractEvent, 2)
	events <- &types.ContractEvent{Kind: types.EventVoteCast, CampaignID: 2}
	close(events)
	r.Follow(context.Background(), events)
	c.Assert(<-updates, qt.Equals, uint64(2))
	c.Assert(r.KnownIDs(), qt.DeepEquals, []uint64{2, 4})

	stop()
	_, ok := <-updates
	c.Assert(ok, qt.IsFalse)
	// a stopped subscription is not signalled again
	r.Invalidate(4)
	stop()
}
