package gateway

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	qt "github.com/frankban/quicktest"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/storage"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/wallet"
	"go.vocdoni.io/dvote/db/metadb"
)

const testTimeout = 10 * time.Second

type testEnv struct {
	mock    *MockBackend
	wallet  *wallet.KeyWallet
	gateway *Gateway
}

func newTestEnv(c *qt.C, opts ...Option) *testEnv {
	mock, err := NewMockBackend()
	c.Assert(err, qt.IsNil)
	w, err := wallet.GenerateKeyWallet()
	c.Assert(err, qt.IsNil)
	opts = append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)
	g := New(mock, w, mock.Codec(), opts...)
	c.Cleanup(g.Close)
	return &testEnv{mock: mock, wallet: w, gateway: g}
}

func (e *testEnv) activeCampaign(c *qt.C) uint64 {
	target, err := e.mock.Codec().Encode(codec.FromUint64(1000))
	c.Assert(err, qt.IsNil)
	now := time.Now()
	return e.mock.AddCampaign(&types.Campaign{
		Name:      "Clean water",
		Category:  types.CategoryEnvironment,
		Organizer: e.wallet.Address(),
		IsActive:  true,
		StartTime: now,
		EndTime:   now.Add(48 * time.Hour),
		Target:    target,
	})
}

func wait(c *qt.C, tx *PendingTx) *Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	o, err := tx.Wait(ctx)
	c.Assert(err, qt.IsNil)
	return o
}

func TestCreateCampaign(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	tx, err := env.gateway.CreateCampaign(ctx, &CampaignRequest{
		Name:     "Clean water",
		Category: "Environment",
		Target:   codec.FromUint64(10000),
		Duration: 48 * time.Hour,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(tx.ID, qt.Not(qt.Equals), "")
	c.Assert(tx.Op, qt.Equals, OpCreateCampaign)

	o := wait(c, tx)
	c.Assert(o.Phase, qt.Equals, PhaseConfirmed)
	c.Assert(o.HasCreatedID, qt.IsTrue)
	c.Assert(o.CreatedID, qt.Equals, uint64(1))
	c.Assert(tx.Phase(), qt.Equals, PhaseConfirmed)

	campaign, err := env.gateway.Campaign(ctx, o.CreatedID)
	c.Assert(err, qt.IsNil)
	c.Assert(campaign.Name, qt.Equals, "Clean water")
	c.Assert(campaign.Category, qt.Equals, types.CategoryEnvironment)
	c.Assert(campaign.Organizer, qt.Equals, env.wallet.Address())
	c.Assert(campaign.EndTime.Sub(campaign.StartTime), qt.Equals, 48*time.Hour)
	c.Assert(env.mock.Codec().Verify(campaign.Target), qt.IsNil)

	// the handle is reachable by hash
	got, ok := env.gateway.Tx(tx.Hash)
	c.Assert(ok, qt.IsTrue)
	c.Assert(got, qt.Equals, tx)
}

func TestValidationBeforeSubmit(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	valid := func() *CampaignRequest {
		return &CampaignRequest{
			Name:     "Clean water",
			Category: "Environment",
			Target:   codec.FromUint64(10000),
			Duration: time.Hour,
		}
	}

	var verr *types.ValidationError

	req := valid()
	req.Category = "Unknown"
	_, err := env.gateway.CreateCampaign(ctx, req)
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(verr.Field, qt.Equals, "category")

	req = valid()
	req.Name = "  "
	_, err = env.gateway.CreateCampaign(ctx, req)
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(verr.Field, qt.Equals, "name")

	req = valid()
	req.Duration = 0
	_, err = env.gateway.CreateCampaign(ctx, req)
	c.Assert(errors.As(err, &verr), qt.IsTrue)

	req = valid()
	req.Target = nil
	_, err = env.gateway.CreateCampaign(ctx, req)
	c.Assert(errors.As(err, &verr), qt.IsTrue)

	// values outside the proof range fail encoding
	tooLarge, err := codec.NewPlaintext(new(big.Int).Lsh(big.NewInt(1), 64))
	c.Assert(err, qt.IsNil)
	req = valid()
	req.Target = tooLarge
	_, err = env.gateway.CreateCampaign(ctx, req)
	c.Assert(errors.Is(err, codec.ErrTooLarge), qt.IsTrue)

	// unknown campaigns never reach the network
	_, err = env.gateway.MakeDonation(ctx, &DonationRequest{CampaignID: 42, Amount: codec.FromUint64(1)})
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)

	_, err = env.gateway.CastVote(ctx, 42, types.VoteChoice(7))
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(verr.Field, qt.Equals, "choice")

	env.wallet.Disconnect()
	_, err = env.gateway.CreateCampaign(ctx, valid())
	c.Assert(errors.Is(err, types.ErrWalletDisconnected), qt.IsTrue)

	c.Assert(env.mock.Submitted(), qt.Equals, 0)
}

func TestInactiveCampaign(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	id := env.activeCampaign(c)
	env.mock.SetCampaignActive(id, false)
	_, err := env.gateway.MakeDonation(ctx, &DonationRequest{CampaignID: id, Amount: codec.FromUint64(5)})
	var verr *types.ValidationError
	c.Assert(errors.As(err, &verr), qt.IsTrue)

	// a campaign past its end time is inactive even if flagged active
	env.mock.SetCampaignActive(id, true)
	g := New(env.mock, env.wallet, env.mock.Codec(), WithClock(func() time.Time {
		return time.Now().Add(72 * time.Hour)
	}))
	defer g.Close()
	_, err = g.CastVote(ctx, id, types.VoteYes)
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(env.mock.Submitted(), qt.Equals, 0)
}

func TestDonationTotals(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	id := env.activeCampaign(c)

	for _, amount := range []uint64{600, 400} {
		tx, err := env.gateway.MakeDonation(ctx, &DonationRequest{
			CampaignID: id,
			Amount:     codec.FromUint64(amount),
			Message:    "good luck",
		})
		c.Assert(err, qt.IsNil)
		o := wait(c, tx)
		c.Assert(o.Phase, qt.Equals, PhaseConfirmed)
		c.Assert(o.HasCreatedID, qt.IsTrue)
	}

	totals, err := env.gateway.CampaignTotals(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(totals.CurrentAmount.Uint64(), qt.Equals, uint64(1000))
	c.Assert(totals.DonorCount, qt.Equals, uint64(1))
	c.Assert(totals.Funded, qt.IsTrue)

	ids, err := env.gateway.CampaignDonations(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []uint64{1, 2})

	donation, err := env.gateway.Donation(ctx, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(donation.Donor, qt.Equals, env.wallet.Address())
	c.Assert(donation.Message, qt.Equals, "good luck")

	stats, err := env.gateway.DonorStats(ctx, env.wallet.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(stats.DonationCount, qt.Equals, uint64(2))
	c.Assert(stats.TotalDonated.Uint64(), qt.Equals, uint64(1000))

	campaigns, err := env.gateway.DonorCampaigns(ctx, env.wallet.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(campaigns, qt.DeepEquals, []uint64{id})
}

func TestVoteRejections(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	id := env.activeCampaign(c)

	tx, err := env.gateway.CastVote(ctx, id, types.VoteYes)
	c.Assert(err, qt.IsNil)
	c.Assert(wait(c, tx).Phase, qt.Equals, PhaseConfirmed)

	voted, err := env.gateway.HasVoted(ctx, id, env.wallet.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)
	stats, err := env.gateway.VoteStats(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(stats.CurrentVotes, qt.Equals, uint64(1))

	// a second vote is refused before it is sent
	_, err = env.gateway.CastVote(ctx, id, types.VoteNo)
	reason, ok := types.RejectionReason(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(reason, qt.Equals, types.RejectDuplicateVote)
	c.Assert(types.IsTransientWrite(err), qt.IsFalse)

	// a write reverting once mined fails with the decoded reason
	other, err := wallet.GenerateKeyWallet()
	c.Assert(err, qt.IsNil)
	g := New(env.mock, other, env.mock.Codec(), WithPollInterval(10*time.Millisecond))
	defer g.Close()
	env.mock.FailNextMine("Invalid vote proof")
	tx, err = g.CastVote(ctx, id, types.VoteNo)
	c.Assert(err, qt.IsNil)
	o := wait(c, tx)
	c.Assert(o.Phase, qt.Equals, PhaseFailed)
	reason, ok = types.RejectionReason(o.Err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(reason, qt.Equals, types.RejectInvalidProof)
}

func TestWithdrawFunds(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	id := env.activeCampaign(c)

	other, err := wallet.GenerateKeyWallet()
	c.Assert(err, qt.IsNil)
	g := New(env.mock, other, env.mock.Codec())
	defer g.Close()
	_, err = g.WithdrawFunds(ctx, id)
	var verr *types.ValidationError
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(verr.Field, qt.Equals, "organizer")

	tx, err := env.gateway.WithdrawFunds(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(wait(c, tx).Phase, qt.Equals, PhaseConfirmed)

	_, err = env.gateway.WithdrawFunds(ctx, id)
	reason, ok := types.RejectionReason(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(reason, qt.Equals, types.RejectOther)
}

func TestImpactReportAndProfile(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	id := env.activeCampaign(c)

	tx, err := env.gateway.SubmitImpactReport(ctx, &ReportRequest{
		CampaignID:    id,
		Beneficiaries: codec.FromUint64(120),
		FundsUtilized: codec.FromUint64(900),
		ReportHash:    "QmReport",
		Description:   "wells built",
	})
	c.Assert(err, qt.IsNil)
	o := wait(c, tx)
	c.Assert(o.Phase, qt.Equals, PhaseConfirmed)

	reports, err := env.gateway.CampaignReports(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(reports, qt.DeepEquals, []uint64{o.CreatedID})
	report, err := env.gateway.ImpactReport(ctx, o.CreatedID)
	c.Assert(err, qt.IsNil)
	c.Assert(report.ReportHash, qt.Equals, "QmReport")
	c.Assert(report.Reporter, qt.Equals, env.wallet.Address())

	_, err = env.gateway.DonorProfile(ctx, env.wallet.Address())
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)
	tx, err = env.gateway.UpdateDonorProfile(ctx, &ProfileRequest{Name: "Alice", Bio: "donor"})
	c.Assert(err, qt.IsNil)
	o = wait(c, tx)
	c.Assert(o.Phase, qt.Equals, PhaseConfirmed)
	c.Assert(o.HasCreatedID, qt.IsFalse)
	profile, err := env.gateway.DonorProfile(ctx, env.wallet.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(profile.Name, qt.Equals, "Alice")
}

func TestSigningSlot(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	asked := make(chan struct{})
	release := make(chan bool)
	env.wallet.SetApproval(func(ctx context.Context, _ *ethtypes.Transaction) (bool, error) {
		asked <- struct{}{}
		return <-release, nil
	})
	req := &CampaignRequest{
		Name:     "Clean water",
		Category: "Environment",
		Target:   codec.FromUint64(1),
		Duration: time.Hour,
	}

	type result struct {
		tx  *PendingTx
		err error
	}
	first := make(chan result)
	go func() {
		tx, err := env.gateway.CreateCampaign(ctx, req)
		first <- result{tx, err}
	}()
	<-asked

	// the slot is held by the first write
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := env.gateway.CreateCampaign(short, req)
	c.Assert(types.IsTransientWrite(err), qt.IsTrue)
	c.Assert(errors.Is(err, context.DeadlineExceeded), qt.IsTrue)

	// declining releases the slot
	release <- false
	res := <-first
	c.Assert(errors.Is(res.err, types.ErrSigningDeclined), qt.IsTrue)
	c.Assert(types.IsTransientWrite(res.err), qt.IsTrue)

	go func() {
		tx, err := env.gateway.CreateCampaign(ctx, req)
		first <- result{tx, err}
	}()
	<-asked
	release <- true
	res = <-first
	c.Assert(res.err, qt.IsNil)
	c.Assert(wait(c, res.tx).Phase, qt.Equals, PhaseConfirmed)
}

func TestTransientSubmit(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	id := env.activeCampaign(c)

	env.mock.FailNextSubmit(errors.New("connection refused"))
	_, err := env.gateway.CastVote(context.Background(), id, types.VoteAbstain)
	c.Assert(types.IsTransientWrite(err), qt.IsTrue)
	_, ok := types.RejectionReason(err)
	c.Assert(ok, qt.IsFalse)

	// nothing was recorded, the vote can be submitted again
	tx, err := env.gateway.CastVote(context.Background(), id, types.VoteAbstain)
	c.Assert(err, qt.IsNil)
	c.Assert(wait(c, tx).Phase, qt.Equals, PhaseConfirmed)
}

func TestResumePendingWrites(t *testing.T) {
	c := qt.New(t)
	st := storage.New(metadb.NewTest(t))
	env := newTestEnv(c, WithStorage(st))
	env.mock.SetAutoMine(false)
	id := env.activeCampaign(c)

	tx, err := env.gateway.CastVote(context.Background(), id, types.VoteYes)
	c.Assert(err, qt.IsNil)
	c.Assert(tx.Phase(), qt.Equals, PhasePending)
	env.gateway.Close()

	writes, err := st.PendingWrites()
	c.Assert(err, qt.IsNil)
	c.Assert(writes, qt.HasLen, 1)
	c.Assert(writes[0].Hash, qt.Equals, tx.Hash)
	c.Assert(writes[0].Op, qt.Equals, OpCastVote)
	c.Assert(writes[0].CampaignID, qt.Equals, id)

	// the outcome of an untracked transaction comes from its receipt
	g := New(env.mock, env.wallet, env.mock.Codec(), WithStorage(st), WithPollInterval(10*time.Millisecond))
	defer g.Close()
	o, err := g.TxOutcome(context.Background(), tx.Hash)
	c.Assert(err, qt.IsNil)
	c.Assert(o.Phase, qt.Equals, PhasePending)

	env.mock.Mine()
	resumed, err := g.Resume()
	c.Assert(err, qt.IsNil)
	c.Assert(resumed, qt.HasLen, 1)
	c.Assert(wait(c, resumed[0]).Phase, qt.Equals, PhaseConfirmed)

	// the stored write is removed once it is resolved
	deadline := time.Now().Add(testTimeout)
	for {
		writes, err = st.PendingWrites()
		c.Assert(err, qt.IsNil)
		if len(writes) == 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Assert(writes, qt.HasLen, 0)
}

func TestEncoderFromBackend(t *testing.T) {
	c := qt.New(t)
	mock, err := NewMockBackend()
	c.Assert(err, qt.IsNil)

	enc, err := EncoderFromBackend(context.Background(), mock, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(enc.Bits(), qt.Equals, codec.DefaultBits)
	sealed, err := enc.Encode(codec.FromUint64(7))
	c.Assert(err, qt.IsNil)
	c.Assert(mock.Codec().Verify(sealed), qt.IsNil)
}
