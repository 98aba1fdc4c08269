package voting

import (
	"context"
	"errors"
	"testing"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	qt "github.com/frankban/quicktest"
	"github.com/fundshadow/fundshadow-client/aggregate"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/registry"
	"github.com/fundshadow/fundshadow-client/storage"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/wallet"
	"go.vocdoni.io/dvote/db/metadb"
)

const testTimeout = 10 * time.Second

type testEnv struct {
	mock     *gateway.MockBackend
	wallet   *wallet.KeyWallet
	gateway  *gateway.Gateway
	registry *registry.Registry
	manager  *Manager
}

func newTestEnv(c *qt.C, st *storage.Storage) *testEnv {
	mock, err := gateway.NewMockBackend()
	c.Assert(err, qt.IsNil)
	w, err := wallet.GenerateKeyWallet()
	c.Assert(err, qt.IsNil)
	env := &testEnv{mock: mock, wallet: w}
	now := time.Now()
	for i := 0; i < 2; i++ {
		mock.AddCampaign(&types.Campaign{
			Name:      "proposal",
			Category:  types.CategoryHealthcare,
			Organizer: w.Address(),
			IsActive:  true,
			StartTime: now,
			EndTime:   now.Add(5 * 24 * time.Hour),
		})
	}
	env.connect(c, st)
	return env
}

// connect starts a new gateway and manager over the same mock contract and
// wallet, as a restarted client would.
func (e *testEnv) connect(c *qt.C, st *storage.Storage) {
	opts := []gateway.Option{gateway.WithPollInterval(10 * time.Millisecond)}
	if st != nil {
		opts = append(opts, gateway.WithStorage(st))
	}
	e.gateway = gateway.New(e.mock, e.wallet, e.mock.Codec(), opts...)
	e.registry = registry.New(e.gateway, registry.WithRetryTime(0))
	e.manager = NewManager(e.gateway, e.registry, st)
	gw, mgr := e.gateway, e.manager
	c.Cleanup(func() {
		mgr.Close()
		gw.Close()
	})
}

func (e *testEnv) await(c *qt.C, campaignID uint64) Session {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	s, err := e.manager.Await(ctx, campaignID)
	c.Assert(err, qt.IsNil)
	return s
}

func TestVoteLifecycle(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, nil)
	env.mock.SetAutoMine(false)
	env.mock.SetTotalVoters(1, 50)
	ctx := context.Background()

	s, err := env.manager.Vote(ctx, 1, types.VoteYes)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateSubmitting)
	c.Assert(*s.Choice, qt.Equals, types.VoteYes)
	c.Assert(s.TxHash, qt.IsNotNil)

	// a second choice while submitting is a no-op
	s, err = env.manager.Vote(ctx, 1, types.VoteNo)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateSubmitting)
	c.Assert(*s.Choice, qt.Equals, types.VoteYes)
	c.Assert(env.mock.Submitted(), qt.Equals, 1)

	ballot, ok := env.manager.OwnChoice(1)
	c.Assert(ok, qt.IsTrue)
	c.Assert(ballot.Closed, qt.IsTrue)
	c.Assert(ballot.Confirmed, qt.IsFalse)

	// waiting can be abandoned without affecting the vote
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = env.manager.Await(short, 1)
	c.Assert(errors.Is(err, context.DeadlineExceeded), qt.IsTrue)

	env.mock.Mine()
	s = env.await(c, 1)
	c.Assert(s.State, qt.Equals, StateConfirmed)
	c.Assert(*s.Choice, qt.Equals, types.VoteYes)

	campaign, err := env.registry.Campaign(ctx, 1)
	c.Assert(err, qt.IsNil)
	card := aggregate.NewCard(campaign, env.gateway.Now(), env.manager)
	c.Assert(card.MyChoice, qt.Equals, "YES")
	c.Assert(card.HasVoted, qt.IsTrue)
	c.Assert(card.CanVote, qt.IsFalse)
	c.Assert(card.CurrentVotes, qt.Equals, uint64(1))
	c.Assert(card.Participation, qt.Equals, 2)

	// confirmed is terminal and produces no write
	s, err = env.manager.Vote(ctx, 1, types.VoteNo)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateConfirmed)
	c.Assert(*s.Choice, qt.Equals, types.VoteYes)
	c.Assert(env.mock.Submitted(), qt.Equals, 1)
}

func TestCampaignsAreIndependent(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, nil)
	ctx := context.Background()

	_, err := env.manager.Vote(ctx, 1, types.VoteAbstain)
	c.Assert(err, qt.IsNil)
	c.Assert(env.await(c, 1).State, qt.Equals, StateConfirmed)

	s, err := env.manager.Session(2)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateNotVoted)
	c.Assert(s.Choice, qt.IsNil)
	_, ok := env.manager.OwnChoice(2)
	c.Assert(ok, qt.IsFalse)

	_, err = env.manager.Vote(ctx, 2, types.VoteNo)
	c.Assert(err, qt.IsNil)
	c.Assert(env.await(c, 2).State, qt.Equals, StateConfirmed)
	b1, _ := env.manager.OwnChoice(1)
	b2, _ := env.manager.OwnChoice(2)
	c.Assert(b1.Choice, qt.Equals, types.VoteAbstain)
	c.Assert(b2.Choice, qt.Equals, types.VoteNo)
}

func TestDuplicateVoteIsTerminal(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, nil)
	ctx := context.Background()

	// a vote recorded outside the manager, for instance by another client
	tx, err := env.gateway.CastVote(ctx, 1, types.VoteYes)
	c.Assert(err, qt.IsNil)
	_, err = tx.Wait(ctx)
	c.Assert(err, qt.IsNil)

	s, err := env.manager.Vote(ctx, 1, types.VoteNo)
	reason, ok := types.RejectionReason(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(reason, qt.Equals, types.RejectDuplicateVote)
	c.Assert(s.State, qt.Equals, StateRejected)
	c.Assert(s.Rejection.Transient, qt.IsFalse)
	c.Assert(env.mock.Submitted(), qt.Equals, 1)

	s, err = env.manager.Vote(ctx, 1, types.VoteNo)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateRejected)
	c.Assert(env.mock.Submitted(), qt.Equals, 1)

	// a revert once mined is terminal too
	env.mock.FailNextMine("Already voted")
	s, err = env.manager.Vote(ctx, 2, types.VoteYes)
	c.Assert(err, qt.IsNil)
	s = env.await(c, 2)
	c.Assert(s.State, qt.Equals, StateRejected)
	c.Assert(s.Rejection.Reason, qt.Equals, types.RejectDuplicateVote)
	s, err = env.manager.Vote(ctx, 2, types.VoteYes)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateRejected)
}

func TestTransientFailureAllowsRetry(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, nil)
	ctx := context.Background()

	env.mock.FailNextSubmit(errors.New("connection reset"))
	s, err := env.manager.Vote(ctx, 1, types.VoteYes)
	c.Assert(types.IsTransientWrite(err), qt.IsTrue)
	c.Assert(s.State, qt.Equals, StateNotVoted)
	c.Assert(s.Rejection.Transient, qt.IsTrue)

	declined := true
	env.wallet.SetApproval(func(context.Context, *ethtypes.Transaction) (bool, error) {
		return !declined, nil
	})
	s, err = env.manager.Vote(ctx, 1, types.VoteYes)
	c.Assert(errors.Is(err, types.ErrSigningDeclined), qt.IsTrue)
	c.Assert(s.State, qt.Equals, StateNotVoted)
	c.Assert(s.Rejection.Transient, qt.IsTrue)

	declined = false
	s, err = env.manager.Vote(ctx, 1, types.VoteYes)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateSubmitting)
	c.Assert(s.Rejection, qt.IsNil)
	c.Assert(env.await(c, 1).State, qt.Equals, StateConfirmed)
}

func TestVoteValidation(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, nil)
	ctx := context.Background()
	var verr *types.ValidationError

	env.mock.SetCampaignActive(1, false)
	s, err := env.manager.Vote(ctx, 1, types.VoteYes)
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(s.State, qt.Equals, StateNotVoted)
	c.Assert(s.Rejection, qt.IsNil)

	_, err = env.manager.Vote(ctx, 7, types.VoteYes)
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)

	_, err = env.manager.Vote(ctx, 2, types.VoteChoice(9))
	c.Assert(errors.As(err, &verr), qt.IsTrue)

	env.wallet.Disconnect()
	_, err = env.manager.Vote(ctx, 2, types.VoteYes)
	c.Assert(errors.Is(err, types.ErrWalletDisconnected), qt.IsTrue)
	_, ok := env.manager.OwnChoice(2)
	c.Assert(ok, qt.IsFalse)

	c.Assert(env.mock.Submitted(), qt.Equals, 0)
}

func TestRestoreSessions(t *testing.T) {
	c := qt.New(t)
	st := storage.New(metadb.NewTest(t))
	env := newTestEnv(c, st)
	ctx := context.Background()

	_, err := env.manager.Vote(ctx, 1, types.VoteYes)
	c.Assert(err, qt.IsNil)
	c.Assert(env.await(c, 1).State, qt.Equals, StateConfirmed)

	// a stale record the contract does not know about
	c.Assert(st.SetVoteRecord(&storage.VoteRecord{
		Voter:      env.wallet.Address(),
		CampaignID: 2,
		State:      string(StateConfirmed),
		Choice:     types.VoteNo,
		UpdatedAt:  time.Now(),
	}), qt.IsNil)

	env.connect(c, st)
	n, err := env.manager.Restore(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)

	s, err := env.manager.Session(1)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateConfirmed)
	c.Assert(s.Advisory, qt.IsTrue)

	// confirmed by the contract: still a no-op
	s, err = env.manager.Vote(ctx, 1, types.VoteNo)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateConfirmed)
	c.Assert(s.Advisory, qt.IsFalse)
	c.Assert(env.mock.Submitted(), qt.Equals, 1)

	// not on the contract: reset and voted
	s, err = env.manager.Vote(ctx, 2, types.VoteYes)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateSubmitting)
	c.Assert(env.await(c, 2).State, qt.Equals, StateConfirmed)
	c.Assert(env.mock.Submitted(), qt.Equals, 2)
}

func TestRestoreSubmitting(t *testing.T) {
	c := qt.New(t)
	st := storage.New(metadb.NewTest(t))
	env := newTestEnv(c, st)
	env.mock.SetAutoMine(false)
	ctx := context.Background()

	s, err := env.manager.Vote(ctx, 1, types.VoteYes)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, StateSubmitting)
	env.manager.Close()
	env.gateway.Close()

	record, err := st.VoteRecord(env.wallet.Address(), 1)
	c.Assert(err, qt.IsNil)
	c.Assert(record.State, qt.Equals, string(StateSubmitting))
	c.Assert(record.TxHash, qt.Equals, *s.TxHash)

	env.mock.Mine()
	env.connect(c, st)
	n, err := env.manager.Restore(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
	s = env.await(c, 1)
	c.Assert(s.State, qt.Equals, StateConfirmed)
	c.Assert(*s.Choice, qt.Equals, types.VoteYes)
}
