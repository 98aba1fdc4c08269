package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/aggregate"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/storage"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/wallet"
)

// Gateway is the part of the contract gateway used by the voting sessions.
type Gateway interface {
	Wallet() wallet.Wallet
	Now() time.Time
	HasVoted(ctx context.Context, campaignID uint64, voter common.Address) (bool, error)
	CastVote(ctx context.Context, campaignID uint64, choice types.VoteChoice) (*gateway.PendingTx, error)
	Track(hash common.Hash, op string, campaignID uint64) *gateway.PendingTx
}

// CampaignReader reads the current state of a campaign.
type CampaignReader interface {
	Campaign(ctx context.Context, id uint64) (*types.Campaign, error)
}

// Manager holds the voting sessions of the connected wallet and drives them
// through the gateway.
type Manager struct {
	gateway   Gateway
	campaigns CampaignReader
	storage   *storage.Storage

	mu       sync.Mutex
	sessions map[Key]*session

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ aggregate.ChoiceSource = (*Manager)(nil)

// NewManager returns a manager voting through gw. st may be nil, in which
// case sessions are not persisted.
func NewManager(gw Gateway, campaigns CampaignReader, st *storage.Storage) *Manager {
	return &Manager{
		gateway:   gw,
		campaigns: campaigns,
		storage:   st,
		sessions:  make(map[Key]*session),
		stop:      make(chan struct{}),
	}
}

// Close stops following the submitted votes. Their sessions stay
// Submitting and resume from the stored records on the next Restore.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *Manager) voter() (common.Address, error) {
	w := m.gateway.Wallet()
	if w == nil || !w.Connected() {
		return common.Address{}, &types.ValidationError{
			Field:  "wallet",
			Reason: "not connected",
			Err:    types.ErrWalletDisconnected,
		}
	}
	return w.Address(), nil
}

// get returns the session of key, creating it if needed. Callers hold m.mu.
func (m *Manager) get(key Key) *session {
	s, ok := m.sessions[key]
	if !ok {
		s = &session{key: key, state: StateNotVoted, updated: m.gateway.Now()}
		m.sessions[key] = s
	}
	return s
}

// Vote casts choice on the campaign for the connected wallet. It returns
// the session once the vote is submitted; Await observes its resolution.
//
// Voting on a session that is not NotVoted is a no-op returning the current
// session, so a vote can never be submitted twice. An error is returned
// only when no vote was submitted: the session is then either unchanged,
// NotVoted with a transient rejection, or Rejected.
func (m *Manager) Vote(ctx context.Context, campaignID uint64, choice types.VoteChoice) (Session, error) {
	voter, err := m.voter()
	if err != nil {
		return Session{}, err
	}
	if !choice.Valid() {
		return Session{}, types.NewValidationError("choice", "unknown vote choice %d", choice)
	}
	key := Key{Voter: voter, CampaignID: campaignID}

	m.mu.Lock()
	s := m.get(key)
	if s.state == StateConfirmed && s.advisory {
		m.mu.Unlock()
		if err := m.reconcile(ctx, s); err != nil {
			snap, _ := m.Session(campaignID)
			return snap, err
		}
		m.mu.Lock()
	}
	if s.state != StateNotVoted {
		snap := s.snapshot()
		m.mu.Unlock()
		log.Debugw("vote ignored", "campaignID", campaignID, "state", string(snap.State))
		return snap, nil
	}
	prevRejection := s.rejection
	s.choice, s.rejection, s.advisory = choice, nil, false
	s.transition(StateSubmitting, m.gateway.Now())
	m.mu.Unlock()

	// the session is Submitting from here on, which suppresses any other
	// vote on it until it is resolved
	if err := m.precheck(ctx, campaignID, voter); err != nil {
		var wr *types.WriteRejectedError
		if errors.As(err, &wr) {
			return m.reject(s, err), err
		}
		m.mu.Lock()
		s.rejection = prevRejection
		s.transition(StateNotVoted, m.gateway.Now())
		snap := s.snapshot()
		m.mu.Unlock()
		return snap, err
	}

	tx, err := m.gateway.CastVote(ctx, campaignID, choice)
	if err != nil {
		if _, semantic := types.RejectionReason(err); semantic {
			return m.reject(s, err), err
		}
		return m.retryable(s, err), err
	}

	m.mu.Lock()
	s.txHash = tx.Hash
	s.updated = m.gateway.Now()
	snap := s.snapshot()
	m.persist(s)
	m.mu.Unlock()
	log.Infow("vote submitted", "campaignID", campaignID, "hash", tx.Hash.Hex())

	m.follow(s, tx)
	return snap, nil
}

// precheck checks the campaign accepts votes and reconciles with the
// contract that the voter has not voted yet.
func (m *Manager) precheck(ctx context.Context, campaignID uint64, voter common.Address) error {
	campaign, err := m.campaigns.Campaign(ctx, campaignID)
	if errors.Is(err, types.ErrNotFound) {
		return &types.ValidationError{
			Field:  "campaign",
			Reason: fmt.Sprintf("campaign %d does not exist", campaignID),
			Err:    types.ErrNotFound,
		}
	}
	if err != nil {
		return err
	}
	if !campaign.AcceptsActions(m.gateway.Now()) {
		return types.NewValidationError("campaign", "campaign %d is not active", campaignID)
	}
	voted, err := m.gateway.HasVoted(ctx, campaignID, voter)
	if err != nil {
		return fmt.Errorf("failed to check vote record: %w", err)
	}
	if voted {
		return &types.WriteRejectedError{
			Op:     gateway.OpCastVote,
			Reason: types.RejectDuplicateVote,
			Detail: "vote already recorded",
		}
	}
	return nil
}

// reconcile checks a restored Confirmed session against the contract. If
// the contract has no vote, the session is reset to NotVoted.
func (m *Manager) reconcile(ctx context.Context, s *session) error {
	voted, err := m.gateway.HasVoted(ctx, s.key.CampaignID, s.key.Voter)
	if err != nil {
		log.Warnw("failed to reconcile vote record", "campaignID", s.key.CampaignID, "err", err)
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !s.advisory || s.state != StateConfirmed {
		return nil
	}
	s.advisory = false
	if !voted {
		log.Warnw("local vote record not found on the contract, resetting", "campaignID", s.key.CampaignID)
		s.txHash = common.Hash{}
		s.transition(StateNotVoted, m.gateway.Now())
	}
	m.persist(s)
	return nil
}

// reject moves s to the terminal Rejected state.
func (m *Manager) reject(s *session, err error) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, _ := types.RejectionReason(err)
	s.rejection = &Rejection{Reason: reason, Message: err.Error(), Err: err}
	s.transition(StateRejected, m.gateway.Now())
	m.persist(s)
	log.Infow("vote rejected", "campaignID", s.key.CampaignID, "reason", string(reason))
	return s.snapshot()
}

// retryable returns s to NotVoted after a failure that allows voting again.
func (m *Manager) retryable(s *session, err error) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.rejection = &Rejection{Transient: true, Message: err.Error(), Err: err}
	s.txHash = common.Hash{}
	s.transition(StateNotVoted, m.gateway.Now())
	m.persist(s)
	log.Infow("vote not submitted, can be retried", "campaignID", s.key.CampaignID, "err", err)
	return s.snapshot()
}

// follow resolves s from the outcome of tx in the background.
func (m *Manager) follow(s *session, tx *gateway.PendingTx) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-tx.Done():
		case <-m.stop:
			return
		}
		o, _ := tx.Outcome()
		if o.Phase == gateway.PhaseConfirmed {
			m.mu.Lock()
			s.transition(StateConfirmed, m.gateway.Now())
			m.persist(s)
			m.mu.Unlock()
			log.Infow("vote confirmed", "campaignID", s.key.CampaignID, "block", o.BlockNumber)
			return
		}
		m.reject(s, o.Err)
	}()
}

// Await blocks until the session of the connected wallet on the campaign is
// no longer Submitting, or ctx is done. Giving up waiting does not affect
// the vote.
func (m *Manager) Await(ctx context.Context, campaignID uint64) (Session, error) {
	voter, err := m.voter()
	if err != nil {
		return Session{}, err
	}
	key := Key{Voter: voter, CampaignID: campaignID}
	for {
		m.mu.Lock()
		s := m.get(key)
		if s.state != StateSubmitting {
			snap := s.snapshot()
			m.mu.Unlock()
			return snap, nil
		}
		resolved := s.resolved
		m.mu.Unlock()
		select {
		case <-resolved:
		case <-ctx.Done():
			return Session{}, ctx.Err()
		}
	}
}

// Session returns the session of the connected wallet on the campaign.
func (m *Manager) Session(campaignID uint64) (Session, error) {
	voter, err := m.voter()
	if err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(Key{Voter: voter, CampaignID: campaignID}).snapshot(), nil
}

// OwnChoice returns the ballot of the connected wallet on the campaign. It
// is the only way vote choices leave the manager.
func (m *Manager) OwnChoice(campaignID uint64) (aggregate.Ballot, bool) {
	voter, err := m.voter()
	if err != nil {
		return aggregate.Ballot{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[Key{Voter: voter, CampaignID: campaignID}]
	if !ok || s.state == StateNotVoted {
		return aggregate.Ballot{}, false
	}
	return aggregate.Ballot{
		Choice:    s.choice,
		Confirmed: s.state == StateConfirmed,
		Closed:    true,
	}, true
}
