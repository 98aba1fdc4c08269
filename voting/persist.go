package voting

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/storage"
)

// persist stores the record of s. Callers hold m.mu. The record is
// advisory, so failures are only logged.
func (m *Manager) persist(s *session) {
	if m.storage == nil {
		return
	}
	r := &storage.VoteRecord{
		Voter:      s.key.Voter,
		CampaignID: s.key.CampaignID,
		State:      string(s.state),
		Choice:     s.choice,
		TxHash:     s.txHash,
		UpdatedAt:  s.updated,
	}
	if s.rejection != nil {
		r.Reason, r.Detail = s.rejection.Reason, s.rejection.Message
	}
	if err := m.storage.SetVoteRecord(r); err != nil {
		log.Warnw("failed to store vote record", "campaignID", s.key.CampaignID, "err", err)
	}
}

// Restore loads the stored sessions of the connected wallet. Sessions that
// were submitting resume from their transaction; confirmed ones are kept as
// advisory and checked against the contract before any other vote on the
// campaign. Sessions already known by the manager are not replaced.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.storage == nil {
		return 0, nil
	}
	voter, err := m.voter()
	if err != nil {
		return 0, err
	}
	records, err := m.storage.VoteRecords(voter)
	if err != nil {
		return 0, fmt.Errorf("failed to load vote records: %w", err)
	}
	var restored int
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		key := Key{Voter: r.Voter, CampaignID: r.CampaignID}
		m.mu.Lock()
		if _, ok := m.sessions[key]; ok {
			m.mu.Unlock()
			continue
		}
		s := &session{
			key:      key,
			state:    StateNotVoted,
			choice:   r.Choice,
			txHash:   r.TxHash,
			advisory: true,
			updated:  r.UpdatedAt,
		}
		if r.Reason != "" || r.Detail != "" {
			s.rejection = &Rejection{
				Reason:    r.Reason,
				Transient: State(r.State) == StateNotVoted,
				Message:   r.Detail,
				Err:       errors.New(r.Detail),
			}
		}
		var tx *gateway.PendingTx
		switch State(r.State) {
		case StateConfirmed, StateRejected:
			s.state = State(r.State)
		case StateSubmitting:
			if r.TxHash != (common.Hash{}) {
				s.transition(StateSubmitting, r.UpdatedAt)
				s.advisory = false
				tx = m.gateway.Track(r.TxHash, gateway.OpCastVote, r.CampaignID)
			}
		}
		m.sessions[key] = s
		m.mu.Unlock()
		if tx != nil {
			m.follow(s, tx)
		}
		restored++
	}
	if restored > 0 {
		log.Infow("restored voting sessions", "count", restored, "voter", voter.Hex())
	}
	return restored, nil
}
