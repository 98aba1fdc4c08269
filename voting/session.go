// Package voting implements the lifecycle of the private vote of a voter on
// a campaign. Sessions are keyed by voter and campaign and never share
// state: a voter can be confirmed on one campaign and not have voted on
// another.
package voting

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/types"
)

// State is the state of a voting session.
//
//	NotVoted -> Submitting -> Confirmed
//	            Submitting -> Rejected
//
// Confirmed and Rejected are terminal. A transient failure while submitting
// returns the session to NotVoted.
type State string

const (
	StateNotVoted   State = "not_voted"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateRejected   State = "rejected"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRejected
}

// Key identifies a session.
type Key struct {
	Voter      common.Address
	CampaignID uint64
}

// Rejection is the last failure of a session. Transient rejections allow
// submitting the vote again.
type Rejection struct {
	Reason    types.RejectReason `json:"reason,omitempty"`
	Transient bool               `json:"transient"`
	Message   string             `json:"message"`
	Err       error              `json:"-"`
}

// Session is a snapshot of a voting session. Choice is nil until a vote is
// submitted. Advisory is set for sessions restored from the local store
// that were not checked against the contract yet.
type Session struct {
	Voter      common.Address    `json:"voter"`
	CampaignID uint64            `json:"campaignId"`
	State      State             `json:"state"`
	Choice     *types.VoteChoice `json:"choice,omitempty"`
	TxHash     *common.Hash      `json:"txHash,omitempty"`
	Rejection  *Rejection        `json:"rejection,omitempty"`
	Advisory   bool              `json:"advisory,omitempty"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type session struct {
	key       Key
	state     State
	choice    types.VoteChoice
	txHash    common.Hash
	rejection *Rejection
	advisory  bool
	updated   time.Time
	// resolved is closed when the session leaves StateSubmitting.
	resolved chan struct{}
}

func (s *session) snapshot() Session {
	snap := Session{
		Voter:      s.key.Voter,
		CampaignID: s.key.CampaignID,
		State:      s.state,
		Rejection:  s.rejection,
		Advisory:   s.advisory,
		UpdatedAt:  s.updated,
	}
	if s.state != StateNotVoted {
		choice := s.choice
		snap.Choice = &choice
	}
	if s.txHash != (common.Hash{}) {
		hash := s.txHash
		snap.TxHash = &hash
	}
	return snap
}

// transition moves the session to state. Leaving StateSubmitting wakes up
// every waiter.
func (s *session) transition(state State, now time.Time) {
	if s.state == state {
		s.updated = now
		return
	}
	if state == StateSubmitting {
		s.resolved = make(chan struct{})
	} else if s.state == StateSubmitting && s.resolved != nil {
		close(s.resolved)
		s.resolved = nil
	}
	s.state = state
	s.updated = now
}
