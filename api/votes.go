package api

import (
	"net/http"

	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/voting"
)

// voteSession returns the voting session of the connected wallet on a
// campaign.
// GET /campaigns/{campaignId}/vote
func (a *API) voteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, CampaignURLParam)
	if !ok {
		return
	}
	s, err := a.voting.Session(id)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	httpWriteJSON(w, s)
}

// vote casts the vote of the connected wallet on a campaign. Voting again on
// a session that is not NotVoted returns the session unchanged.
// POST /campaigns/{campaignId}/vote
func (a *API) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, CampaignURLParam)
	if !ok {
		return
	}
	req := &VoteRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	choice, err := types.ParseVoteChoice(req.Choice)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	s, err := a.voting.Vote(r.Context(), id, choice)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	if s.State == voting.StateSubmitting && wantsWait(r) {
		if resolved, err := a.voting.Await(r.Context(), id); err == nil {
			s = resolved
		}
	}
	switch s.State {
	case voting.StateSubmitting:
		httpWriteStatusJSON(w, http.StatusAccepted, s)
	case voting.StateConfirmed:
		a.registry.Invalidate(id)
		httpWriteJSON(w, s)
	default:
		httpWriteJSON(w, s)
	}
}
