package api

import (
	"net/http"

	"github.com/fundshadow/fundshadow-client/aggregate"
	"github.com/fundshadow/fundshadow-client/gateway"
)

// donation returns a single donation.
// GET /donations/{donationId}
func (a *API) donation(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, DonationURLParam)
	if !ok {
		return
	}
	d, err := a.registry.Donation(r.Context(), id)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	httpWriteJSON(w, d)
}

// donor returns the profile of a donor and, when available, its stats.
// GET /donors/{address}
func (a *API) donor(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, AddressURLParam)
	if !ok {
		return
	}
	p, err := a.registry.DonorProfile(r.Context(), addr)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	httpWriteJSON(w, p)
}

// donorCampaigns returns the cards of the campaigns a donor donated to.
// GET /donors/{address}/campaigns
func (a *API) donorCampaigns(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, AddressURLParam)
	if !ok {
		return
	}
	results, err := a.registry.DonorCampaigns(r.Context(), addr)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	now, choices := a.gateway.Now(), a.choices()
	resp := &CampaignsResponse{Campaigns: []*aggregate.Card{}}
	for _, res := range results {
		if res.Err != nil {
			resp.Failures = append(resp.Failures, newReadFailure(res.ID, res.Err))
			continue
		}
		resp.Campaigns = append(resp.Campaigns, aggregate.NewCard(res.Record, now, choices))
	}
	httpWriteJSON(w, resp)
}

// updateProfile updates the donor profile of the connected wallet.
// PUT /donors/me
func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	req := &ProfileRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	tx, err := a.gateway.UpdateDonorProfile(r.Context(), &gateway.ProfileRequest{
		Name:       req.Name,
		Bio:        req.Bio,
		IsVerified: req.IsVerified,
	})
	a.writeTx(w, r, tx, err)
}
