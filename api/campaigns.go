package api

import (
	"math"
	"math/big"
	"net/http"
	"time"

	"github.com/fundshadow/fundshadow-client/aggregate"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/types"
)

// choices returns the ballots of the connected wallet, nil when there is no
// wallet to show choices for.
func (a *API) choices() aggregate.ChoiceSource {
	if w := a.gateway.Wallet(); w == nil || !w.Connected() {
		return nil
	}
	return a.voting
}

// campaigns returns the cards of the requested campaigns, or of every known
// campaign when no ids are given. Campaigns that cannot be read are listed
// as failures without failing the request.
// GET /campaigns?ids=1,2
func (a *API) campaigns(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	results := a.registry.Known(r.Context())
	if ids != nil {
		results = a.registry.Campaigns(r.Context(), ids)
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

// campaign returns a single campaign card.
// GET /campaigns/{campaignId}
func (a *API) campaign(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, CampaignURLParam)
	if !ok {
		return
	}
	c, err := a.registry.Campaign(r.Context(), id)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	httpWriteJSON(w, aggregate.NewCard(c, a.gateway.Now(), a.choices()))
}

// maxDurationSeconds is the longest campaign duration a time.Duration holds.
const maxDurationSeconds = uint64(math.MaxInt64) / uint64(time.Second)

// newCampaign creates a campaign organized by the connected wallet.
// POST /campaigns
func (a *API) newCampaign(w http.ResponseWriter, r *http.Request) {
	req := &CampaignRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.Duration > maxDurationSeconds {
		fromError(types.NewValidationError("duration", "must be at most %d seconds", maxDurationSeconds)).Write(w)
		return
	}
	target, err := req.Target.resolve(a.decimals)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	tx, err := a.gateway.CreateCampaign(r.Context(), &gateway.CampaignRequest{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageHash:   req.ImageHash,
		Target:      target,
		Duration:    time.Duration(req.Duration) * time.Second,
	})
	a.writeTx(w, r, tx, err)
}

// campaignDonations lists the donations of a campaign.
// GET /campaigns/{campaignId}/donations
func (a *API) campaignDonations(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, CampaignURLParam)
	if !ok {
		return
	}
	results, err := a.registry.CampaignDonations(r.Context(), id)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	resp := &DonationsResponse{Donations: []*types.Donation{}}
	for _, res := range results {
		if res.Err != nil {
			resp.Failures = append(resp.Failures, newReadFailure(res.ID, res.Err))
			continue
		}
		resp.Donations = append(resp.Donations, res.Record)
	}
	httpWriteJSON(w, resp)
}

// newDonation donates to a campaign from the connected wallet.
// POST /campaigns/{campaignId}/donations
func (a *API) newDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, CampaignURLParam)
	if !ok {
		return
	}
	req := &DonationRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	amount, err := req.Amount.resolve(a.decimals)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	var value *big.Int
	if req.Value != nil {
		value = req.Value.MathBigInt()
	}
	tx, err := a.gateway.MakeDonation(r.Context(), &gateway.DonationRequest{
		CampaignID: id,
		Amount:     amount,
		Message:    req.Message,
		Value:      value,
	})
	a.writeTx(w, r, tx, err)
}

// campaignReports lists the impact reports of a campaign, oldest first.
// GET /campaigns/{campaignId}/reports
func (a *API) campaignReports(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, CampaignURLParam)
	if !ok {
		return
	}
	results, err := a.registry.ImpactReports(r.Context(), id)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	resp := &ReportsResponse{Reports: []*types.ImpactReport{}}
	for _, res := range results {
		if res.Err != nil {
			resp.Failures = append(resp.Failures, newReadFailure(res.ID, res.Err))
			continue
		}
		resp.Reports = append(resp.Reports, res.Record)
	}
	httpWriteJSON(w, resp)
}

// newReport submits an impact report for a campaign.
// POST /campaigns/{campaignId}/reports
func (a *API) newReport(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, CampaignURLParam)
	if !ok {
		return
	}
	req := &ReportRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	beneficiaries, err := req.Beneficiaries.resolve(a.decimals)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	funds, err := req.FundsUtilized.resolve(a.decimals)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	tx, err := a.gateway.SubmitImpactReport(r.Context(), &gateway.ReportRequest{
		CampaignID:    id,
		Beneficiaries: beneficiaries,
		FundsUtilized: funds,
		ReportHash:    req.ReportHash,
		Description:   req.Description,
	})
	a.writeTx(w, r, tx, err)
}

// withdraw withdraws the funds of a campaign organized by the connected
// wallet.
// POST /campaigns/{campaignId}/withdraw
func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, CampaignURLParam)
	if !ok {
		return
	}
	tx, err := a.gateway.WithdrawFunds(r.Context(), id)
	a.writeTx(w, r, tx, err)
}

// dashboard summarizes every known campaign.
// GET /dashboard
func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	choices := a.choices()
	resp := &DashboardResponse{Connected: choices != nil}
	var campaigns []*types.Campaign
	for _, res := range a.registry.Known(r.Context()) {
		if res.Err != nil {
			resp.Failures = append(resp.Failures, newReadFailure(res.ID, res.Err))
			continue
		}
		campaigns = append(campaigns, res.Record)
	}
	resp.Dashboard = aggregate.NewDashboard(campaigns, a.gateway.Now(), choices)
	httpWriteJSON(w, resp)
}

// writeTx writes the handle of a submitted write, or its outcome when the
// request asks to wait for it. Confirmed writes are fed back to the
// registry so the next reads include them.
func (a *API) writeTx(w http.ResponseWriter, r *http.Request, tx *gateway.PendingTx, err error) {
	if err != nil {
		fromError(err).Write(w)
		return
	}
	resp := newTxResponse(tx)
	if !wantsWait(r) {
		httpWriteStatusJSON(w, http.StatusAccepted, resp)
		return
	}
	o, err := tx.Wait(r.Context())
	if err != nil {
		// still pending, the write goes on without us
		httpWriteStatusJSON(w, http.StatusAccepted, resp)
		return
	}
	resp.setOutcome(o)
	if o.Phase == gateway.PhaseConfirmed {
		switch {
		case o.HasCreatedID:
			a.registry.Track(o.CreatedID)
		case tx.Op != gateway.OpUpdateDonorProfile:
			a.registry.Invalidate(tx.CampaignID)
		}
	}
	httpWriteJSON(w, resp)
}
