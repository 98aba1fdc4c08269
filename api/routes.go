package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// MetricsEndpoint exposes the client metrics in the Prometheus format
	MetricsEndpoint = "/metrics"

	CampaignURLParam = "campaignId"
	DonationURLParam = "donationId"
	AddressURLParam  = "address"
	HashURLParam     = "hash"

	// CampaignsEndpoint lists campaigns (GET, ?ids=1,2) and creates new ones (POST)
	CampaignsEndpoint = "/campaigns"
	// CampaignEndpoint returns a single campaign card
	CampaignEndpoint = "/campaigns/{" + CampaignURLParam + "}"
	// CampaignDonationsEndpoint lists (GET) and makes (POST) donations
	CampaignDonationsEndpoint = CampaignEndpoint + "/donations"
	// CampaignReportsEndpoint lists (GET) and submits (POST) impact reports
	CampaignReportsEndpoint = CampaignEndpoint + "/reports"
	// CampaignWithdrawEndpoint withdraws the funds of a campaign
	CampaignWithdrawEndpoint = CampaignEndpoint + "/withdraw"
	// CampaignVoteEndpoint returns (GET) and casts (POST) the vote of the
	// connected wallet
	CampaignVoteEndpoint = CampaignEndpoint + "/vote"

	DonationEndpoint       = "/donations/{" + DonationURLParam + "}"
	DonorEndpoint          = "/donors/{" + AddressURLParam + "}"
	DonorCampaignsEndpoint = DonorEndpoint + "/campaigns"
	// OwnProfileEndpoint updates the profile of the connected wallet
	OwnProfileEndpoint = "/donors/me"

	DashboardEndpoint = "/dashboard"
	// TxEndpoint returns the state of a submitted write
	TxEndpoint = "/txs/{" + HashURLParam + "}"
)

// WaitQueryParam makes write endpoints block until the write is resolved,
// bounded by the request timeout.
const WaitQueryParam = "wait"
