package types

import "github.com/ethereum/go-ethereum/common"

// EventKind identifies a contract notification.
type EventKind string

const (
	EventCampaignCreated EventKind = "CampaignCreated"
	EventDonationMade    EventKind = "DonationMade"
	EventImpactReported  EventKind = "ImpactReported"
	EventVoteCast        EventKind = "VoteCast"
)

// ContractEvent is a best effort notification emitted by the contract. ID is
// the id of the created record (campaign, donation or report) and Account
// the organizer, donor or reporter. VoteCast events only carry the campaign.
type ContractEvent struct {
	Kind        EventKind      `json:"kind"`
	CampaignID  uint64         `json:"campaignId"`
	ID          uint64         `json:"id,omitempty"`
	Account     common.Address `json:"account,omitempty"`
	Name        string         `json:"name,omitempty"`
	BlockNumber uint64         `json:"blockNumber"`
	TxHash      common.Hash    `json:"txHash"`
}
