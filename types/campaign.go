package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/codec"
)

// Campaign is the client projection of a campaign owned by the contract.
// Target is only known in sealed form. Totals and Votes are filled when the
// aggregate reads succeed.
type Campaign struct {
	ID          uint64          `json:"id"               cbor:"0,keyasint,omitempty"`
	Name        string          `json:"name"             cbor:"1,keyasint,omitempty"`
	Description string          `json:"description"      cbor:"2,keyasint,omitempty"`
	Category    Category        `json:"category"         cbor:"3,keyasint,omitempty"`
	ImageHash   string          `json:"imageHash"        cbor:"4,keyasint,omitempty"`
	Organizer   common.Address  `json:"organizer"        cbor:"5,keyasint,omitempty"`
	IsVerified  bool            `json:"isVerified"       cbor:"6,keyasint,omitempty"`
	IsActive    bool            `json:"isActive"         cbor:"7,keyasint,omitempty"`
	StartTime   time.Time       `json:"startTime"        cbor:"8,keyasint,omitempty"`
	EndTime     time.Time       `json:"endTime"          cbor:"9,keyasint,omitempty"`
	Target      *codec.Sealed   `json:"target,omitempty" cbor:"10,keyasint,omitempty"`
	Totals      *CampaignTotals `json:"totals,omitempty" cbor:"11,keyasint,omitempty"`
	Votes       *VoteStats      `json:"votes,omitempty"  cbor:"12,keyasint,omitempty"`
}

// AcceptsActions reports whether donations and votes can be submitted at
// now: the contract marks the campaign active and its end time has not
// passed yet.
func (c *Campaign) AcceptsActions(now time.Time) bool {
	return c.IsActive && now.Before(c.EndTime)
}

// CampaignTotals are the aggregate funding figures of a campaign.
type CampaignTotals struct {
	CurrentAmount *BigInt `json:"currentAmount" cbor:"0,keyasint,omitempty"`
	DonorCount    uint64  `json:"donorCount"    cbor:"1,keyasint,omitempty"`
	Funded        bool    `json:"funded"        cbor:"2,keyasint,omitempty"`
}

// Donation is a donation record. Amount is nil when the contract does not
// expose it.
type Donation struct {
	ID         uint64         `json:"id"               cbor:"0,keyasint,omitempty"`
	CampaignID uint64         `json:"campaignId"       cbor:"1,keyasint,omitempty"`
	Donor      common.Address `json:"donor"            cbor:"2,keyasint,omitempty"`
	Timestamp  time.Time      `json:"timestamp"        cbor:"3,keyasint,omitempty"`
	Message    string         `json:"message"          cbor:"4,keyasint,omitempty"`
	Amount     *codec.Sealed  `json:"amount,omitempty" cbor:"5,keyasint,omitempty"`
}

// DonorProfile is the profile of a donor address.
type DonorProfile struct {
	Address    common.Address `json:"address"         cbor:"0,keyasint,omitempty"`
	Name       string         `json:"name"            cbor:"1,keyasint,omitempty"`
	Bio        string         `json:"bio"             cbor:"2,keyasint,omitempty"`
	IsVerified bool           `json:"isVerified"      cbor:"3,keyasint,omitempty"`
	Stats      *DonorStats    `json:"stats,omitempty" cbor:"4,keyasint,omitempty"`
}

// DonorStats are computed by the contract from all the donations of a donor.
type DonorStats struct {
	TotalDonated    *BigInt `json:"totalDonated"    cbor:"0,keyasint,omitempty"`
	DonationCount   uint64  `json:"donationCount"   cbor:"1,keyasint,omitempty"`
	ReputationScore uint64  `json:"reputationScore" cbor:"2,keyasint,omitempty"`
}

// ImpactReport is a report submitted by a campaign organizer about the use
// of the funds.
type ImpactReport struct {
	ID            uint64         `json:"id"                      cbor:"0,keyasint,omitempty"`
	CampaignID    uint64         `json:"campaignId"              cbor:"1,keyasint,omitempty"`
	Reporter      common.Address `json:"reporter"                cbor:"2,keyasint,omitempty"`
	ReportHash    string         `json:"reportHash"              cbor:"3,keyasint,omitempty"`
	Description   string         `json:"description"             cbor:"4,keyasint,omitempty"`
	Timestamp     time.Time      `json:"timestamp"               cbor:"5,keyasint,omitempty"`
	Beneficiaries *codec.Sealed  `json:"beneficiaries,omitempty" cbor:"6,keyasint,omitempty"`
	FundsUtilized *codec.Sealed  `json:"fundsUtilized,omitempty" cbor:"7,keyasint,omitempty"`
}
