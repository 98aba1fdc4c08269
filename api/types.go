package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/aggregate"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/types"
)

// Amount is an amount as sent by API users: either a plain decimal, as a
// JSON string or number, which is sealed before reaching the contract, or
// an object with an already sealed ciphertext and proof.
type Amount struct {
	Plain  string
	Sealed *codec.Sealed
}

// PlainAmount returns an Amount for the decimal string s.
func PlainAmount(s string) *Amount {
	return &Amount{Plain: s}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty amount")
	}
	switch data[0] {
	case '{':
		a.Sealed = new(codec.Sealed)
		return json.Unmarshal(data, a.Sealed)
	case '"':
		return json.Unmarshal(data, &a.Plain)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid amount %s", data)
		}
		a.Plain = n.String()
		return nil
	}
}

func (a *Amount) MarshalJSON() ([]byte, error) {
	if a.Sealed != nil {
		return json.Marshal(a.Sealed)
	}
	return json.Marshal(a.Plain)
}

// resolve returns the codec form of a, parsing plain amounts with the given
// number of decimals. A nil amount resolves to nil.
func (a *Amount) resolve(decimals uint8) (codec.Amount, error) {
	if a == nil {
		return nil, nil
	}
	if a.Sealed != nil {
		return a.Sealed, nil
	}
	p, err := codec.ParseDecimal(a.Plain, decimals)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CampaignRequest is the body of POST /campaigns. Duration is in seconds.
type CampaignRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	ImageHash   string  `json:"imageHash"`
	Target      *Amount `json:"target"`
	Duration    uint64  `json:"duration"`
}

// DonationRequest is the body of POST /campaigns/{id}/donations. Value is
// the native currency sent along, in its smallest unit.
type DonationRequest struct {
	Amount  *Amount       `json:"amount"`
	Message string        `json:"message"`
	Value   *types.BigInt `json:"value,omitempty"`
}

// ReportRequest is the body of POST /campaigns/{id}/reports.
type ReportRequest struct {
	Beneficiaries *Amount `json:"beneficiaries"`
	FundsUtilized *Amount `json:"fundsUtilized"`
	ReportHash    string  `json:"reportHash"`
	Description   string  `json:"description"`
}

// ProfileRequest is the body of PUT /donors/me.
type ProfileRequest struct {
	Name       string `json:"name"`
	Bio        string `json:"bio"`
	IsVerified bool   `json:"isVerified"`
}

// VoteRequest is the body of POST /campaigns/{id}/vote. Choice is one of
// yes, no or abstain.
type VoteRequest struct {
	Choice string `json:"choice"`
}

// TxResponse describes a submitted write and, once known, its outcome.
type TxResponse struct {
	ID         string        `json:"id,omitempty"`
	Op         string        `json:"op,omitempty"`
	Hash       common.Hash   `json:"hash"`
	CampaignID uint64        `json:"campaignId,omitempty"`
	Submitted  time.Time     `json:"submitted,omitempty"`
	Phase      gateway.Phase `json:"phase"`
	Block      uint64        `json:"block,omitempty"`
	CreatedID  *uint64       `json:"createdId,omitempty"`
	Error      *Error        `json:"error,omitempty"`
}

func newTxResponse(tx *gateway.PendingTx) *TxResponse {
	resp := &TxResponse{
		ID:         tx.ID,
		Op:         tx.Op,
		Hash:       tx.Hash,
		CampaignID: tx.CampaignID,
		Submitted:  tx.Submitted,
		Phase:      tx.Phase(),
	}
	if o, ok := tx.Outcome(); ok {
		resp.setOutcome(o)
	}
	return resp
}

func (t *TxResponse) setOutcome(o *gateway.Outcome) {
	t.Phase = o.Phase
	t.Block = o.BlockNumber
	if o.HasCreatedID {
		id := o.CreatedID
		t.CreatedID = &id
	}
	if o.Err != nil {
		e := fromError(o.Err)
		t.Error = &e
	}
}

// ReadFailure is a record of a batch read that could not be loaded. The
// other records of the batch are still returned.
type ReadFailure struct {
	ID    uint64 `json:"id"`
	Error *Error `json:"error"`
}

func newReadFailure(id uint64, err error) *ReadFailure {
	e := fromError(err)
	return &ReadFailure{ID: id, Error: &e}
}

// CampaignsResponse is returned by GET /campaigns.
type CampaignsResponse struct {
	Campaigns []*aggregate.Card `json:"campaigns"`
	Failures  []*ReadFailure    `json:"failures,omitempty"`
}

// DonationsResponse is returned by GET /campaigns/{id}/donations.
type DonationsResponse struct {
	Donations []*types.Donation `json:"donations"`
	Failures  []*ReadFailure    `json:"failures,omitempty"`
}

// ReportsResponse is returned by GET /campaigns/{id}/reports, in timestamp
// order.
type ReportsResponse struct {
	Reports  []*types.ImpactReport `json:"reports"`
	Failures []*ReadFailure        `json:"failures,omitempty"`
}

// DashboardResponse is returned by GET /dashboard. Connected is false when
// no wallet is connected, in which case no own choices are shown.
type DashboardResponse struct {
	*aggregate.Dashboard
	Connected bool           `json:"connected"`
	Failures  []*ReadFailure `json:"failures,omitempty"`
}
