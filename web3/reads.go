package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
)

// outputs decodes positional call results, keeping the first error.
type outputs struct {
	method string
	values []any
	err    error
}

func output[T any](o *outputs, i int) T {
	var zero T
	if o.err != nil {
		return zero
	}
	if i >= len(o.values) {
		o.err = fmt.Errorf("%s: missing output %d", o.method, i)
		return zero
	}
	v, ok := o.values[i].(T)
	if !ok {
		o.err = fmt.Errorf("%s: unexpected type %T for output %d", o.method, o.values[i], i)
	}
	return v
}

func (o *outputs) uint64(i int) uint64 {
	v := output[*big.Int](o, i)
	if o.err != nil {
		return 0
	}
	if v == nil || !v.IsUint64() {
		o.err = fmt.Errorf("%s: output %d does not fit in 64 bits", o.method, i)
		return 0
	}
	return v.Uint64()
}

func (o *outputs) time(i int) time.Time {
	v := o.uint64(i)
	if o.err != nil || v == 0 {
		return time.Time{}
	}
	return time.Unix(int64(v), 0)
}

func (o *outputs) ids(i int) []uint64 {
	v := output[[]*big.Int](o, i)
	if o.err != nil {
		return nil
	}
	ids := make([]uint64, 0, len(v))
	for _, id := range v {
		if !id.IsUint64() {
			o.err = fmt.Errorf("%s: id %s does not fit in 64 bits", o.method, id)
			return nil
		}
		ids = append(ids, id.Uint64())
	}
	return ids
}

// call executes a read only method and returns its decoded outputs.
func (c *Contracts) call(ctx context.Context, op, method string, args ...any) (*outputs, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, readError(op, err)
	}
	return &outputs{method: method, values: out}, nil
}

func bigID(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}

// Campaign returns the campaign with the given id, including its sealed
// target. It returns types.ErrNotFound if the campaign does not exist.
func (c *Contracts) Campaign(ctx context.Context, id uint64) (*types.Campaign, error) {
	out, err := c.call(ctx, "campaign", methodGetCampaignInfo, bigID(id))
	if err != nil {
		return nil, err
	}
	campaign := &types.Campaign{
		ID:          id,
		Name:        output[string](out, 0),
		Description: output[string](out, 1),
		Category:    types.Category(output[string](out, 2)),
		ImageHash:   output[string](out, 3),
		IsActive:    output[bool](out, 4),
		IsVerified:  output[bool](out, 5),
		Organizer:   output[common.Address](out, 6),
		StartTime:   out.time(7),
		EndTime:     out.time(8),
	}
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode campaign %d: %w", id, out.err)
	}
	if campaign.Organizer == (common.Address{}) {
		return nil, fmt.Errorf("campaign %d: %w", id, types.ErrNotFound)
	}
	target, err := c.call(ctx, "campaign target", methodGetCampaignTarget, bigID(id))
	if err != nil {
		return nil, err
	}
	campaign.Target = &codec.Sealed{
		Ciphertext: output[[]byte](target, 0),
		Proof:      output[[]byte](target, 1),
	}
	if target.err != nil {
		return nil, fmt.Errorf("failed to decode campaign %d target: %w", id, target.err)
	}
	return campaign, nil
}

// CampaignTotals returns the aggregate funding figures of a campaign.
func (c *Contracts) CampaignTotals(ctx context.Context, id uint64) (*types.CampaignTotals, error) {
	out, err := c.call(ctx, "campaign totals", methodGetCampaignTotals, bigID(id))
	if err != nil {
		return nil, err
	}
	totals := &types.CampaignTotals{
		CurrentAmount: types.NewBigInt(output[*big.Int](out, 0)),
		DonorCount:    out.uint64(1),
		Funded:        output[bool](out, 2),
	}
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode campaign %d totals: %w", id, out.err)
	}
	return totals, nil
}

// Donation returns the donation with the given id. It returns
// types.ErrNotFound if the donation does not exist.
func (c *Contracts) Donation(ctx context.Context, id uint64) (*types.Donation, error) {
	out, err := c.call(ctx, "donation", methodGetDonationInfo, bigID(id))
	if err != nil {
		return nil, err
	}
	donation := &types.Donation{
		ID:        id,
		Donor:     output[common.Address](out, 0),
		Timestamp: out.time(1),
		Message:   output[string](out, 2),
	}
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode donation %d: %w", id, out.err)
	}
	if donation.Donor == (common.Address{}) && donation.Timestamp.IsZero() {
		return nil, fmt.Errorf("donation %d: %w", id, types.ErrNotFound)
	}
	details, err := c.call(ctx, "donation details", methodGetDonationDetails, bigID(id))
	if err != nil {
		var transient *types.TransientReadError
		if errors.As(err, &transient) {
			return nil, err
		}
		// contracts without the details call only expose the public fields
		log.Debugw("donation details not available", "donation", id, "error", err.Error())
		return donation, nil
	}
	donation.CampaignID = details.uint64(0)
	amount := &codec.Sealed{
		Ciphertext: output[[]byte](details, 1),
		Proof:      output[[]byte](details, 2),
	}
	if details.err != nil {
		return nil, fmt.Errorf("failed to decode donation %d details: %w", id, details.err)
	}
	if !amount.Empty() {
		donation.Amount = amount
	}
	return donation, nil
}

// DonorProfile returns the profile of the donor address. It returns
// types.ErrNotFound if the donor never set a profile.
func (c *Contracts) DonorProfile(ctx context.Context, donor common.Address) (*types.DonorProfile, error) {
	out, err := c.call(ctx, "donor profile", methodGetDonorProfile, donor)
	if err != nil {
		return nil, err
	}
	profile := &types.DonorProfile{
		Address:    donor,
		Name:       output[string](out, 0),
		Bio:        output[string](out, 1),
		IsVerified: output[bool](out, 2),
	}
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode donor profile %s: %w", donor.Hex(), out.err)
	}
	if profile.Name == "" && profile.Bio == "" && !profile.IsVerified {
		return nil, fmt.Errorf("donor profile %s: %w", donor.Hex(), types.ErrNotFound)
	}
	return profile, nil
}

// DonorStats returns the statistics the contract computes for a donor.
func (c *Contracts) DonorStats(ctx context.Context, donor common.Address) (*types.DonorStats, error) {
	out, err := c.call(ctx, "donor stats", methodGetDonorStats, donor)
	if err != nil {
		return nil, err
	}
	stats := &types.DonorStats{
		TotalDonated:    types.NewBigInt(output[*big.Int](out, 0)),
		DonationCount:   out.uint64(1),
		ReputationScore: out.uint64(2),
	}
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode donor stats %s: %w", donor.Hex(), out.err)
	}
	return stats, nil
}

// CampaignDonations returns the ids of the donations of a campaign.
func (c *Contracts) CampaignDonations(ctx context.Context, campaignID uint64) ([]uint64, error) {
	return c.idList(ctx, "campaign donations", methodGetCampaignDonations, bigID(campaignID))
}

// DonorCampaigns returns the ids of the campaigns a donor donated to.
func (c *Contracts) DonorCampaigns(ctx context.Context, donor common.Address) ([]uint64, error) {
	return c.idList(ctx, "donor campaigns", methodGetDonorCampaigns, donor)
}

// CampaignReports returns the ids of the impact reports of a campaign.
func (c *Contracts) CampaignReports(ctx context.Context, campaignID uint64) ([]uint64, error) {
	return c.idList(ctx, "campaign reports", methodGetCampaignReports, bigID(campaignID))
}

func (c *Contracts) idList(ctx context.Context, op, method string, arg any) ([]uint64, error) {
	out, err := c.call(ctx, op, method, arg)
	if err != nil {
		return nil, err
	}
	ids := out.ids(0)
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", op, out.err)
	}
	return ids, nil
}

// ImpactReport returns the impact report with the given id. It returns
// types.ErrNotFound if the report does not exist.
func (c *Contracts) ImpactReport(ctx context.Context, id uint64) (*types.ImpactReport, error) {
	out, err := c.call(ctx, "impact report", methodGetImpactReport, bigID(id))
	if err != nil {
		return nil, err
	}
	report := &types.ImpactReport{
		ID:          id,
		CampaignID:  out.uint64(0),
		Reporter:    output[common.Address](out, 1),
		ReportHash:  output[string](out, 2),
		Description: output[string](out, 3),
		Timestamp:   out.time(4),
	}
	beneficiaries := output[[]byte](out, 5)
	funds := output[[]byte](out, 6)
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode impact report %d: %w", id, out.err)
	}
	if report.Reporter == (common.Address{}) {
		return nil, fmt.Errorf("impact report %d: %w", id, types.ErrNotFound)
	}
	if report.Beneficiaries, err = UnpackSealed(beneficiaries); err != nil {
		return nil, fmt.Errorf("failed to decode impact report %d beneficiaries: %w", id, err)
	}
	if report.FundsUtilized, err = UnpackSealed(funds); err != nil {
		return nil, fmt.Errorf("failed to decode impact report %d funds: %w", id, err)
	}
	return report, nil
}

// VoteStats returns the only vote figures the contract exposes for a
// campaign.
func (c *Contracts) VoteStats(ctx context.Context, campaignID uint64) (*types.VoteStats, error) {
	out, err := c.call(ctx, "vote stats", methodGetVoteStats, bigID(campaignID))
	if err != nil {
		return nil, err
	}
	stats := &types.VoteStats{
		CurrentVotes: out.uint64(0),
		TotalVoters:  out.uint64(1),
	}
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode vote stats %d: %w", campaignID, out.err)
	}
	return stats, nil
}

// HasVoted reports whether voter already has a vote recorded on the
// campaign. It never reveals the choice.
func (c *Contracts) HasVoted(ctx context.Context, campaignID uint64, voter common.Address) (bool, error) {
	out, err := c.call(ctx, "has voted", methodHasVoted, bigID(campaignID), voter)
	if err != nil {
		return false, err
	}
	voted := output[bool](out, 0)
	if out.err != nil {
		return false, fmt.Errorf("failed to decode has voted: %w", out.err)
	}
	return voted, nil
}

// EncryptionKey returns the marshaled public key sealed values must be
// encrypted under.
func (c *Contracts) EncryptionKey(ctx context.Context) ([]byte, error) {
	out, err := c.call(ctx, "encryption key", methodGetEncryptionKey)
	if err != nil {
		return nil, err
	}
	key := output[[]byte](out, 0)
	if out.err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", out.err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("encryption key: %w", types.ErrNotFound)
	}
	return key, nil
}
