package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/storage"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/web3"
	"github.com/google/uuid"
)

// Write operation names, used in logs, metrics and persisted pending writes.
const (
	OpCreateCampaign     = "create_campaign"
	OpMakeDonation       = "make_donation"
	OpSubmitImpactReport = "submit_impact_report"
	OpUpdateDonorProfile = "update_donor_profile"
	OpWithdrawFunds      = "withdraw_funds"
	OpCastVote           = "cast_vote"
)

// CampaignRequest is the input of CreateCampaign. Category is validated
// against the closed set of categories.
type CampaignRequest struct {
	Name        string
	Description string
	Category    string
	ImageHash   string
	Target      codec.Amount
	Duration    time.Duration
}

// DonationRequest is the input of MakeDonation. Value is the native
// currency sent with the donation, nil for none.
type DonationRequest struct {
	CampaignID uint64
	Amount     codec.Amount
	Message    string
	Value      *big.Int
}

// ReportRequest is the input of SubmitImpactReport.
type ReportRequest struct {
	CampaignID    uint64
	Beneficiaries codec.Amount
	FundsUtilized codec.Amount
	ReportHash    string
	Description   string
}

// ProfileRequest is the input of UpdateDonorProfile.
type ProfileRequest struct {
	Name       string
	Bio        string
	IsVerified bool
}

// CreateCampaign validates and submits a new campaign.
func (g *Gateway) CreateCampaign(ctx context.Context, req *CampaignRequest) (*PendingTx, error) {
	if err := g.requireWallet(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, types.NewValidationError("name", "must not be empty")
	}
	category, err := types.ParseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	if req.Duration < time.Second {
		return nil, types.NewValidationError("duration", "must be positive, got %s", req.Duration)
	}
	if req.Target == nil {
		return nil, types.NewValidationError("target", "required")
	}
	target, err := codec.Seal(g.encoder, req.Target)
	if err != nil {
		return nil, err
	}
	p := &web3.NewCampaign{
		Name:        name,
		Description: req.Description,
		Target:      target,
		Duration:    req.Duration,
		Category:    category,
		ImageHash:   req.ImageHash,
	}
	return g.submit(ctx, OpCreateCampaign, 0, func(ctx context.Context) (common.Hash, error) {
		return g.backend.CreateCampaign(ctx, g.wallet, p)
	})
}

// MakeDonation validates and submits a donation to an active campaign.
func (g *Gateway) MakeDonation(ctx context.Context, req *DonationRequest) (*PendingTx, error) {
	if err := g.requireWallet(); err != nil {
		return nil, err
	}
	if req.Amount == nil {
		return nil, types.NewValidationError("amount", "required")
	}
	if req.Value != nil && req.Value.Sign() < 0 {
		return nil, types.NewValidationError("value", "must not be negative")
	}
	if _, err := g.activeCampaign(ctx, req.CampaignID); err != nil {
		return nil, err
	}
	amount, err := codec.Seal(g.encoder, req.Amount)
	if err != nil {
		return nil, err
	}
	p := &web3.NewDonation{
		CampaignID: req.CampaignID,
		Amount:     amount,
		Message:    req.Message,
		Value:      req.Value,
	}
	return g.submit(ctx, OpMakeDonation, req.CampaignID, func(ctx context.Context) (common.Hash, error) {
		return g.backend.MakeDonation(ctx, g.wallet, p)
	})
}

// SubmitImpactReport validates and submits an impact report.
func (g *Gateway) SubmitImpactReport(ctx context.Context, req *ReportRequest) (*PendingTx, error) {
	if err := g.requireWallet(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ReportHash) == "" {
		return nil, types.NewValidationError("reportHash", "must not be empty")
	}
	if req.Beneficiaries == nil || req.FundsUtilized == nil {
		return nil, types.NewValidationError("report", "beneficiaries and funds utilized are required")
	}
	if _, err := g.existingCampaign(ctx, req.CampaignID); err != nil {
		return nil, err
	}
	beneficiaries, err := codec.Seal(g.encoder, req.Beneficiaries)
	if err != nil {
		return nil, err
	}
	funds, err := codec.Seal(g.encoder, req.FundsUtilized)
	if err != nil {
		return nil, err
	}
	p := &web3.NewImpactReport{
		CampaignID:    req.CampaignID,
		Beneficiaries: beneficiaries,
		FundsUtilized: funds,
		ReportHash:    req.ReportHash,
		Description:   req.Description,
	}
	return g.submit(ctx, OpSubmitImpactReport, req.CampaignID, func(ctx context.Context) (common.Hash, error) {
		return g.backend.SubmitImpactReport(ctx, g.wallet, p)
	})
}

// UpdateDonorProfile submits the profile of the connected wallet.
func (g *Gateway) UpdateDonorProfile(ctx context.Context, req *ProfileRequest) (*PendingTx, error) {
	if err := g.requireWallet(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, types.NewValidationError("name", "must not be empty")
	}
	p := &web3.ProfileUpdate{Name: name, Bio: req.Bio, IsVerified: req.IsVerified}
	return g.submit(ctx, OpUpdateDonorProfile, 0, func(ctx context.Context) (common.Hash, error) {
		return g.backend.UpdateDonorProfile(ctx, g.wallet, p)
	})
}

// WithdrawFunds submits the withdrawal of the funds of a campaign. Only its
// organizer can withdraw.
func (g *Gateway) WithdrawFunds(ctx context.Context, campaignID uint64) (*PendingTx, error) {
	if err := g.requireWallet(); err != nil {
		return nil, err
	}
	campaign, err := g.existingCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Organizer != g.wallet.Address() {
		return nil, types.NewValidationError("organizer", "only the campaign organizer can withdraw")
	}
	return g.submit(ctx, OpWithdrawFunds, campaignID, func(ctx context.Context) (common.Hash, error) {
		return g.backend.WithdrawFunds(ctx, g.wallet, campaignID)
	})
}

// CastVote seals choice and submits it for an active campaign.
func (g *Gateway) CastVote(ctx context.Context, campaignID uint64, choice types.VoteChoice) (*PendingTx, error) {
	if err := g.requireWallet(); err != nil {
		return nil, err
	}
	if !choice.Valid() {
		return nil, types.NewValidationError("choice", "unknown vote choice %d", choice)
	}
	if _, err := g.activeCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	sealed, err := codec.Seal(g.encoder, codec.FromUint64(uint64(choice)))
	if err != nil {
		return nil, err
	}
	return g.submit(ctx, OpCastVote, campaignID, func(ctx context.Context) (common.Hash, error) {
		return g.backend.CastVote(ctx, g.wallet, campaignID, sealed)
	})
}

func (g *Gateway) requireWallet() error {
	if g.wallet == nil || !g.wallet.Connected() {
		return &types.ValidationError{Field: "wallet", Reason: "not connected", Err: types.ErrWalletDisconnected}
	}
	return nil
}

// existingCampaign reads the campaign, turning a missing campaign into a
// validation error.
func (g *Gateway) existingCampaign(ctx context.Context, id uint64) (*types.Campaign, error) {
	campaign, err := g.Campaign(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil, &types.ValidationError{
			Field:  "campaign",
			Reason: fmt.Sprintf("campaign %d does not exist", id),
			Err:    types.ErrNotFound,
		}
	}
	return campaign, err
}

// activeCampaign is existingCampaign for campaigns that must still accept
// donations and votes.
func (g *Gateway) activeCampaign(ctx context.Context, id uint64) (*types.Campaign, error) {
	campaign, err := g.existingCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !campaign.AcceptsActions(g.now()) {
		return nil, types.NewValidationError("campaign", "campaign %d is not active", id)
	}
	return campaign, nil
}

// submit sends a write while holding the signing slot. Waiting for the slot
// is bounded by ctx only; a write is never dropped because another one is
// waiting for a signature.
func (g *Gateway) submit(ctx context.Context, op string, campaignID uint64, send func(context.Context) (common.Hash, error)) (*PendingTx, error) {
	id := uuid.New().String()
	select {
	case g.signing <- struct{}{}:
	case <-ctx.Done():
		err := &types.TransientWriteError{Op: op, Err: ctx.Err()}
		submitCounter(op, err).Inc()
		return nil, err
	}
	log.Debugw("signing slot acquired", "op", op, "id", id)
	hash, err := send(ctx)
	<-g.signing
	submitCounter(op, err).Inc()
	if err != nil {
		log.Warnw("write not submitted", "op", op, "id", id, "err", err)
		return nil, err
	}
	log.Infow("write submitted", "op", op, "id", id, "hash", hash.Hex(), "campaignID", campaignID)
	return g.track(&storage.PendingWrite{
		Hash:       hash,
		ID:         id,
		Op:         op,
		CampaignID: campaignID,
		From:       g.wallet.Address(),
		Submitted:  g.now(),
	}, true), nil
}
