package gateway

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/web3"
)

// Backend is the contract the gateway talks to. It is implemented by
// *web3.Contracts for a deployed contract and by MockBackend in memory.
//
// Reads return types.ErrNotFound for unknown identifiers and
// *types.TransientReadError for node failures. Writes return the hash of
// the submitted transaction; TxResult returns web3.ErrTxPending until the
// transaction is mined.
type Backend interface {
	Campaign(ctx context.Context, id uint64) (*types.Campaign, error)
	CampaignTotals(ctx context.Context, id uint64) (*types.CampaignTotals, error)
	Donation(ctx context.Context, id uint64) (*types.Donation, error)
	DonorProfile(ctx context.Context, donor common.Address) (*types.DonorProfile, error)
	DonorStats(ctx context.Context, donor common.Address) (*types.DonorStats, error)
	CampaignDonations(ctx context.Context, campaignID uint64) ([]uint64, error)
	DonorCampaigns(ctx context.Context, donor common.Address) ([]uint64, error)
	CampaignReports(ctx context.Context, campaignID uint64) ([]uint64, error)
	ImpactReport(ctx context.Context, id uint64) (*types.ImpactReport, error)
	VoteStats(ctx context.Context, campaignID uint64) (*types.VoteStats, error)
	HasVoted(ctx context.Context, campaignID uint64, voter common.Address) (bool, error)
	EncryptionKey(ctx context.Context) ([]byte, error)

	CreateCampaign(ctx context.Context, signer web3.Signer, p *web3.NewCampaign) (common.Hash, error)
	MakeDonation(ctx context.Context, signer web3.Signer, p *web3.NewDonation) (common.Hash, error)
	SubmitImpactReport(ctx context.Context, signer web3.Signer, p *web3.NewImpactReport) (common.Hash, error)
	UpdateDonorProfile(ctx context.Context, signer web3.Signer, p *web3.ProfileUpdate) (common.Hash, error)
	WithdrawFunds(ctx context.Context, signer web3.Signer, campaignID uint64) (common.Hash, error)
	CastVote(ctx context.Context, signer web3.Signer, campaignID uint64, choice *codec.Sealed) (common.Hash, error)

	TxResult(ctx context.Context, hash common.Hash) (*web3.TxResult, error)
}

var (
	_ Backend = (*web3.Contracts)(nil)
	_ Backend = (*MockBackend)(nil)
)

// EncoderFromBackend returns a codec sealing values under the encryption
// key published by the contract.
func EncoderFromBackend(ctx context.Context, b Backend, bits int) (*codec.ElGamalCodec, error) {
	key, err := b.EncryptionKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key: %w", err)
	}
	return codec.NewFromKey(key, bits)
}
