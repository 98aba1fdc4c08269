package web3

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
)

// Signer is the account writes are sent from. SignTx may block until the
// user approves the transaction and returns types.ErrSigningDeclined if the
// user refuses.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// NewCampaign holds the arguments of createCampaign.
type NewCampaign struct {
	Name        string
	Description string
	Target      *codec.Sealed
	Duration    time.Duration
	Category    types.Category
	ImageHash   string
}

// NewDonation holds the arguments of makeDonation. Value is the native
// currency attached to the call, nil for none.
type NewDonation struct {
	CampaignID uint64
	Amount     *codec.Sealed
	Message    string
	Value      *big.Int
}

// NewImpactReport holds the arguments of submitImpactReport.
type NewImpactReport struct {
	CampaignID    uint64
	Beneficiaries *codec.Sealed
	FundsUtilized *codec.Sealed
	ReportHash    string
	Description   string
}

// ProfileUpdate holds the arguments of updateDonorProfile.
type ProfileUpdate struct {
	Name       string
	Bio        string
	IsVerified bool
}

// CreateCampaign sends a createCampaign transaction and returns its hash.
func (c *Contracts) CreateCampaign(ctx context.Context, signer Signer, p *NewCampaign) (common.Hash, error) {
	if p.Target.Empty() {
		return common.Hash{}, fmt.Errorf("create campaign: %w", codec.ErrInvalidSealed)
	}
	seconds := new(big.Int).SetInt64(int64(p.Duration / time.Second))
	return c.transact(ctx, signer, "create campaign", nil, methodCreateCampaign,
		p.Name, p.Description, []byte(p.Target.Ciphertext), []byte(p.Target.Proof),
		seconds, string(p.Category), p.ImageHash)
}

// MakeDonation sends a makeDonation transaction and returns its hash.
func (c *Contracts) MakeDonation(ctx context.Context, signer Signer, p *NewDonation) (common.Hash, error) {
	if p.Amount.Empty() {
		return common.Hash{}, fmt.Errorf("make donation: %w", codec.ErrInvalidSealed)
	}
	return c.transact(ctx, signer, "make donation", p.Value, methodMakeDonation,
		bigID(p.CampaignID), []byte(p.Amount.Ciphertext), []byte(p.Amount.Proof), p.Message)
}

// SubmitImpactReport sends a submitImpactReport transaction and returns its
// hash.
func (c *Contracts) SubmitImpactReport(ctx context.Context, signer Signer, p *NewImpactReport) (common.Hash, error) {
	beneficiaries, err := PackSealed(p.Beneficiaries)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submit impact report: %w", err)
	}
	funds, err := PackSealed(p.FundsUtilized)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submit impact report: %w", err)
	}
	return c.transact(ctx, signer, "submit impact report", nil, methodSubmitImpactReport,
		bigID(p.CampaignID), beneficiaries, funds, p.ReportHash, p.Description)
}

// UpdateDonorProfile sends an updateDonorProfile transaction for the signer
// address and returns its hash.
func (c *Contracts) UpdateDonorProfile(ctx context.Context, signer Signer, p *ProfileUpdate) (common.Hash, error) {
	return c.transact(ctx, signer, "update donor profile", nil, methodUpdateDonorProfile,
		p.Name, p.Bio, p.IsVerified)
}

// WithdrawFunds sends a withdrawFunds transaction and returns its hash.
func (c *Contracts) WithdrawFunds(ctx context.Context, signer Signer, campaignID uint64) (common.Hash, error) {
	return c.transact(ctx, signer, "withdraw funds", nil, methodWithdrawFunds, bigID(campaignID))
}

// CastVote sends a castVote transaction with the sealed choice and returns
// its hash.
func (c *Contracts) CastVote(ctx context.Context, signer Signer, campaignID uint64, choice *codec.Sealed) (common.Hash, error) {
	if choice.Empty() {
		return common.Hash{}, fmt.Errorf("cast vote: %w", codec.ErrInvalidSealed)
	}
	return c.transact(ctx, signer, "cast vote", nil, methodCastVote,
		bigID(campaignID), []byte(choice.Ciphertext), []byte(choice.Proof))
}

// transact estimates, signs and sends a call to method. Node queries are
// bounded by web3QueryTimeout while signing is bounded only by ctx, so the
// user can take as long as needed to approve it.
func (c *Contracts) transact(ctx context.Context, signer Signer, op string, value *big.Int, method string, args ...any) (common.Hash, error) {
	input, err := parsedABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	qctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	gas, err := c.cli.EstimateGas(qctx, ethereum.CallMsg{
		From:  signer.Address(),
		To:    &c.Address,
		Value: value,
		Data:  input,
	})
	if err != nil {
		return common.Hash{}, writeError(op, err)
	}
	opts, err := c.authTransactOpts(qctx, ctx, signer, gas)
	if err != nil {
		return common.Hash{}, &types.TransientWriteError{Op: op, Err: err}
	}
	opts.Value = value
	tx, err := c.contract.RawTransact(opts, input)
	if err != nil {
		if errors.Is(err, types.ErrSigningDeclined) {
			return common.Hash{}, fmt.Errorf("%s: %w", op, err)
		}
		return common.Hash{}, &types.TransientWriteError{Op: op, Err: fmt.Errorf("failed to sign: %w", err)}
	}
	sctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	if err := c.cli.SendTransaction(sctx, tx); err != nil {
		return common.Hash{}, writeError(op, err)
	}
	log.Infow("transaction sent",
		"op", op,
		"hash", tx.Hash().Hex(),
		"from", signer.Address().Hex(),
		"nonce", tx.Nonce(),
		"gas", tx.Gas())
	return tx.Hash(), nil
}

// PackSealed encodes a sealed value as a single byte string: the ciphertext
// length as a 2 byte big endian integer, the ciphertext and the proof.
func PackSealed(s *codec.Sealed) ([]byte, error) {
	if s.Empty() {
		return nil, codec.ErrInvalidSealed
	}
	if len(s.Ciphertext) > 0xffff {
		return nil, fmt.Errorf("%w: ciphertext too large", codec.ErrInvalidSealed)
	}
	buf := make([]byte, 2, 2+len(s.Ciphertext)+len(s.Proof))
	binary.BigEndian.PutUint16(buf, uint16(len(s.Ciphertext)))
	buf = append(buf, s.Ciphertext...)
	return append(buf, s.Proof...), nil
}

// UnpackSealed decodes a value packed by PackSealed. An empty input returns
// nil and no error.
func UnpackSealed(data []byte) (*codec.Sealed, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: packed value too short", codec.ErrInvalidSealed)
	}
	n := int(binary.BigEndian.Uint16(data))
	if n == 0 || len(data) < 2+n {
		return nil, fmt.Errorf("%w: bad ciphertext length %d", codec.ErrInvalidSealed, n)
	}
	s := &codec.Sealed{Ciphertext: common.CopyBytes(data[2 : 2+n])}
	if len(data) > 2+n {
		s.Proof = common.CopyBytes(data[2+n:])
	}
	return s, nil
}
