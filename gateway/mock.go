package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/crypto/ecc/bn254"
	"github.com/fundshadow/fundshadow-client/crypto/elgamal"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/web3"
)

// mockDecryptBound is the largest total the mock contract can decrypt.
const mockDecryptBound = 1 << 24

var (
	mockChainID = big.NewInt(1337)
	mockAddress = common.HexToAddress("0x00000000000000000000000000000000f00d5add")
)

// MockBackend is an in-memory contract. It holds the decryption key, so it
// can stand in for the confidential computation of the real contract: it
// verifies every proof, sums the sealed donations and enforces one vote per
// address and campaign. Writes are mined as soon as they are submitted
// unless SetAutoMine(false) is called.
type MockBackend struct {
	mu         sync.Mutex
	codec      *codec.ElGamalCodec
	privateKey *big.Int
	now        func() time.Time
	autoMine   bool
	nonce      uint64
	head       uint64
	submitted  int

	campaigns map[uint64]*mockCampaign
	donations map[uint64]*types.Donation
	profiles  map[common.Address]*types.DonorProfile
	donors    map[common.Address]*mockDonor
	reports   map[uint64]*types.ImpactReport
	txs       map[common.Hash]*web3.TxResult
	queue     []*mockTx

	nextCampaign, nextDonation, nextReport uint64

	readFailures map[uint64]int
	submitErr    error
	mineFailure  string
}

type mockCampaign struct {
	campaign    types.Campaign
	raised      *elgamal.Ciphertext
	donors      map[common.Address]struct{}
	voters      map[common.Address]*codec.Sealed
	totalVoters uint64
	donations   []uint64
	reports     []uint64
	withdrawn   bool
}

type mockDonor struct {
	campaigns []uint64
	count     uint64
	total     *big.Int
}

type mockTx struct {
	hash  common.Hash
	op    string
	apply func() (uint64, bool, string)
}

// NewMockBackend returns an empty mock contract with a fresh encryption key.
func NewMockBackend() (*MockBackend, error) {
	pub, priv, err := elgamal.GenerateKey(bn254.NewG1())
	if err != nil {
		return nil, err
	}
	enc, err := codec.New(pub, codec.DefaultBits)
	if err != nil {
		return nil, err
	}
	return &MockBackend{
		codec:        enc,
		privateKey:   priv,
		now:          time.Now,
		autoMine:     true,
		campaigns:    make(map[uint64]*mockCampaign),
		donations:    make(map[uint64]*types.Donation),
		profiles:     make(map[common.Address]*types.DonorProfile),
		donors:       make(map[common.Address]*mockDonor),
		reports:      make(map[uint64]*types.ImpactReport),
		txs:          make(map[common.Hash]*web3.TxResult),
		readFailures: make(map[uint64]int),
		nextCampaign: 1,
		nextDonation: 1,
		nextReport:   1,
	}, nil
}

// Codec returns the codec sealing values under the mock encryption key.
func (m *MockBackend) Codec() *codec.ElGamalCodec {
	return m.codec
}

// SetClock sets the clock of the mock contract.
func (m *MockBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetAutoMine selects whether writes are mined when submitted or only when
// Mine is called.
func (m *MockBackend) SetAutoMine(auto bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoMine = auto
}

// Mine executes every queued transaction.
func (m *MockBackend) Mine() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.queue {
		m.mine(tx)
	}
	m.queue = nil
}

// Submitted returns the number of transactions sent to the mock contract.
func (m *MockBackend) Submitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitted
}

// FailReads makes the next times reads of the campaign fail with a
// transient error. A negative value fails them until reset with zero.
func (m *MockBackend) FailReads(campaignID uint64, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readFailures[campaignID] = times
}

// FailNextSubmit makes the next write fail before reaching the network.
func (m *MockBackend) FailNextSubmit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

// FailNextMine makes the next mined transaction revert with reason.
func (m *MockBackend) FailNextMine(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mineFailure = reason
}

// SetTotalVoters sets the number of eligible voters of a campaign.
func (m *MockBackend) SetTotalVoters(campaignID, total uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.totalVoters = total
	}
}

// SetCampaignActive sets the active flag of a campaign.
func (m *MockBackend) SetCampaignActive(campaignID uint64, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.campaign.IsActive = active
	}
}

// AddCampaign stores a campaign directly, bypassing the write path, and
// returns its id. The organizer, times and target of c are used as given.
func (m *MockBackend) AddCampaign(c *types.Campaign) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextCampaign
	m.nextCampaign++
	stored := *c
	stored.ID = id
	stored.Totals, stored.Votes = nil, nil
	m.campaigns[id] = m.newCampaign(stored)
	return id
}

func (m *MockBackend) newCampaign(c types.Campaign) *mockCampaign {
	return &mockCampaign{
		campaign: c,
		raised:   elgamal.NewCiphertext(m.codec.PublicKey()),
		donors:   make(map[common.Address]struct{}),
		voters:   make(map[common.Address]*codec.Sealed),
	}
}

// failRead consumes an injected read failure of the campaign, if any.
func (m *MockBackend) failRead(op string, campaignID uint64) error {
	n, ok := m.readFailures[campaignID]
	if !ok || n == 0 {
		return nil
	}
	if n > 0 {
		m.readFailures[campaignID] = n - 1
	}
	return &types.TransientReadError{Op: op, Err: errors.New("node unavailable")}
}

func (m *MockBackend) Campaign(_ context.Context, id uint64) (*types.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failRead("campaign", id); err != nil {
		return nil, err
	}
	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %d: %w", id, types.ErrNotFound)
	}
	campaign := c.campaign
	return &campaign, nil
}

func (m *MockBackend) CampaignTotals(_ context.Context, id uint64) (*types.CampaignTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failRead("campaign totals", id); err != nil {
		return nil, err
	}
	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %d: %w", id, types.ErrNotFound)
	}
	raised, err := m.decrypt(c.raised)
	if err != nil {
		return nil, err
	}
	totals := &types.CampaignTotals{
		CurrentAmount: types.NewBigInt(raised),
		DonorCount:    uint64(len(c.donors)),
	}
	if ct, err := m.codec.Ciphertext(c.campaign.Target); err == nil {
		if target, err := m.decrypt(ct); err == nil {
			totals.Funded = raised.Cmp(target) >= 0
		}
	}
	return totals, nil
}

func (m *MockBackend) decrypt(ct *elgamal.Ciphertext) (*big.Int, error) {
	if ct.C1.IsZero() && ct.C2.IsZero() {
		return new(big.Int), nil
	}
	return ct.Decrypt(m.privateKey, mockDecryptBound)
}

func (m *MockBackend) Donation(_ context.Context, id uint64) (*types.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return nil, fmt.Errorf("donation %d: %w", id, types.ErrNotFound)
	}
	donation := *d
	return &donation, nil
}

func (m *MockBackend) DonorProfile(_ context.Context, donor common.Address) (*types.DonorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[donor]
	if !ok {
		return nil, fmt.Errorf("donor profile %s: %w", donor.Hex(), types.ErrNotFound)
	}
	profile := *p
	return &profile, nil
}

func (m *MockBackend) DonorStats(_ context.Context, donor common.Address) (*types.DonorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donors[donor]
	if !ok {
		return &types.DonorStats{TotalDonated: types.NewInt(0)}, nil
	}
	return &types.DonorStats{
		TotalDonated:    types.NewBigInt(d.total),
		DonationCount:   d.count,
		ReputationScore: d.count * 10,
	}, nil
}

func (m *MockBackend) CampaignDonations(_ context.Context, campaignID uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		return slices.Clone(c.donations), nil
	}
	return []uint64{}, nil
}

func (m *MockBackend) DonorCampaigns(_ context.Context, donor common.Address) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.donors[donor]; ok {
		return slices.Clone(d.campaigns), nil
	}
	return []uint64{}, nil
}

func (m *MockBackend) CampaignReports(_ context.Context, campaignID uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		return slices.Clone(c.reports), nil
	}
	return []uint64{}, nil
}

func (m *MockBackend) ImpactReport(_ context.Context, id uint64) (*types.ImpactReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("impact report %d: %w", id, types.ErrNotFound)
	}
	report := *r
	return &report, nil
}

func (m *MockBackend) VoteStats(_ context.Context, campaignID uint64) (*types.VoteStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failRead("vote stats", campaignID); err != nil {
		return nil, err
	}
	c, ok := m.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("campaign %d: %w", campaignID, types.ErrNotFound)
	}
	return &types.VoteStats{CurrentVotes: uint64(len(c.voters)), TotalVoters: c.totalVoters}, nil
}

func (m *MockBackend) HasVoted(_ context.Context, campaignID uint64, voter common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return false, nil
	}
	_, voted := c.voters[voter]
	return voted, nil
}

func (m *MockBackend) EncryptionKey(context.Context) ([]byte, error) {
	return m.codec.PublicKey().Marshal(), nil
}

func (m *MockBackend) TxResult(_ context.Context, hash common.Hash) (*web3.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.txs[hash]
	if !ok {
		return nil, web3.ErrTxPending
	}
	r := *res
	return &r, nil
}

// transact emulates the write path of a node: the precondition check
// stands for the gas estimation, then the signer is asked to sign and the
// transaction is queued.
func (m *MockBackend) transact(ctx context.Context, signer web3.Signer, op string, check func(from common.Address) string, apply func(from common.Address) (uint64, bool)) (common.Hash, error) {
	from := signer.Address()
	m.mu.Lock()
	if err := m.submitErr; err != nil {
		m.submitErr = nil
		m.mu.Unlock()
		return common.Hash{}, &types.TransientWriteError{Op: op, Err: err}
	}
	if reason := check(from); reason != "" {
		m.mu.Unlock()
		return common.Hash{}, &types.WriteRejectedError{Op: op, Reason: web3.ClassifyRevert(reason), Detail: reason}
	}
	nonce := m.nonce
	m.nonce++
	m.mu.Unlock()

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   mockChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1),
		Gas:       100000,
		To:        &mockAddress,
		Data:      []byte(op),
	})
	signed, err := signer.SignTx(ctx, tx, mockChainID)
	if err != nil {
		if errors.Is(err, types.ErrSigningDeclined) {
			return common.Hash{}, fmt.Errorf("%s: %w", op, err)
		}
		return common.Hash{}, &types.TransientWriteError{Op: op, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted++
	mtx := &mockTx{hash: signed.Hash(), op: op, apply: func() (uint64, bool, string) {
		if reason := check(from); reason != "" {
			return 0, false, reason
		}
		id, hasID := apply(from)
		return id, hasID, ""
	}}
	if m.autoMine {
		m.mine(mtx)
	} else {
		m.queue = append(m.queue, mtx)
	}
	return mtx.hash, nil
}

func (m *MockBackend) mine(tx *mockTx) {
	m.head++
	res := &web3.TxResult{Hash: tx.hash, BlockNumber: m.head}
	if reason := m.mineFailure; reason != "" {
		m.mineFailure = ""
		res.Reason, res.Detail = web3.ClassifyRevert(reason), reason
	} else if id, hasID, reason := tx.apply(); reason != "" {
		res.Reason, res.Detail = web3.ClassifyRevert(reason), reason
	} else {
		res.Success = true
		res.CreatedID, res.HasCreatedID = id, hasID
	}
	m.txs[tx.hash] = res
	log.Debugw("mock transaction mined", "op", tx.op, "hash", tx.hash.Hex(), "success", res.Success)
}

func (m *MockBackend) activeCampaign(id uint64) (*mockCampaign, string) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, "Campaign does not exist"
	}
	if !c.campaign.IsActive || !m.now().Before(c.campaign.EndTime) {
		return nil, "Campaign is not active"
	}
	return c, ""
}

func (m *MockBackend) verify(s *codec.Sealed, what string) string {
	if err := m.codec.Verify(s); err != nil {
		return "Invalid " + what + " proof"
	}
	return ""
}

func (m *MockBackend) CreateCampaign(ctx context.Context, signer web3.Signer, p *web3.NewCampaign) (common.Hash, error) {
	return m.transact(ctx, signer, "create campaign", func(common.Address) string {
		switch {
		case p.Name == "":
			return "Name is required"
		case p.Duration < time.Second:
			return "Duration must be positive"
		}
		return m.verify(p.Target, "target")
	}, func(from common.Address) (uint64, bool) {
		id := m.nextCampaign
		m.nextCampaign++
		now := m.now()
		m.campaigns[id] = m.newCampaign(types.Campaign{
			ID:          id,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			ImageHash:   p.ImageHash,
			Organizer:   from,
			IsActive:    true,
			StartTime:   now,
			EndTime:     now.Add(p.Duration),
			Target:      p.Target,
		})
		return id, true
	})
}

func (m *MockBackend) MakeDonation(ctx context.Context, signer web3.Signer, p *web3.NewDonation) (common.Hash, error) {
	return m.transact(ctx, signer, "make donation", func(common.Address) string {
		if _, reason := m.activeCampaign(p.CampaignID); reason != "" {
			return reason
		}
		return m.verify(p.Amount, "amount")
	}, func(from common.Address) (uint64, bool) {
		c := m.campaigns[p.CampaignID]
		ct, _ := m.codec.Ciphertext(p.Amount)
		c.raised.Add(c.raised, ct)
		c.donors[from] = struct{}{}

		id := m.nextDonation
		m.nextDonation++
		m.donations[id] = &types.Donation{
			ID:         id,
			CampaignID: p.CampaignID,
			Donor:      from,
			Timestamp:  m.now(),
			Message:    p.Message,
			Amount:     p.Amount,
		}
		c.donations = append(c.donations, id)

		d, ok := m.donors[from]
		if !ok {
			d = &mockDonor{total: new(big.Int)}
			m.donors[from] = d
		}
		if !slices.Contains(d.campaigns, p.CampaignID) {
			d.campaigns = append(d.campaigns, p.CampaignID)
		}
		d.count++
		if v, err := m.decrypt(ct); err == nil {
			d.total.Add(d.total, v)
		}
		return id, true
	})
}

func (m *MockBackend) SubmitImpactReport(ctx context.Context, signer web3.Signer, p *web3.NewImpactReport) (common.Hash, error) {
	return m.transact(ctx, signer, "submit impact report", func(from common.Address) string {
		c, ok := m.campaigns[p.CampaignID]
		switch {
		case !ok:
			return "Campaign does not exist"
		case c.campaign.Organizer != from:
			return "Only organizer can submit reports"
		}
		if reason := m.verify(p.Beneficiaries, "beneficiaries"); reason != "" {
			return reason
		}
		return m.verify(p.FundsUtilized, "funds")
	}, func(from common.Address) (uint64, bool) {
		id := m.nextReport
		m.nextReport++
		m.reports[id] = &types.ImpactReport{
			ID:            id,
			CampaignID:    p.CampaignID,
			Reporter:      from,
			ReportHash:    p.ReportHash,
			Description:   p.Description,
			Timestamp:     m.now(),
			Beneficiaries: p.Beneficiaries,
			FundsUtilized: p.FundsUtilized,
		}
		c := m.campaigns[p.CampaignID]
		c.reports = append(c.reports, id)
		return id, true
	})
}

func (m *MockBackend) UpdateDonorProfile(ctx context.Context, signer web3.Signer, p *web3.ProfileUpdate) (common.Hash, error) {
	return m.transact(ctx, signer, "update donor profile", func(common.Address) string {
		if p.Name == "" {
			return "Name is required"
		}
		return ""
	}, func(from common.Address) (uint64, bool) {
		m.profiles[from] = &types.DonorProfile{
			Address:    from,
			Name:       p.Name,
			Bio:        p.Bio,
			IsVerified: p.IsVerified,
		}
		return 0, false
	})
}

func (m *MockBackend) WithdrawFunds(ctx context.Context, signer web3.Signer, campaignID uint64) (common.Hash, error) {
	return m.transact(ctx, signer, "withdraw funds", func(from common.Address) string {
		c, ok := m.campaigns[campaignID]
		switch {
		case !ok:
			return "Campaign does not exist"
		case c.campaign.Organizer != from:
			return "Only organizer can withdraw"
		case c.withdrawn:
			return "Funds already withdrawn"
		}
		return ""
	}, func(common.Address) (uint64, bool) {
		c := m.campaigns[campaignID]
		c.withdrawn = true
		c.campaign.IsActive = false
		return 0, false
	})
}

func (m *MockBackend) CastVote(ctx context.Context, signer web3.Signer, campaignID uint64, choice *codec.Sealed) (common.Hash, error) {
	return m.transact(ctx, signer, "cast vote", func(from common.Address) string {
		c, reason := m.activeCampaign(campaignID)
		if reason != "" {
			return reason
		}
		if _, voted := c.voters[from]; voted {
			return "Already voted"
		}
		if reason := m.verify(choice, "vote"); reason != "" {
			return reason
		}
		ct, _ := m.codec.Ciphertext(choice)
		if v, err := m.decrypt(ct); err != nil || v.Cmp(big.NewInt(int64(types.VoteAbstain))) > 0 {
			return "Invalid vote proof"
		}
		return ""
	}, func(from common.Address) (uint64, bool) {
		m.campaigns[campaignID].voters[from] = choice
		return 0, false
	})
}
