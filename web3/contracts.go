package web3

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/web3/rpc"
)

const (
	// web3QueryTimeout bounds every read and every node query issued while
	// preparing a write.
	web3QueryTimeout = 10 * time.Second
	// defaultGasLimit is used when the node estimates zero gas.
	defaultGasLimit = 10000000
)

// Backend is the node interface used by Contracts. It is implemented by
// *rpc.Client.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Contracts contains the binding to the deployed Fund Shadow contract.
type Contracts struct {
	ChainID  uint64
	Address  common.Address
	contract *bind.BoundContract
	web3pool *rpc.Web3Pool
	cli      Backend

	monitorMu      sync.Mutex
	knownEvents    map[string]struct{}
	lastWatchBlock uint64
}

// NewContracts creates a new Contracts instance with the given web3 endpoint.
func NewContracts(address common.Address, web3rpc string) (*Contracts, error) {
	w3pool := rpc.NewWeb3Pool()
	chainID, err := w3pool.AddEndpoint(web3rpc)
	if err != nil {
		return nil, fmt.Errorf("failed to add web3 endpoint: %w", err)
	}
	cli, err := w3pool.Client(chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	c := NewContractsWithBackend(address, chainID, cli)
	c.web3pool = w3pool
	log.Infow("contract bound", "address", address.Hex(), "chainID", chainID)
	return c, nil
}

// NewContractsWithBackend binds the contract at address over the backend
// provided.
func NewContractsWithBackend(address common.Address, chainID uint64, backend Backend) *Contracts {
	return &Contracts{
		ChainID:     chainID,
		Address:     address,
		contract:    bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		cli:         backend,
		knownEvents: make(map[string]struct{}),
	}
}

// AddWeb3Endpoint adds a new web3 endpoint to the pool.
func (c *Contracts) AddWeb3Endpoint(web3rpc string) error {
	if c.web3pool == nil {
		return fmt.Errorf("contracts not backed by a web3 pool")
	}
	chainID, err := c.web3pool.AddEndpoint(web3rpc)
	if err != nil {
		return err
	}
	if chainID != c.ChainID {
		c.web3pool.DelEndpoint(web3rpc)
		return fmt.Errorf("endpoint %s serves chainID %d, expected %d", web3rpc, chainID, c.ChainID)
	}
	return nil
}

// authTransactOpts helper method creates the transact options for the
// signer provided. It sets the nonce, gas tip cap and gas limit, the latter
// from the estimation with a 20% margin. Signing is delegated to the signer
// with the context of the write, so it can wait for the user approval.
func (c *Contracts) authTransactOpts(ctx, signCtx context.Context, signer Signer, gas uint64) (*bind.TransactOpts, error) {
	from := signer.Address()
	chainID := new(big.Int).SetUint64(c.ChainID)
	auth := &bind.TransactOpts{
		From:    from,
		Context: ctx,
		NoSend:  true,
		Signer: func(addr common.Address, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			return signer.SignTx(signCtx, tx, chainID)
		},
	}
	// set the nonce
	log.Debugw("getting nonce", "address", from.Hex())
	nonce, err := c.cli.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	// set the gas tip cap
	if auth.GasTipCap, err = c.cli.SuggestGasTipCap(ctx); err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	// set the gas limit
	auth.GasLimit = gas + gas/5
	if gas == 0 {
		auth.GasLimit = defaultGasLimit
	}
	return auth, nil
}
