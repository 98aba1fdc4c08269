package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/fundshadow/fundshadow-client/log"
)

// Client struct implements bind.ContractBackend and bind.DeployBackend
// over a Web3Pool for a single chainID. Each call is sent to the next
// available endpoint. If it fails for a reason attributable to the endpoint,
// the endpoint is disabled and the call is retried on another one.
type Client struct {
	w3p        *Web3Pool
	chainID    uint64
	maxRetries int
}

// ChainID returns the chain ID of the client.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// retryable reports whether a failed call should be tried on another
// endpoint. Execution errors returned by the node (reverts, nonce or
// funds errors) and not found results are final.
func retryable(err error) bool {
	if err == nil || errors.Is(err, ethereum.NotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		return false
	}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		// -32000 is used by geth for execution and transaction pool errors
		return rpcErr.ErrorCode() != -32000
	}
	return !strings.Contains(err.Error(), "execution reverted")
}

func (c *Client) retryOnError(ctx context.Context, method string, fn func(*ethclient.Client) error) error {
	var err error
	for i := 0; i < c.maxRetries; i++ {
		var endpoint *Web3Endpoint
		endpoint, err = c.w3p.Endpoint(c.chainID)
		if err != nil {
			return fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
		}
		if err = fn(endpoint.client); err == nil || !retryable(err) {
			return err
		}
		log.Warnw("web3 call failed, trying next endpoint",
			"method", method, "uri", endpoint.URI, "attempt", i+1, "error", err)
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", method, c.maxRetries, err)
}

// CodeAt method wraps the CodeAt method from the ethclient.Client.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) (code []byte, err error) {
	err = c.retryOnError(ctx, "CodeAt", func(cli *ethclient.Client) error {
		code, err = cli.CodeAt(ctx, account, blockNumber)
		return err
	})
	return
}

// CallContract method wraps the CallContract method from the ethclient.Client.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) (out []byte, err error) {
	err = c.retryOnError(ctx, "CallContract", func(cli *ethclient.Client) error {
		out, err = cli.CallContract(ctx, call, blockNumber)
		return err
	})
	return
}

// EstimateGas method wraps the EstimateGas method from the ethclient.Client.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (gas uint64, err error) {
	err = c.retryOnError(ctx, "EstimateGas", func(cli *ethclient.Client) error {
		gas, err = cli.EstimateGas(ctx, msg)
		return err
	})
	return
}

// FilterLogs method wraps the FilterLogs method from the ethclient.Client.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) (logs []types.Log, err error) {
	err = c.retryOnError(ctx, "FilterLogs", func(cli *ethclient.Client) error {
		logs, err = cli.FilterLogs(ctx, query)
		return err
	})
	return
}

// HeaderByNumber method wraps the HeaderByNumber method from the ethclient.Client.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (header *types.Header, err error) {
	err = c.retryOnError(ctx, "HeaderByNumber", func(cli *ethclient.Client) error {
		header, err = cli.HeaderByNumber(ctx, number)
		return err
	})
	return
}

// PendingNonceAt method wraps the PendingNonceAt method from the ethclient.Client.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (nonce uint64, err error) {
	err = c.retryOnError(ctx, "PendingNonceAt", func(cli *ethclient.Client) error {
		nonce, err = cli.PendingNonceAt(ctx, account)
		return err
	})
	return
}

// PendingCodeAt method wraps the PendingCodeAt method from the ethclient.Client.
func (c *Client) PendingCodeAt(ctx context.Context, account common.Address) (code []byte, err error) {
	err = c.retryOnError(ctx, "PendingCodeAt", func(cli *ethclient.Client) error {
		code, err = cli.PendingCodeAt(ctx, account)
		return err
	})
	return
}

// SubscribeFilterLogs method wraps the SubscribeFilterLogs method from the
// ethclient.Client. It is served by the first websocket or IPC endpoint of
// the chain.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	endpoint, err := c.w3p.SubscriptionEndpoint(c.chainID)
	if err != nil {
		return nil, err
	}
	sub, err := endpoint.client.SubscribeFilterLogs(ctx, query, ch)
	if err != nil && retryable(err) {
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
	}
	return sub, err
}

// SuggestGasPrice method wraps the SuggestGasPrice method from the ethclient.Client.
func (c *Client) SuggestGasPrice(ctx context.Context) (price *big.Int, err error) {
	err = c.retryOnError(ctx, "SuggestGasPrice", func(cli *ethclient.Client) error {
		price, err = cli.SuggestGasPrice(ctx)
		return err
	})
	return
}

// SuggestGasTipCap method wraps the SuggestGasTipCap method from the ethclient.Client.
func (c *Client) SuggestGasTipCap(ctx context.Context) (tip *big.Int, err error) {
	err = c.retryOnError(ctx, "SuggestGasTipCap", func(cli *ethclient.Client) error {
		tip, err = cli.SuggestGasTipCap(ctx)
		return err
	})
	return
}

// SendTransaction method wraps the SendTransaction method from the
// ethclient.Client. It is sent only once: another endpoint could accept a
// transaction the first one already broadcast.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	endpoint, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
	}
	if err := endpoint.client.SendTransaction(ctx, tx); err != nil {
		if retryable(err) {
			c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
		}
		return err
	}
	return nil
}

// TransactionReceipt method wraps the TransactionReceipt method from the
// ethclient.Client. It returns ethereum.NotFound for pending transactions.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (receipt *types.Receipt, err error) {
	err = c.retryOnError(ctx, "TransactionReceipt", func(cli *ethclient.Client) error {
		receipt, err = cli.TransactionReceipt(ctx, txHash)
		return err
	})
	return
}

// TransactionByHash method wraps the TransactionByHash method from the ethclient.Client.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error) {
	err = c.retryOnError(ctx, "TransactionByHash", func(cli *ethclient.Client) error {
		tx, isPending, err = cli.TransactionByHash(ctx, hash)
		return err
	})
	return
}

// BlockNumber method wraps the BlockNumber method from the ethclient.Client.
func (c *Client) BlockNumber(ctx context.Context) (n uint64, err error) {
	err = c.retryOnError(ctx, "BlockNumber", func(cli *ethclient.Client) error {
		n, err = cli.BlockNumber(ctx)
		return err
	})
	return
}
