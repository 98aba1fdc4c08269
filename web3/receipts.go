package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundshadow/fundshadow-client/types"
)

// ErrTxPending is returned by TxResult while the transaction has no
// receipt yet.
var ErrTxPending = errors.New("transaction pending")

// TxResult is the outcome of a mined transaction.
type TxResult struct {
	Hash        common.Hash
	Success     bool
	BlockNumber uint64
	// Reason and Detail describe a failed transaction.
	Reason types.RejectReason
	Detail string
	// CreatedID is the id of the campaign, donation or report created by the
	// transaction, if any.
	CreatedID    uint64
	HasCreatedID bool
}

// TxResult returns the outcome of the transaction hash. It returns
// ErrTxPending if the transaction is not mined yet. The reason of a failed
// transaction is recovered by replaying it at the block it was mined in.
func (c *Contracts) TxResult(ctx context.Context, hash common.Hash) (*TxResult, error) {
	qctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	receipt, err := c.cli.TransactionReceipt(qctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxPending
		}
		return nil, &types.TransientReadError{Op: "receipt", Err: err}
	}
	if receipt == nil {
		return nil, ErrTxPending
	}
	res := &TxResult{
		Hash:    hash,
		Success: receipt.Status == ethtypes.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if res.Success {
		for _, l := range receipt.Logs {
			if l.Address != c.Address {
				continue
			}
			ev, err := decodeEvent(l)
			if err != nil || ev.Kind == types.EventVoteCast {
				continue
			}
			res.CreatedID, res.HasCreatedID = ev.ID, true
			break
		}
		return res, nil
	}
	res.Reason, res.Detail = types.RejectOther, "transaction reverted"
	if reason, ok := c.replay(ctx, hash, receipt.BlockNumber); ok {
		res.Reason, res.Detail = ClassifyRevert(reason), reason
	}
	return res, nil
}

// replay calls the transaction again at its block to obtain the revert
// reason, which receipts do not carry.
func (c *Contracts) replay(ctx context.Context, hash common.Hash, block *big.Int) (string, bool) {
	qctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	tx, _, err := c.cli.TransactionByHash(qctx, hash)
	if err != nil {
		return "", false
	}
	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(c.ChainID))
	from, err := ethtypes.Sender(signer, tx)
	if err != nil {
		return "", false
	}
	_, err = c.cli.CallContract(qctx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, block)
	return revertReason(err)
}

// Confirmations returns the number of blocks mined on top of block,
// counting block itself.
func (c *Contracts) Confirmations(ctx context.Context, block uint64) (uint64, error) {
	qctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	head, err := c.cli.BlockNumber(qctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	if head < block {
		return 0, nil
	}
	return head - block + 1, nil
}
