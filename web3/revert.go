package web3

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/fundshadow/fundshadow-client/types"
)

const revertPrefix = "execution reverted"

// revertReason returns the reason of a contract revert carried by err.
// The second value is false if err is not a revert.
func revertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(hexData); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	msg := err.Error()
	i := strings.Index(msg, revertPrefix)
	if i < 0 {
		return "", false
	}
	reason := strings.TrimPrefix(msg[i+len(revertPrefix):], ":")
	return strings.TrimSpace(reason), true
}

// ClassifyRevert maps a revert reason of the contract onto a RejectReason.
func ClassifyRevert(reason string) types.RejectReason {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "already voted"), strings.Contains(r, "duplicate vote"):
		return types.RejectDuplicateVote
	case strings.Contains(r, "not active"), strings.Contains(r, "inactive"),
		strings.Contains(r, "ended"), strings.Contains(r, "expired"):
		return types.RejectInactiveCampaign
	case strings.Contains(r, "proof"):
		return types.RejectInvalidProof
	case strings.Contains(r, "unauthorized"), strings.Contains(r, "not authorized"),
		strings.Contains(r, "only organizer"), strings.Contains(r, "not organizer"),
		strings.Contains(r, "only owner"), strings.Contains(r, "not the organizer"):
		return types.RejectUnauthorized
	}
	return types.RejectOther
}

// isNotFoundReason reports whether a read revert means the id is unknown.
func isNotFoundReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "does not exist") ||
		strings.Contains(r, "not found") ||
		strings.Contains(r, "invalid id") ||
		strings.Contains(r, "nonexistent")
}

// readError classifies the error of a read call.
func readError(op string, err error) error {
	if reason, ok := revertReason(err); ok {
		if isNotFoundReason(reason) {
			return fmt.Errorf("failed to get %s: %w", op, types.ErrNotFound)
		}
		return fmt.Errorf("failed to get %s: %s: %s", op, revertPrefix, reason)
	}
	if errors.Is(err, bind.ErrNoCode) {
		return fmt.Errorf("failed to get %s: %w", op, err)
	}
	return &types.TransientReadError{Op: op, Err: err}
}

// writeError classifies an error returned while estimating or sending a
// write. Reverts and node side rejections are final, anything else is a
// transport failure.
func writeError(op string, err error) error {
	if errors.Is(err, types.ErrSigningDeclined) {
		return fmt.Errorf("failed to sign %s: %w", op, err)
	}
	if reason, ok := revertReason(err); ok {
		return &types.WriteRejectedError{Op: op, Reason: ClassifyRevert(reason), Detail: reason}
	}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return &types.WriteRejectedError{Op: op, Reason: types.RejectOther, Detail: rpcErr.Error()}
	}
	return &types.TransientWriteError{Op: op, Err: err}
}
