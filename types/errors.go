package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by reads for identifiers the contract does not
	// know. It is not retryable.
	ErrNotFound = errors.New("not found")
	// ErrSigningDeclined is returned when the wallet refuses to sign a
	// write. It is never retried automatically.
	ErrSigningDeclined = errors.New("signing declined by the wallet")
	// ErrWalletDisconnected is the reason of the ValidationError returned
	// by writes while no wallet is connected.
	ErrWalletDisconnected = errors.New("wallet not connected")
)

// ValidationError is a local precondition failure. Writes failing with it
// never reach the network.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransientReadError is a transport or node failure on a read. Reads failing
// with it are safe to retry.
type TransientReadError struct {
	Op  string
	Err error
}

func (e *TransientReadError) Error() string {
	return fmt.Sprintf("transient failure reading %s: %v", e.Op, e.Err)
}

func (e *TransientReadError) Unwrap() error {
	return e.Err
}

// RejectReason is the cause of a rejected write, decoded from the contract
// revert conditions.
type RejectReason string

const (
	RejectUnauthorized     RejectReason = "unauthorized"
	RejectInactiveCampaign RejectReason = "inactive_campaign"
	RejectDuplicateVote    RejectReason = "duplicate_vote"
	RejectInvalidProof     RejectReason = "invalid_proof"
	RejectOther            RejectReason = "other"
)

// WriteRejectedError is a write refused by the contract. It caused no state
// change.
type WriteRejectedError struct {
	Op     string
	Reason RejectReason
	Detail string
}

func (e *WriteRejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s rejected: %s (%s)", e.Op, e.Reason, e.Detail)
}

// TransientWriteError is a transport failure while submitting a write. The
// write may not have reached the network, so only the caller can decide to
// submit it again.
type TransientWriteError struct {
	Op  string
	Err error
}

func (e *TransientWriteError) Error() string {
	return fmt.Sprintf("transient failure submitting %s: %v", e.Op, e.Err)
}

func (e *TransientWriteError) Unwrap() error {
	return e.Err
}

// IsRetryableRead reports whether err is a read failure worth retrying.
func IsRetryableRead(err error) bool {
	var tr *TransientReadError
	return errors.As(err, &tr)
}

// RejectionReason returns the reason of a WriteRejectedError in the chain
// of err.
func RejectionReason(err error) (RejectReason, bool) {
	var wr *WriteRejectedError
	if errors.As(err, &wr) {
		return wr.Reason, true
	}
	return "", false
}

// IsTransientWrite reports whether a write failed for a reason that allows
// submitting it again: a transport error or a declined signature.
func IsTransientWrite(err error) bool {
	var tw *TransientWriteError
	return errors.As(err, &tw) || errors.Is(err, ErrSigningDeclined)
}
