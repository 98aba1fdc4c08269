package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrNegative is the reason of an EncodingError for negative inputs.
	ErrNegative = errors.New("amount is negative")
	// ErrNonFinite is the reason of an EncodingError for NaN, infinite or
	// unparseable inputs.
	ErrNonFinite = errors.New("amount is not a finite number")
	// ErrTooLarge is the reason of an EncodingError for values that do not
	// fit in the range the proofs cover.
	ErrTooLarge = errors.New("amount exceeds the supported range")
)

// EncodingError is returned when a plaintext cannot be encoded. Value is the
// offending input as given by the caller, when it is safe to show.
type EncodingError struct {
	Value  string
	Reason error
}

func (e *EncodingError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("cannot encode amount: %v", e.Reason)
	}
	return fmt.Sprintf("cannot encode amount %q: %v", e.Value, e.Reason)
}

func (e *EncodingError) Unwrap() error {
	return e.Reason
}
