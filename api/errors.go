package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fundshadow/fundshadow-client/codec"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used. Reason carries the
// decoded cause of rejected writes.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
	Reason     types.RejectReason
}

// MarshalJSON returns a JSON containing Err.Error(), Code and Reason. Field
// HTTPstatus is ignored.
//
// Example output: {"error":"campaign not found","code":40014}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			Err    string             `json:"error"`
			Code   int                `json:"code"`
			Reason types.RejectReason `json:"reason,omitempty"`
		}{
			Err:    e.Err.Error(),
			Code:   e.Code,
			Reason: e.Reason,
		})
}

// UnmarshalJSON is the inverse of MarshalJSON, used by the API client.
func (e *Error) UnmarshalJSON(data []byte) error {
	var raw struct {
		Err    string             `json:"error"`
		Code   int                `json:"code"`
		Reason types.RejectReason `json:"reason,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Err, e.Code, e.Reason = errors.New(raw.Err), raw.Code, raw.Reason
	return nil
}

// Error returns the Message contained inside the APIerror
func (e Error) Error() string {
	return e.Err.Error()
}

// Write serializes the error as JSON with the HTTP status of e.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("API error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(msg), e.HTTPstatus)
}

// Withf returns a copy of APIerror with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return e.With(fmt.Sprintf(format, args...))
}

// With returns a copy of APIerror with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	e.Err = fmt.Errorf("%w: %v", e.Err, s)
	return e
}

// WithErr returns a copy of APIerror with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	return e.With(err.Error())
}

// fromError maps the client error taxonomy onto the API errors.
func fromError(err error) Error {
	var (
		validation *types.ValidationError
		encoding   *codec.EncodingError
		rejected   *types.WriteRejectedError
	)
	switch {
	case errors.Is(err, types.ErrWalletDisconnected):
		return ErrWalletNotConnected
	case errors.Is(err, types.ErrNotFound):
		return ErrResourceNotFound.WithErr(err)
	case errors.As(err, &encoding):
		return ErrInvalidAmount.WithErr(err)
	case errors.As(err, &validation):
		return ErrInvalidRequest.WithErr(err)
	case errors.As(err, &rejected):
		e := ErrWriteRejected.WithErr(err)
		e.Reason = rejected.Reason
		return e
	case errors.Is(err, types.ErrSigningDeclined):
		return ErrSigningDeclined
	case types.IsRetryableRead(err), types.IsTransientWrite(err):
		return ErrTransientFailure.WithErr(err)
	case errors.Is(err, codec.ErrInvalidSealed):
		return ErrInvalidAmount.WithErr(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
