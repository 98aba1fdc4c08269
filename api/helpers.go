package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/go-chi/chi/v5"
)

// maxIDsPerRequest bounds the ids query parameter of the campaign list.
const maxIDsPerRequest = 100

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	httpWriteStatusJSON(w, http.StatusOK, data)
}

// httpWriteStatusJSON writes data as JSON with the given status code.
func httpWriteStatusJSON(w http.ResponseWriter, status int, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "status", status, "bytes", n)
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// decodeBody decodes the JSON body of r into v, writing the error response
// if it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return false
	}
	return true
}

// uintParam parses the URL parameter name as an unsigned integer id.
func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		ErrMalformedParam.Withf("%s %q is not a valid id", name, raw).Write(w)
		return 0, false
	}
	return id, true
}

// addressParam parses the URL parameter name as a hex address.
func addressParam(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		ErrMalformedParam.Withf("%s %q is not a valid address", name, raw).Write(w)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// hashParam parses the URL parameter name as a transaction hash.
func hashParam(w http.ResponseWriter, r *http.Request, name string) (common.Hash, bool) {
	raw := chi.URLParam(r, name)
	b, err := hexutil.Decode("0x" + strings.TrimPrefix(raw, "0x"))
	if err != nil || len(b) != common.HashLength {
		ErrMalformedParam.Withf("%s %q is not a valid hash", name, raw).Write(w)
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

// parseIDs parses a comma separated list of ids. Duplicates are kept.
func parseIDs(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) > maxIDsPerRequest {
		return nil, fmt.Errorf("at most %d ids per request", maxIDsPerRequest)
	}
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// wantsWait reports whether the request asks to wait for the write outcome.
func wantsWait(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(WaitQueryParam))
	return err == nil && v
}
