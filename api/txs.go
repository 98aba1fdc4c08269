package api

import "net/http"

// tx returns the state of a write, whether submitted by this client or not.
// GET /txs/{hash}
func (a *API) tx(w http.ResponseWriter, r *http.Request) {
	hash, ok := hashParam(w, r, HashURLParam)
	if !ok {
		return
	}
	if tx, ok := a.gateway.Tx(hash); ok {
		httpWriteJSON(w, newTxResponse(tx))
		return
	}
	o, err := a.gateway.TxOutcome(r.Context(), hash)
	if err != nil {
		fromError(err).Write(w)
		return
	}
	resp := &TxResponse{Hash: hash}
	resp.setOutcome(o)
	httpWriteJSON(w, resp)
}
