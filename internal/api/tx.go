package api

import (
	"net/http"

	"github.com/pvzzle/wasi/internal/bridge"
	"github.com/pvzzle/wasi/internal/txtrack"
	"github.com/pvzzle/wasi/internal/validate"

	"github.com/gorilla/mux"
)

type sendRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// SendTransaction submits a transfer and answers once it is pending; the
// final status is read later from the history.
func (api *API) SendTransaction(w http.ResponseWriter, r *http.Request) {
	if api.d.Tracker == nil {
		api.fail(w, bridge.ErrUnavailable)
		return
	}
	var req sendRequest
	if !api.decode(w, r, &req) {
		return
	}

	h, err := api.d.Tracker.Send(r.Context(), req.From, req.To, req.Amount)
	if err != nil {
		api.fail(w, err)
		return
	}

	rec := h.Record()
	fields := map[string]interface{}{"transaction": rec}
	if u, ok := api.d.Networks.TxURL(rec.ChainID, rec.Hash); ok {
		fields["explorerUrl"] = u
	}
	api.ok(w, http.StatusAccepted, fields)
}

// ListTransactions returns the history of ?chainId=, or of the wallet's
// current network when it is omitted.
func (api *API) ListTransactions(w http.ResponseWriter, r *http.Request) {
	chainID := r.URL.Query().Get("chainId")
	if chainID == "" {
		b, ok := api.wallet(w)
		if !ok {
			return
		}
		n, err := b.CurrentNetwork(r.Context())
		if err != nil {
			api.fail(w, err)
			return
		}
		chainID = n.ChainID
	}

	list, err := api.d.History.List(r.Context(), chainID)
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"chainId": chainID, "transactions": nonNil(list)})
}

func (api *API) AllTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := api.d.History.All(r.Context())
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"transactions": nonNil(list)})
}

func (api *API) GetTransaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash, err := validate.TxHash(vars["hash"])
	if err != nil {
		api.fail(w, err)
		return
	}
	rec, err := api.d.History.Get(r.Context(), vars["chainId"], hash)
	if err != nil {
		api.fail(w, err)
		return
	}

	fields := map[string]interface{}{"transaction": rec}
	if u, ok := api.d.Networks.TxURL(rec.ChainID, rec.Hash); ok {
		fields["explorerUrl"] = u
	}
	api.ok(w, http.StatusOK, fields)
}

func nonNil(list []txtrack.Record) []txtrack.Record {
	if list == nil {
		return []txtrack.Record{}
	}
	return list
}
