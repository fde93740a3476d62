package api

import (
	"net/http"

	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/validate"
)

func (api *API) WalletAvailable(w http.ResponseWriter, r *http.Request) {
	api.ok(w, http.StatusOK, map[string]interface{}{"available": api.d.Wallet != nil})
}

func (api *API) Connect(w http.ResponseWriter, r *http.Request) {
	b, ok := api.wallet(w)
	if !ok {
		return
	}
	address, err := b.Connect(r.Context())
	if err != nil {
		api.fail(w, err)
		return
	}
	api.logger.Info().Str("address", address).Msg("Wallet connected")
	api.ok(w, http.StatusOK, map[string]interface{}{"address": address})
}

func (api *API) Accounts(w http.ResponseWriter, r *http.Request) {
	b, ok := api.wallet(w)
	if !ok {
		return
	}
	accounts := b.ConnectedAccounts(r.Context())
	if accounts == nil {
		accounts = []string{}
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

func (api *API) Balance(w http.ResponseWriter, r *http.Request) {
	b, ok := api.wallet(w)
	if !ok {
		return
	}
	address := r.URL.Query().Get("address")
	if address == "" {
		if acc := b.ConnectedAccounts(r.Context()); len(acc) > 0 {
			address = acc[0]
		}
	}
	address, err := validate.Address(address)
	if err != nil {
		api.fail(w, err)
		return
	}

	bal, err := b.Balance(r.Context(), address)
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"address": address, "balance": bal})
}

type signRequest struct {
	Message string `json:"message"`
	Address string `json:"address"`
}

func (api *API) Sign(w http.ResponseWriter, r *http.Request) {
	b, ok := api.wallet(w)
	if !ok {
		return
	}
	var req signRequest
	if !api.decode(w, r, &req) {
		return
	}
	address, err := validate.Address(req.Address)
	if err != nil {
		api.fail(w, err)
		return
	}
	sig, err := b.SignMessage(r.Context(), req.Message, address)
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"signature": sig})
}

func (api *API) Networks(w http.ResponseWriter, r *http.Request) {
	var list []network.Descriptor
	if r.URL.Query().Get("recommended") == "true" {
		list = api.d.Networks.Recommended()
	} else {
		list = api.d.Networks.All()
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"networks": list})
}

func (api *API) CurrentNetwork(w http.ResponseWriter, r *http.Request) {
	b, ok := api.wallet(w)
	if !ok {
		return
	}
	n, err := b.CurrentNetwork(r.Context())
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"network": n})
}

type switchRequest struct {
	ChainID string `json:"chainId"`
}

func (api *API) SwitchNetwork(w http.ResponseWriter, r *http.Request) {
	b, ok := api.wallet(w)
	if !ok {
		return
	}
	var req switchRequest
	if !api.decode(w, r, &req) {
		return
	}
	if err := b.SwitchNetwork(r.Context(), req.ChainID); err != nil {
		api.fail(w, err)
		return
	}

	n, err := b.CurrentNetwork(r.Context())
	if err != nil {
		api.fail(w, err)
		return
	}
	api.logger.Info().Str("chain_id", n.ChainID).Msg("Network switched")
	api.ok(w, http.StatusOK, map[string]interface{}{"network": n})
}
