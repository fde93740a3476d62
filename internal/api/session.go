package api

import (
	"net/http"
)

type loginRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (api *API) GetSession(w http.ResponseWriter, r *http.Request) {
	api.ok(w, http.StatusOK, map[string]interface{}{"profile": api.d.Session.Profile()})
}

func (api *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !api.decode(w, r, &req) {
		return
	}
	p, err := api.d.Session.Login(r.Context(), req.Name, req.Phone)
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"profile": p})
}

func (api *API) WalletLogin(w http.ResponseWriter, r *http.Request) {
	p, err := api.d.Session.WalletLogin(r.Context())
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"profile": p})
}

func (api *API) Logout(w http.ResponseWriter, r *http.Request) {
	if err := api.d.Session.Logout(r.Context()); err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, nil)
}

func (api *API) Overview(w http.ResponseWriter, r *http.Request) {
	o, err := api.d.Session.Overview(r.Context())
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"overview": o})
}
