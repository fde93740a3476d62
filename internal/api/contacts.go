package api

import (
	"net/http"

	"github.com/pvzzle/wasi/internal/contacts"

	"github.com/gorilla/mux"
)

func (api *API) ListContacts(w http.ResponseWriter, r *http.Request) {
	var (
		list []contacts.Contact
		err  error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		list, err = api.d.Contacts.Search(r.Context(), q)
	} else {
		list, err = api.d.Contacts.List(r.Context())
	}
	if err != nil {
		api.fail(w, err)
		return
	}
	if list == nil {
		list = []contacts.Contact{}
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"contacts": list})
}

func (api *API) CreateContact(w http.ResponseWriter, r *http.Request) {
	var in contacts.Input
	if !api.decode(w, r, &in) {
		return
	}
	c, err := api.d.Contacts.Add(r.Context(), in)
	if err != nil {
		api.fail(w, err)
		return
	}
	api.logger.Info().Str("contact_id", c.ID).Msg("Contact created")
	api.ok(w, http.StatusCreated, map[string]interface{}{"contact": c})
}

func (api *API) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := api.d.Contacts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"contact": c})
}

func (api *API) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var in contacts.Input
	if !api.decode(w, r, &in) {
		return
	}
	c, err := api.d.Contacts.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		api.fail(w, err)
		return
	}
	api.ok(w, http.StatusOK, map[string]interface{}{"contact": c})
}

func (api *API) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := api.d.Contacts.Delete(r.Context(), id); err != nil {
		api.fail(w, err)
		return
	}
	api.logger.Info().Str("contact_id", id).Msg("Contact deleted")
	api.ok(w, http.StatusOK, nil)
}
