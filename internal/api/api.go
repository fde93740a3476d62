// Package api serves the wallet over HTTP/JSON.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pvzzle/wasi/internal/bridge"
	"github.com/pvzzle/wasi/internal/contacts"
	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/session"
	"github.com/pvzzle/wasi/internal/txtrack"
	"github.com/pvzzle/wasi/internal/units"
	"github.com/pvzzle/wasi/internal/validate"

	goerrors "github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Deps are the components behind the routes. Wallet and Tracker are nil when
// no wallet provider is configured; their routes then answer
// provider_unavailable.
type Deps struct {
	Wallet   *bridge.Bridge
	Tracker  *txtrack.Tracker
	History  *txtrack.History
	Contacts *contacts.Book
	Session  *session.Session
	Networks *network.Table
}

type API struct {
	d      Deps
	logger zerolog.Logger
}

func NewAPI(d Deps, logger zerolog.Logger) *API {
	if d.Networks == nil {
		d.Networks = network.Default()
	}
	return &API{d: d, logger: logger.With().Str("component", "api").Logger()}
}

func (api *API) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(api.recoverPanics, api.logRequests)

	router.HandleFunc("/wallet/available", api.WalletAvailable).Methods("GET")
	router.HandleFunc("/wallet/connect", api.Connect).Methods("POST")
	router.HandleFunc("/wallet/accounts", api.Accounts).Methods("GET")
	router.HandleFunc("/wallet/balance", api.Balance).Methods("GET")
	router.HandleFunc("/wallet/sign", api.Sign).Methods("POST")

	router.HandleFunc("/networks", api.Networks).Methods("GET")
	router.HandleFunc("/network", api.CurrentNetwork).Methods("GET")
	router.HandleFunc("/network/switch", api.SwitchNetwork).Methods("POST")

	router.HandleFunc("/tx", api.SendTransaction).Methods("POST")
	router.HandleFunc("/tx", api.ListTransactions).Methods("GET")
	router.HandleFunc("/tx/all", api.AllTransactions).Methods("GET")
	router.HandleFunc("/tx/{chainId}/{hash}", api.GetTransaction).Methods("GET")

	router.HandleFunc("/contacts", api.ListContacts).Methods("GET")
	router.HandleFunc("/contacts", api.CreateContact).Methods("POST")
	router.HandleFunc("/contacts/{id}", api.GetContact).Methods("GET")
	router.HandleFunc("/contacts/{id}", api.UpdateContact).Methods("PUT")
	router.HandleFunc("/contacts/{id}", api.DeleteContact).Methods("DELETE")

	router.HandleFunc("/session", api.GetSession).Methods("GET")
	router.HandleFunc("/session/login", api.Login).Methods("POST")
	router.HandleFunc("/session/wallet-login", api.WalletLogin).Methods("POST")
	router.HandleFunc("/session/logout", api.Logout).Methods("POST")
	router.HandleFunc("/overview", api.Overview).Methods("GET")

	return router
}

func (api *API) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (api *API) ok(w http.ResponseWriter, status int, fields map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	api.writeJSONResponse(w, status, body)
}

func (api *API) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		api.logger.Error().Err(err).Msg("request failed")
	}
	api.writeJSONResponse(w, status, map[string]interface{}{
		"success": false,
		"error":   bridge.ReasonOf(err),
		"kind":    bridge.KindOf(err).String(),
	})
}

func (api *API) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.writeJSONResponse(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid request body",
			"kind":    bridge.KindUnclassified.String(),
		})
		return false
	}
	return true
}

// wallet reports ErrUnavailable when no provider is configured.
func (api *API) wallet(w http.ResponseWriter) (*bridge.Bridge, bool) {
	if api.d.Wallet == nil {
		api.fail(w, bridge.ErrUnavailable)
		return nil, false
	}
	return api.d.Wallet, true
}

var badRequest = []error{
	validate.ErrInvalidAddress,
	validate.ErrInvalidTxHash,
	units.ErrInvalidAmount,
	network.ErrInvalidChainID,
	contacts.ErrNameRequired,
	contacts.ErrAddressRequired,
	session.ErrNameRequired,
	session.ErrPhoneRequired,
}

func statusOf(err error) int {
	switch bridge.KindOf(err) {
	case bridge.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case bridge.KindUserRejected:
		return http.StatusForbidden
	case bridge.KindRequestConflict:
		return http.StatusConflict
	case bridge.KindUnsupportedNetwork, bridge.KindChainUnregistered:
		return http.StatusUnprocessableEntity
	}

	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	var be *bridge.Error
	switch {
	case errors.Is(err, contacts.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, contacts.ErrNotFound), errors.Is(err, txtrack.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.As(err, &be):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (api *API) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				api.logger.Error().
					Str("path", r.URL.Path).
					Str("stack", goerrors.Wrap(rec, 2).ErrorStack()).
					Msg("panic in handler")
				api.writeJSONResponse(w, http.StatusInternalServerError, map[string]interface{}{
					"success": false,
					"error":   "Internal error",
					"kind":    bridge.KindUnclassified.String(),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (api *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		api.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
