// Package api serves a read only diagnostics view of the provisioner over
// local HTTP.
package api

import (
	"net"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/the-lightning-land/wifiprovd/provisioner"
	"golang.org/x/net/netutil"
)

// DefaultMaxConns bounds the concurrent api connections.
const DefaultMaxConns = 8

// check Api compliance to the provisioner interface during compile time
var _ provisioner.Api = (*Api)(nil)

type Config struct {
	MaxConns int
	Log      Logger
}

type Api struct {
	provisioner *provisioner.Provisioner
	router      *mux.Router
	maxConns    int
	log         Logger
}

func New(config *Config) *Api {
	api := &Api{
		router:   mux.NewRouter(),
		maxConns: config.MaxConns,
	}

	if config.Log != nil {
		api.log = config.Log
	} else {
		api.log = noopLogger{}
	}

	if api.maxConns <= 0 {
		api.maxConns = DefaultMaxConns
	}

	api.router.Handle("/api/v1/status", api.handleGetStatus()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/events", api.handleGetEvents()).Methods(http.MethodGet)

	api.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.jsonError(w, "Not found", http.StatusNotFound)
	})

	return api
}

func (a *Api) SetProvisioner(p *provisioner.Provisioner) {
	a.provisioner = p
}

// Serve answers requests on l until it is closed.
func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(netutil.LimitListener(l, a.maxConns), a.router)
	if err != nil {
		return errors.Errorf("Unable to serve api: %v", err)
	}

	return nil
}

func (a *Api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}
