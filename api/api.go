package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/mike76-dev/nbnsd/nbt"
	"github.com/mike76-dev/nbnsd/stores"
)

// Stats is the counters snapshot returned by the stats endpoint.
type Stats struct {
	Start           time.Time `json:"start"`
	QueriesReceived uint64    `json:"queriesReceived"`
	QueriesAnswered uint64    `json:"queriesAnswered"`
	Registrations   uint64    `json:"registrations"`
	Releases        uint64    `json:"releases"`
	Dropped         uint64    `json:"dropped"`
	BytesSent       uint64    `json:"bytesSent"`
	BytesReceived   uint64    `json:"bytesReceived"`
}

// Server is the view of the name server the API exposes.
type Server interface {
	Stats() Stats
	OwnedNames() []nbt.Name
	AddName(name nbt.Name) error
	Registrations(ctx context.Context) ([]stores.Registration, error)
	BanHost(host, reason string) error
	UnbanHost(host string) error
}

// API represents the API call handler.
type API struct {
	router   *httprouter.Router
	server   Server
	stopChan chan struct{}
	rl       *ratelimiter
}

// NewAPI returns an initialized API object.
func NewAPI(s Server) *API {
	stopChan := make(chan struct{})
	api := &API{
		router:   httprouter.New(),
		server:   s,
		stopChan: stopChan,
		rl:       newRatelimiter(stopChan),
	}

	api.router.GET("/api/stats", api.handleStats)
	api.router.GET("/api/names", api.handleNames)
	api.router.POST("/api/names", api.handleAddName)
	api.router.GET("/api/registrations", api.handleRegistrations)
	api.router.POST("/api/bans", api.handleBanHost)
	api.router.DELETE("/api/bans/:host", api.handleUnbanHost)

	return api
}

// Close shuts down the handler.
func (api *API) Close() {
	close(api.stopChan)
}

// BasicAuth wraps an http.Handler to force a basic auth with a password.
func BasicAuth(password string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if _, p, ok := req.BasicAuth(); !ok || p != password {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			h.ServeHTTP(w, req)
		})
	}
}

// ServeHTTP implements http.HandlerFunc.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !api.rl.allow(host) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	api.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (api *API) handleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, api.server.Stats())
}

func (api *API) handleNames(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	names := api.server.OwnedNames()
	resp := make([]string, 0, len(names))
	for _, name := range names {
		resp = append(resp, name.String())
	}
	writeJSON(w, resp)
}

func (api *API) handleAddName(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var nc stores.NameConfig
	if err := json.NewDecoder(r.Body).Decode(&nc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name, err := nbt.NewName(nc.Value, nc.Scope, nc.Purpose)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := api.server.AddName(name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) handleRegistrations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	regs, err := api.server.Registrations(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, regs)
}

func (api *API) handleBanHost(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Host   string `json:"host"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := api.server.BanHost(req.Host, req.Reason); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) handleUnbanHost(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	if err := api.server.UnbanHost(ps.ByName("host")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
